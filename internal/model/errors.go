package model

import "fmt"

// TransportError indicates the generation or retrieval backend was
// unreachable or returned a malformed response. Item-scoped: the affected
// item is skipped and the run continues.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SchemaError indicates generation output failed required-field or type
// checks. Item-scoped, recovered by skipping the item.
type SchemaError struct {
	Op     string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: schema validation: %s", e.Op, e.Reason)
}
