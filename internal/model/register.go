package model

import "time"

// Register is the final obligation register returned for one run
type Register struct {
	RunID       string    `json:"run_id"`
	Query       string    `json:"query"`
	GeneratedAt time.Time `json:"generated_at"`

	Obligations    []Obligation    `json:"obligations"`
	ReviewPackages []ReviewPackage `json:"review_packages,omitempty"`
	Errors         []string        `json:"errors"`

	Metadata RegisterMetadata `json:"metadata"`
}

// RegisterMetadata summarizes the run for the client
type RegisterMetadata struct {
	TotalObligations    int   `json:"total_obligations"`
	HighConfidenceCount int   `json:"high_confidence_count"`
	MediumConfidence    int   `json:"medium_confidence_count"`
	LowConfidenceCount  int   `json:"low_confidence_count"`
	ReviewRequired      int   `json:"review_required_count"`
	ChunksRetrieved     int   `json:"chunks_retrieved"`
	DurationMillis      int64 `json:"duration_ms"`
}

// BuildMetadata computes the summary counts from the final obligation list
func BuildMetadata(obligations []Obligation, reviews []ReviewPackage, chunks int, elapsed time.Duration) RegisterMetadata {
	meta := RegisterMetadata{
		TotalObligations: len(obligations),
		ReviewRequired:   len(reviews),
		ChunksRetrieved:  chunks,
		DurationMillis:   elapsed.Milliseconds(),
	}
	for _, o := range obligations {
		switch o.ConfidenceLevel {
		case ConfidenceHigh:
			meta.HighConfidenceCount++
		case ConfidenceMedium:
			meta.MediumConfidence++
		case ConfidenceLow:
			meta.LowConfidenceCount++
		}
	}
	return meta
}
