package model

import "time"

// DetectedObligation is the raw detection result for one candidate statement,
// before atomization. Tagged with the passage it came from.
type DetectedObligation struct {
	ChunkID             string         `json:"chunk_id"`
	Statement           string         `json:"obligation_statement"`
	ObligationType      ObligationType `json:"obligation_type"`
	ActionType          ActionType     `json:"action_type"`
	Subject             string         `json:"subject"`
	Action              string         `json:"action"`
	Trigger             string         `json:"trigger,omitempty"`
	ObjectScope         string         `json:"object_scope,omitempty"`
	Standard            string         `json:"standard,omitempty"`
	Reasoning           string         `json:"reasoning,omitempty"`
	DetectionConfidence float64        `json:"detection_confidence"`
}

// RunState carries everything a single register-generation run accumulates.
// It is constructed once per request and passed by reference through the
// stage sequence; stages write only their own phase's fields. All state is
// run-scoped and in-memory.
type RunState struct {
	RunID     string
	Query     string
	StartedAt time.Time

	// Phase 1: understanding
	Context       BusinessContext
	Plan          []PlanItem
	PlanValidated bool

	// Phase 2: retrieval
	Chunks []Chunk

	// Phase 3: trust gates
	TrustCheckPassed bool
	TrustFlags       []string

	// Phase 4: extraction
	Detected    []DetectedObligation
	Obligations []Obligation

	// Phase 5: normalization
	Canonical []Obligation

	// Phase 7: final validation
	ReviewPackages []ReviewPackage
	FinalOutput    []Obligation

	// Control
	Errors         []string
	ShouldContinue bool
}

// NewRunState initializes run state for one request
func NewRunState(runID, query string) *RunState {
	return &RunState{
		RunID:          runID,
		Query:          query,
		StartedAt:      time.Now().UTC(),
		ShouldContinue: true,
	}
}

// AddError appends to the shared error log. Stages call this only from the
// sequential orchestration path, never from inside a fan-out.
func (s *RunState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// ChunkByID returns the retrieved chunk with the given id
func (s *RunState) ChunkByID(id string) (Chunk, bool) {
	for _, c := range s.Chunks {
		if c.ID == id {
			return c, true
		}
	}
	return Chunk{}, false
}
