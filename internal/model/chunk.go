package model

// Chunk is a retrieved passage from the regulatory corpus. Immutable;
// deduplicated by ID across all retrieval calls within a run.
type Chunk struct {
	ID           string            `json:"id"`
	Score        float64           `json:"score"`
	Text         string            `json:"text"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Regulator    string            `json:"regulator"`
	DocumentName string            `json:"document_name,omitempty"`
	Section      string            `json:"section,omitempty"`
}
