package retrieval

import (
	"context"

	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

// Searcher is the contract with the external retrieval backend. The backend
// owns embedding and hybrid (dense+sparse) ranking; this side only sends
// queries and receives scored passages.
type Searcher interface {
	// Search returns ranked passages for the query
	Search(ctx context.Context, query string, topK int, filters Filters) ([]Match, error)

	// FetchFullContext returns the enclosing parent section for a matched
	// child passage, for use as extraction context. Empty result means no
	// parent exists and the child text stands alone.
	FetchFullContext(ctx context.Context, childID string) (string, error)
}

// Filters narrows a search to specific regulators
type Filters struct {
	Regulators []string `json:"regulators,omitempty"`
}

// Match is one scored passage from the backend
type Match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// chunkFromMatch builds the run-scoped Chunk record from a backend match,
// substituting the parent text when available
func chunkFromMatch(m Match, parentText string) model.Chunk {
	text := m.Text
	if parentText != "" {
		text = parentText
	}

	regulator := m.Metadata["regulator"]
	if regulator == "" {
		regulator = "ASIC"
	}

	return model.Chunk{
		ID:           m.ID,
		Score:        m.Score,
		Text:         text,
		Metadata:     m.Metadata,
		Regulator:    regulator,
		DocumentName: m.Metadata["document_name"],
		Section:      m.Metadata["section"],
	}
}
