package normalize

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Clusterer partitions obligations by embedding similarity
type Clusterer struct {
	embedder  Embedder
	threshold float64
	logger    *zap.Logger
}

// NewClusterer creates the clustering stage
func NewClusterer(embedder Embedder, threshold float64, logger *zap.Logger) *Clusterer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Clusterer{embedder: embedder, threshold: threshold, logger: logger}
}

// Cluster partitions statement indices into clusters. Statements are walked
// in increasing index order; each unassigned statement seeds a new cluster
// and absorbs every later unassigned statement whose similarity TO THE SEED
// meets the threshold. Members are compared only to the seed, never to each
// other, so a cluster may contain pairs below threshold. Given the same
// embeddings and input order, the partition is identical across runs.
func (c *Clusterer) Cluster(ctx context.Context, statements []string) ([][]int, error) {
	if len(statements) == 0 {
		return nil, nil
	}
	if len(statements) == 1 {
		return [][]int{{0}}, nil
	}

	vectors, err := c.embedder.Embed(ctx, statements)
	if err != nil {
		return nil, fmt.Errorf("embed statements: %w", err)
	}
	if len(vectors) != len(statements) {
		return nil, fmt.Errorf("got %d vectors for %d statements", len(vectors), len(statements))
	}

	assigned := make([]bool, len(statements))
	var clusters [][]int

	for seed := range statements {
		if assigned[seed] {
			continue
		}
		assigned[seed] = true
		cluster := []int{seed}

		for j := seed + 1; j < len(statements); j++ {
			if assigned[j] {
				continue
			}
			if Cosine(vectors[seed], vectors[j]) >= c.threshold {
				assigned[j] = true
				cluster = append(cluster, j)
			}
		}
		clusters = append(clusters, cluster)
	}

	c.logger.Debug("clustering complete",
		zap.Int("statements", len(statements)),
		zap.Int("clusters", len(clusters)))
	return clusters, nil
}

// Cosine returns the cosine similarity of two vectors, 0 for mismatched or
// zero-magnitude inputs
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
