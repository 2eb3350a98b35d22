package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

// Service executes the research plan against the retrieval backend and
// accumulates a deduplicated, score-ordered chunk set for the run.
type Service struct {
	searcher Searcher
	cfg      model.RetrievalConfig
	logger   *zap.Logger
}

// NewService creates the plan-execution stage
func NewService(searcher Searcher, cfg model.RetrievalConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{searcher: searcher, cfg: cfg, logger: logger}
}

// ExecutePlan runs retrieval for each plan item in order, up to the plan item
// cap. Items beyond the cap stay pending. Chunks are deduplicated by id across
// the whole run and returned sorted by descending score. A failed item is
// marked and skipped; retrieval as a whole fails only when every executed item
// fails.
func (s *Service) ExecutePlan(ctx context.Context, state *model.RunState) error {
	limit := s.cfg.PlanItemCap
	if limit <= 0 || limit > len(state.Plan) {
		limit = len(state.Plan)
	}

	seen := make(map[string]bool)
	var chunks []model.Chunk
	executed, failed := 0, 0

	for i := range state.Plan[:limit] {
		item := &state.Plan[i]
		executed++

		matches, err := s.searchItem(ctx, item, state.Context)
		if err != nil {
			item.Status = model.PlanFailed
			failed++
			s.logger.Warn("plan item retrieval failed",
				zap.Int("item_id", item.ID),
				zap.String("category", item.Category),
				zap.Error(err))
			continue
		}

		for _, m := range matches {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			chunks = append(chunks, s.expand(ctx, m))
		}
		item.Status = model.PlanCompleted
	}

	if executed > 0 && failed == executed {
		return fmt.Errorf("all %d plan items failed retrieval", executed)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	state.Chunks = chunks

	s.logger.Info("plan execution complete",
		zap.Int("items_executed", executed),
		zap.Int("items_failed", failed),
		zap.Int("chunks", len(chunks)))
	return nil
}

// searchItem issues one search per plan item using its expanded search terms,
// falling back to the task text when expansion produced nothing
func (s *Service) searchItem(ctx context.Context, item *model.PlanItem, bc model.BusinessContext) ([]Match, error) {
	query := strings.Join(item.SearchTerms, " ")
	if query == "" {
		query = item.Task
		if len(item.TopicKeywords) > 0 {
			query += " " + strings.Join(item.TopicKeywords, " ")
		}
	}

	filters := Filters{Regulators: item.RegulatorySources}
	if len(filters.Regulators) == 0 {
		filters.Regulators = bc.RegulatoryScope
	}

	return s.searcher.Search(ctx, query, s.cfg.TopK, filters)
}

// expand swaps the child passage for its parent section when configured.
// Parent lookup failure is non-fatal; the child text is kept.
func (s *Service) expand(ctx context.Context, m Match) model.Chunk {
	if !s.cfg.ExpandParents {
		return chunkFromMatch(m, "")
	}

	parent, err := s.searcher.FetchFullContext(ctx, m.ID)
	if err != nil {
		s.logger.Debug("parent context fetch failed",
			zap.String("chunk_id", m.ID),
			zap.Error(err))
		return chunkFromMatch(m, "")
	}
	return chunkFromMatch(m, parent)
}
