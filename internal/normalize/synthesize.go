package normalize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/llm"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
	"github.com/PubuduLasith093/RiskSafeAI/internal/worker"
)

const synthesisSystem = `You are a regulatory compliance analyst. You merge duplicate regulatory obligations into one canonical obligation without losing meaning or citations. You respond only with valid JSON.`

const synthesisPromptTemplate = `The obligations below were flagged as near-duplicates. Decide whether they state the same requirement and, if so, merge them.

Do NOT merge when:
- they bind different subjects,
- they apply under different or contradictory trigger conditions,
- one contradicts the other.

When merging, the canonical statement must preserve the strictest standard among the inputs (the longest retention period, the shortest deadline, the most demanding threshold).

Obligations:
%s

Respond with JSON:
{
  "should_merge": true,
  "canonical_statement": "merged statement, or empty if not merging",
  "strictest_standard": "the most demanding standard among the inputs, or empty",
  "reasoning": "brief justification"
}`

type synthesisResult struct {
	ShouldMerge        bool   `json:"should_merge"`
	CanonicalStatement string `json:"canonical_statement"`
	StrictestStandard  string `json:"strictest_standard"`
	Reasoning          string `json:"reasoning"`
}

// Normalizer runs clustering and canonical synthesis over the scored
// obligations
type Normalizer struct {
	provider  llm.Provider
	clusterer *Clusterer
	cfg       model.PipelineConfig
	logger    *zap.Logger
}

// NewNormalizer creates the normalization stage
func NewNormalizer(provider llm.Provider, clusterer *Clusterer, cfg model.PipelineConfig, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{provider: provider, clusterer: clusterer, cfg: cfg, logger: logger}
}

// Normalize partitions the obligations into similarity clusters and merges
// each multi-member cluster into one canonical obligation. Singletons pass
// through unchanged. Canonical IDs are assigned after the barrier, in cluster
// order, in their own namespace. Any synthesis failure degrades to passing
// the cluster members through unmerged; data is never dropped here.
func (n *Normalizer) Normalize(ctx context.Context, state *model.RunState) error {
	if len(state.Obligations) == 0 {
		state.Canonical = nil
		return nil
	}

	statements := make([]string, len(state.Obligations))
	for i, o := range state.Obligations {
		statements[i] = o.Statement
	}

	clusters, err := n.clusterer.Cluster(ctx, statements)
	if err != nil {
		// Without embeddings every obligation stands alone
		state.AddError(fmt.Sprintf("clustering: %v", err))
		state.Canonical = state.Obligations
		return nil
	}

	outcomes := worker.Map(ctx, clusters, n.cfg.Workers, func(ctx context.Context, cluster []int) ([]model.Obligation, error) {
		members := make([]model.Obligation, len(cluster))
		for i, idx := range cluster {
			members[i] = state.Obligations[idx]
		}
		if len(members) == 1 {
			return members, nil
		}
		return n.synthesize(ctx, members), nil
	})

	canonical := worker.Collect(outcomes)
	for _, err := range worker.SkipErrors(outcomes) {
		state.AddError(fmt.Sprintf("synthesis: %v", err))
	}

	// Canonical IDs are dense over the merged results only; pass-through
	// members keep their atomic identity
	seq := 0
	merged := 0
	for i := range canonical {
		if len(canonical[i].SourceObligationIDs) == 0 {
			continue
		}
		seq++
		merged++
		id := fmt.Sprintf("CANONICAL-%04d", seq)
		canonical[i].CanonicalID = id
		canonical[i].ObligationID = id
	}
	state.Canonical = canonical

	n.logger.Info("normalization complete",
		zap.Int("obligations", len(state.Obligations)),
		zap.Int("clusters", len(clusters)),
		zap.Int("merged", merged),
		zap.Int("canonical", len(canonical)))
	return nil
}

// synthesize merges one multi-member cluster, or passes the members through
// when merging is refused or fails
func (n *Normalizer) synthesize(ctx context.Context, members []model.Obligation) []model.Obligation {
	if reason, refuse := refuseMerge(members); refuse {
		n.logger.Debug("merge refused", zap.String("reason", reason))
		return members
	}

	prompt := fmt.Sprintf(synthesisPromptTemplate, describeMembers(members))
	result, err := llm.Invoke[synthesisResult](ctx, n.provider, "synthesize canonical obligation", llm.Request{
		System: synthesisSystem,
		Prompt: prompt,
	})
	if err != nil {
		n.logger.Warn("synthesis failed, passing cluster through", zap.Error(err))
		return members
	}
	if !result.ShouldMerge || strings.TrimSpace(result.CanonicalStatement) == "" {
		return members
	}

	return []model.Obligation{buildCanonical(members, *result)}
}

// refuseMerge applies the local non-merge safeguards independently of the
// generation-side judgment: different subjects or different triggers always
// keep obligations separate
func refuseMerge(members []model.Obligation) (string, bool) {
	subject := normalizeField(members[0].Structure.Subject)
	trigger := normalizeField(members[0].Structure.Trigger)

	for _, m := range members[1:] {
		if s := normalizeField(m.Structure.Subject); s != "" && subject != "" && s != subject {
			return "subjects differ", true
		}
		if t := normalizeField(m.Structure.Trigger); t != trigger {
			return "triggers differ", true
		}
	}
	return "", false
}

func normalizeField(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// buildCanonical assembles the merged obligation: citation union, maximum
// member confidence, strictest standard, and full merge provenance
func buildCanonical(members []model.Obligation, result synthesisResult) model.Obligation {
	canonical := members[0]
	canonical.Statement = result.CanonicalStatement

	var sourceIDs []string
	var citations []model.SourceGrounding
	seen := make(map[string]bool)
	standards := []string{result.StrictestStandard}
	maxScore := 0.0

	for _, m := range members {
		sourceIDs = append(sourceIDs, m.ObligationID)
		standards = append(standards, m.Structure.Standard)
		if m.ConfidenceScore > maxScore {
			maxScore = m.ConfidenceScore
		}
		for _, g := range m.Citations() {
			if seen[g.Key()] {
				continue
			}
			seen[g.Key()] = true
			citations = append(citations, g)
		}
		canonical.Exceptions = appendMissing(canonical.Exceptions, m.Exceptions)
	}

	strictest := StrictestStandard(standards)
	canonical.SourceObligationIDs = sourceIDs
	canonical.SourceGroundingList = citations
	canonical.StrictestStandard = strictest
	canonical.Structure.Standard = strictest
	canonical.ConfidenceScore = maxScore
	canonical.ConfidenceLevel = model.LevelForScore(maxScore)
	return canonical
}

func appendMissing(dst []string, src []string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}

func describeMembers(members []model.Obligation) string {
	var b strings.Builder
	for i, m := range members {
		g := m.SourceGrounding
		fmt.Fprintf(&b, "%d. [%s] %s\n   Subject: %s | Trigger: %s | Standard: %s\n   Source: %s, %s %s\n",
			i+1, m.ObligationID, m.Statement,
			m.Structure.Subject, m.Structure.Trigger, m.Structure.Standard,
			g.Regulator, g.LegalInstrument, g.SectionClause)
	}
	return b.String()
}
