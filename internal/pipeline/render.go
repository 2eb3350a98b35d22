package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
)

// RenderJSON serializes the register for file output and the API
func RenderJSON(register *model.Register) ([]byte, error) {
	data, err := json.MarshalIndent(register, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal register: %w", err)
	}
	return data, nil
}

// RenderMarkdown produces the human-readable register
func RenderMarkdown(register *model.Register) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Obligation Register\n\n")
	fmt.Fprintf(&b, "**Query:** %s\n\n", register.Query)
	fmt.Fprintf(&b, "**Generated:** %s | **Run:** %s\n\n",
		register.GeneratedAt.Format("2006-01-02 15:04 MST"), register.RunID)

	m := register.Metadata
	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Obligations | %d |\n", m.TotalObligations)
	fmt.Fprintf(&b, "| High confidence | %d |\n", m.HighConfidenceCount)
	fmt.Fprintf(&b, "| Medium confidence | %d |\n", m.MediumConfidence)
	fmt.Fprintf(&b, "| Low confidence | %d |\n", m.LowConfidenceCount)
	fmt.Fprintf(&b, "| Flagged for review | %d |\n", m.ReviewRequired)
	fmt.Fprintf(&b, "| Passages retrieved | %d |\n\n", m.ChunksRetrieved)

	if len(register.Obligations) == 0 {
		b.WriteString("No obligations in register.\n")
	}

	for _, o := range register.Obligations {
		fmt.Fprintf(&b, "## %s\n\n", o.ObligationID)
		fmt.Fprintf(&b, "> %s\n\n", o.Statement)
		fmt.Fprintf(&b, "- **Type:** %s / %s\n", o.ObligationType, o.ActionType)
		fmt.Fprintf(&b, "- **Confidence:** %.2f (%s)\n", o.ConfidenceScore, o.ConfidenceLevel)
		if o.Structure.Standard != "" {
			fmt.Fprintf(&b, "- **Standard:** %s\n", o.Structure.Standard)
		}
		if o.ApplicabilityRules != "" {
			fmt.Fprintf(&b, "- **Applies:** %s\n", o.ApplicabilityRules)
		}
		if o.PlainEnglish != "" {
			fmt.Fprintf(&b, "- **In plain English:** %s\n", o.PlainEnglish)
		}
		if len(o.Exceptions) > 0 {
			fmt.Fprintf(&b, "- **Exceptions:** %s\n", strings.Join(o.Exceptions, "; "))
		}

		b.WriteString("\n**Sources:**\n\n")
		for _, g := range o.Citations() {
			fmt.Fprintf(&b, "- %s, %s %s: \"%s\"\n",
				g.Regulator, g.LegalInstrument, g.SectionClause, trimExcerpt(g.VerbatimExcerpt, 200))
		}
		b.WriteString("\n")
	}

	if len(register.ReviewPackages) > 0 {
		b.WriteString("## Flagged for human review\n\n")
		for _, pkg := range register.ReviewPackages {
			fmt.Fprintf(&b, "- **%s**: %s\n", pkg.ObligationID, strings.Join(pkg.Reasons, "; "))
		}
		b.WriteString("\n")
	}

	if len(register.Errors) > 0 {
		b.WriteString("## Run notes\n\n")
		for _, e := range register.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n*This register is regulatory information, not legal advice. Verify flagged entries against the cited sources.*\n")
	return b.String()
}

func trimExcerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
