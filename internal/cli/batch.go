package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
	"github.com/PubuduLasith093/RiskSafeAI/internal/pipeline"
	"github.com/PubuduLasith093/RiskSafeAI/internal/worker"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		outputDir   string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Generate registers for every query in a file, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := readQueries(args[0])
			if err != nil {
				return err
			}
			if len(queries) == 0 {
				return fmt.Errorf("no queries in %s", args[0])
			}

			p, err := buildPipeline(a)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			outcomes := worker.Map(cmd.Context(), queries, concurrency,
				func(ctx context.Context, query string) (*model.Register, error) {
					return p.Generate(ctx, query)
				})

			failed := 0
			for i, outcome := range outcomes {
				if outcome.Skipped {
					failed++
					a.logger.Error("batch query failed",
						zap.Int("index", i+1),
						zap.String("query", queries[i]),
						zap.Error(outcome.Err))
					continue
				}

				register := outcome.Value
				data, err := pipeline.RenderJSON(register)
				if err != nil {
					return err
				}
				path := filepath.Join(outputDir, fmt.Sprintf("register-%03d-%s.json", i+1, register.RunID))
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("write register: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d/%d: %d obligations -> %s\n",
					i+1, len(queries), register.Metadata.TotalObligations, path)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d queries failed", failed, len(queries))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "registers", "directory for register files")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of queries processed in parallel")
	return cmd
}

// readQueries loads non-empty, non-comment lines
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open query file: %w", err)
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read query file: %w", err)
	}
	return queries, nil
}
