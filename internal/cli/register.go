package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PubuduLasith093/RiskSafeAI/internal/pipeline"
)

func newRegisterCmd(a *app) *cobra.Command {
	var outputDir string
	var jsonOnly bool

	cmd := &cobra.Command{
		Use:   "register [query]",
		Short: "Generate an obligation register for a business description",
		Example: `  risksafe register "we provide online personal loans to consumers"
  risksafe register --output ./out "mortgage broking for retail clients"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			p, err := buildPipeline(a)
			if err != nil {
				return err
			}

			register, err := p.Generate(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("generate register: %w", err)
			}

			data, err := pipeline.RenderJSON(register)
			if err != nil {
				return err
			}

			if outputDir == "" {
				if jsonOnly {
					fmt.Fprintln(cmd.OutOrStdout(), string(data))
				} else {
					fmt.Fprint(cmd.OutOrStdout(), pipeline.RenderMarkdown(register))
				}
				return nil
			}

			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			base := filepath.Join(outputDir, "register-"+register.RunID)
			if err := os.WriteFile(base+".json", data, 0o644); err != nil {
				return fmt.Errorf("write json register: %w", err)
			}
			if !jsonOnly {
				md := pipeline.RenderMarkdown(register)
				if err := os.WriteFile(base+".md", []byte(md), 0o644); err != nil {
					return fmt.Errorf("write markdown register: %w", err)
				}
			}

			a.logger.Info("register written",
				zap.String("path", base+".json"),
				zap.Int("obligations", register.Metadata.TotalObligations))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "write register files to this directory instead of stdout")
	cmd.Flags().BoolVar(&jsonOnly, "json", false, "emit JSON only")
	return cmd
}
