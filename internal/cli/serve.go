package cli

import (
	"github.com/spf13/cobra"

	"github.com/PubuduLasith093/RiskSafeAI/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the register pipeline over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			p, err := buildPipeline(a)
			if err != nil {
				return err
			}

			srv := server.New(p, a.cfg.Server, a.logger)
			return srv.Run()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
