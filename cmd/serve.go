package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API server",
		Long: `Starts the long-running service: the HTTP API for submitting,
observing and canceling scrape jobs, the job dispatcher, and the
Prometheus metrics endpoint. Stops gracefully on SIGINT/SIGTERM.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			application, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close(cmd.Context())

			application.Logger().Info("serving",
				zap.Int("port", cfg.Server.Port),
				zap.String("environment", cfg.Environment))
			return application.Serve(ctx)
		},
	}
}
