// Package cmd defines the expertfinder CLI: the synchronous scrape runner,
// the long-running API server, and the record query commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/config"
)

var (
	cfgFile string
	devLog  bool

	// cfg is loaded by the root PersistentPreRunE and read by every
	// subcommand's RunE.
	cfg config.Config
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expertfinder",
		Short: "Finds academic staff with AI expertise",
		Long: `expertfinder crawls a university staff directory and Google Scholar,
classifies each lecturer's declared interests and publication titles for
AI relevance, and persists deduplicated AI skill sets per lecturer.

Run a scrape directly with "scrape", serve the HTTP API with "serve",
or query stored records with "lecturers".`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if cmd.Flags().Changed("dev") {
				loaded.Logging.Development = devLog
			}
			cfg = loaded
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config.yaml (optional)")
	cmd.PersistentFlags().BoolVar(&devLog, "dev", false, "force development logging")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLecturersCmd())
	cmd.AddCommand(newSchoolsCmd())
	return cmd
}

// Execute is the CLI entry point. Configuration problems are the only
// errors that reach the exit code; pipeline failures are reported per
// lecturer and never abort a run.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// signalContext cancels on SIGINT/SIGTERM so in-flight work can finish
// cooperatively.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
