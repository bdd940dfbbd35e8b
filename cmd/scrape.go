package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/app"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/directory"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/id/uuid"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/pipeline"
)

func newScrapeCmd() *cobra.Command {
	var (
		schools    []string
		allSchools bool
		mode       string
		force      bool
		workers    int
		reportDir  string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Runs a scrape synchronously",
		Long: `Runs the pipeline in the foreground over the selected schools and
prints the summary. Interrupting with Ctrl-C cancels cooperatively:
in-flight lecturers finish, partial results stay persisted.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := resolveScope(schools, allSchools)
			if err != nil {
				return err
			}
			jobMode, err := pipeline.ParseMode(mode)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				cfg.Pipeline.Workers = workers
			}
			if cmd.Flags().Changed("report") {
				cfg.Reports.Dir = reportDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			application, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close(cmd.Context())

			jobID, err := uuid.New().NewRawID()
			if err != nil {
				return fmt.Errorf("generate job id: %w", err)
			}
			job := pipeline.Job{
				ID:        jobID,
				Schools:   scope,
				Mode:      jobMode,
				Force:     force,
				Submitted: time.Now().UTC(),
			}

			sum, runErr := application.Runner().Run(ctx, job)
			printSummary(cmd, job, sum)
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				application.Logger().Warn("scrape finished with errors", zap.Error(runErr))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&schools, "school", nil, "school to scrape (repeatable)")
	cmd.Flags().BoolVar(&allSchools, "all", false, "scrape every registered school")
	cmd.Flags().StringVar(&mode, "mode", "full", "pipeline stages: directory, scholar or full")
	cmd.Flags().BoolVar(&force, "force", false, "re-process lecturers already marked scholar-processed")
	cmd.Flags().IntVar(&workers, "workers", 0, "lecturer pool size per school (overrides config)")
	cmd.Flags().StringVar(&reportDir, "report", "", "delta report directory (overrides config; empty disables)")
	return cmd
}

func resolveScope(names []string, all bool) ([]directory.School, error) {
	if all {
		return directory.Schools(), nil
	}
	if len(names) == 0 {
		return nil, errors.New("select schools with --school or --all")
	}
	scope := make([]directory.School, 0, len(names))
	for _, name := range names {
		school, ok := directory.LookupSchool(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown school %q (see: expertfinder schools)", name)
		}
		scope = append(scope, school)
	}
	return scope, nil
}

func printSummary(cmd *cobra.Command, job pipeline.Job, sum pipeline.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s finished\n", job.ID)
	fmt.Fprintf(out, "  schools processed:  %d\n", sum.SchoolsProcessed)
	fmt.Fprintf(out, "  staff found:        %d\n", sum.StaffFound)
	fmt.Fprintf(out, "  profiles scraped:   %d\n", sum.ProfilesScraped)
	fmt.Fprintf(out, "  scholar matches:    %d\n", sum.ScholarMatches)
	fmt.Fprintf(out, "  lecturers updated:  %d\n", sum.LecturersUpdated)
	fmt.Fprintf(out, "  AI lecturers:       %d\n", sum.AILecturers)
	fmt.Fprintf(out, "  skipped:            %d\n", sum.Skipped)
	fmt.Fprintf(out, "  errors:             %d\n", sum.Errors)
	if sum.ReportPath != "" {
		fmt.Fprintf(out, "  delta report:       %s\n", sum.ReportPath)
	}
}
