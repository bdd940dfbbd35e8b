package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/app"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

func newLecturersCmd() *cobra.Command {
	var (
		school   string
		name     string
		aiOnly   bool
		skills   []string
		matchAll bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "lecturers",
		Short: "Lists stored lecturer records",
		Long: `Queries the persisted lecturer records. Skill terms match AI skills,
publication titles and declared expertise, tolerating plural and
hyphenation variants; --match-all requires every term to hit.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer application.Close(cmd.Context())

			records, err := application.Lecturers().List(cmd.Context(), store.Query{
				School:   school,
				Name:     name,
				AIOnly:   aiOnly,
				Skills:   skills,
				MatchAll: matchAll,
			})
			if err != nil {
				return fmt.Errorf("list lecturers: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			printLecturers(cmd, records)
			return nil
		},
	}

	cmd.Flags().StringVar(&school, "school", "", "filter by school name")
	cmd.Flags().StringVar(&name, "name", "", "filter by name substring")
	cmd.Flags().BoolVar(&aiOnly, "ai", false, "only lecturers with confirmed AI skills")
	cmd.Flags().StringArrayVar(&skills, "skill", nil, "skill search term (repeatable)")
	cmd.Flags().BoolVar(&matchAll, "match-all", false, "require every --skill term to match")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit full records as JSON")
	return cmd
}

func printLecturers(cmd *cobra.Command, records []*lecturer.Record) {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "no matching lecturers")
		return
	}
	for _, rec := range records {
		marker := " "
		if rec.IsAILecturer {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-34s %s\n", marker, rec.Name, rec.School)
		if len(rec.AISkills) > 0 {
			fmt.Fprintf(out, "    skills: %s\n", strings.Join(rec.AISkills, ", "))
		}
	}
	fmt.Fprintf(out, "%d lecturer(s); * marks confirmed AI expertise\n", len(records))
}
