package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/directory"
)

func newSchoolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schools",
		Short: "Lists the crawlable school directories",

		RunE: func(cmd *cobra.Command, _ []string) error {
			// Honor a schools-file override without building the full app.
			if cfg.Directory.SchoolsFile != "" {
				if err := directory.LoadSchoolsFile(cfg.Directory.SchoolsFile); err != nil {
					return err
				}
			}

			byFaculty := make(map[string][]directory.School)
			for _, school := range directory.Schools() {
				byFaculty[school.Faculty] = append(byFaculty[school.Faculty], school)
			}
			faculties := make([]string, 0, len(byFaculty))
			for faculty := range byFaculty {
				faculties = append(faculties, faculty)
			}
			sort.Strings(faculties)

			out := cmd.OutOrStdout()
			for _, faculty := range faculties {
				fmt.Fprintf(out, "%s\n", faculty)
				for _, school := range byFaculty[faculty] {
					fmt.Fprintf(out, "  %-55s %s\n", school.Name, school.StaffURL)
				}
			}
			return nil
		},
	}
}
