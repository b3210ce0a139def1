// Package activity implements the activity subcommand: folding
// best-attempt percentages from activity report exports into lecture
// section gradebooks.
package activity

import (
	"github.com/spf13/cobra"

	"github.com/gradekeep/gradekeep/cmd/application"
	"github.com/gradekeep/gradekeep/pkg/activity"
	"github.com/gradekeep/gradekeep/pkg/errors"
)

// NewCommand creates the activity command.
func NewCommand(app application.Application) *cobra.Command {
	var (
		lectureFiles []string
		columnNames  []string
		outputDir    string
	)

	cmd := &cobra.Command{
		Use:   "activity REPORT...",
		Short: "Fold activity report scores into lecture gradebooks",
		Long: `Activity reads one or more activity report exports, keeps each
student's best attempt as a percentage, and writes the result into a
column of every lecture section gradebook.

With a single --name and multiple reports, scores are aggregated: the
column holds each student's best percentage across all reports and a
companion "<name> Submitted" column counts reports submitted. With one
--name per report, each report fills its own column.

Each gradebook is written next to its input as <name>_merged.csv.`,
		Example: `  gradekeep activity week3_q1.csv week3_q2.csv -l section_A.csv -n "W3 CA"
  gradekeep activity quiz1.csv quiz2.csv -l section_A.csv -n "W1 CA" -n "W2 CA"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(lectureFiles) == 0 {
				return errors.NewValidationError("lecture", nil, "at least one lecture gradebook is required")
			}
			runner := activity.NewRunner(activity.WithLogger(app.Logger()))
			return runner.Run(args, lectureFiles, columnNames, outputDir)
		},
	}

	cmd.Flags().StringSliceVarP(&lectureFiles, "lecture", "l", nil, "lecture section CSV files (required)")
	cmd.Flags().StringSliceVarP(&columnNames, "name", "n", nil, "gradebook column name(s) to fill (required)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "output directory for merged gradebooks")
	_ = cmd.MarkFlagRequired("lecture")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
