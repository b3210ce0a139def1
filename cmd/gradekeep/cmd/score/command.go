// Package score implements the score subcommand: reconciling
// before/after deadline-extension export pairs and applying late
// penalty rules.
package score

import (
	"github.com/spf13/cobra"

	"github.com/gradekeep/gradekeep/cmd/application"
	"github.com/gradekeep/gradekeep/pkg/penalty"
	"github.com/gradekeep/gradekeep/pkg/score"
)

// NewCommand creates the score command.
func NewCommand(app application.Application) *cobra.Command {
	var (
		deadlineDir string
		liftedDir   string
		outputDir   string
		rulesFile   string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Reconcile deadline and lifted-deadline export pairs",
		Long: `Score pairs each export in the deadline directory with its
counterpart in the lifted-deadline directory, carries scores recovered
after the deadline into the merged export, and applies any late
penalty rules from an adjustments file.

Per assignment it writes <name>_merged.csv, <name>_bblearn.csv, and,
when penalties were applied, <name>_scored.csv. Consolidated
all_late_submissions.csv and all_true_zeros.csv reports cover every
assignment.`,
		Example: `  gradekeep score --deadline exports/at_deadline --lifted exports/lifted
  gradekeep score -d at_deadline -l lifted -a adjustments.yaml -o merged`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := []score.Option{score.WithLogger(app.Logger())}

			if rulesFile != "" {
				rules, err := penalty.LoadRules(rulesFile)
				if err != nil {
					return err
				}
				opts = append(opts, score.WithRules(rules))
			}

			runner := score.NewRunner(opts...)
			summary, err := runner.Run(deadlineDir, liftedDir, outputDir)
			if err != nil {
				return err
			}

			app.Logger().Info().
				Int("assignments", len(summary.Assignments)).
				Int("late_submissions", summary.LateSubmissions).
				Int("true_zeros", summary.TrueZeros).
				Int("files_written", len(summary.Outputs)).
				Msg("score run complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&deadlineDir, "deadline", "d", "", "directory of exports taken at the deadline (required)")
	cmd.Flags().StringVarP(&liftedDir, "lifted", "l", "", "directory of exports taken after deadlines were lifted (required)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "merged", "output directory for merged exports and reports")
	cmd.Flags().StringVarP(&rulesFile, "adjustments", "a", "", "YAML file of late penalty rules")
	_ = cmd.MarkFlagRequired("deadline")
	_ = cmd.MarkFlagRequired("lifted")

	return cmd
}
