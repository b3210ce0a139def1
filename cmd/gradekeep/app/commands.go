package app

import (
	"github.com/spf13/cobra"

	"github.com/gradekeep/gradekeep/cmd/gradekeep/cmd/activity"
	"github.com/gradekeep/gradekeep/cmd/gradekeep/cmd/merge"
	"github.com/gradekeep/gradekeep/cmd/gradekeep/cmd/score"
	"github.com/gradekeep/gradekeep/cmd/gradekeep/cmd/serve"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(merge.NewCommand(a))
	rootCmd.AddCommand(score.NewCommand(a))
	rootCmd.AddCommand(activity.NewCommand(a))
	rootCmd.AddCommand(serve.NewCommand(a))
	rootCmd.AddCommand(a.newVersionCommand())
}

// newVersionCommand creates the version command.
func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("gradekeep %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit: %s\n", a.commit)
				cmd.Printf("  built:  %s\n", a.date)
			}
		},
	}
}
