package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskdeck-dev/taskdeck/internal/cli/commands"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "taskdeck",
	Short: "Taskdeck - projects, tasks and teams from the terminal",
	Long: `Taskdeck CLI - Work with your Taskdeck projects, tasks, teams and
notifications from the command line.

Start with 'taskdeck init <api-url>', then 'taskdeck login'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	commands.Version = version

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("taskdeck version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewSelectServerCmd())
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewRegisterCmd())
	rootCmd.AddCommand(commands.NewWhoamiCmd())
	rootCmd.AddCommand(commands.NewProfileCmd())
	rootCmd.AddCommand(commands.NewProjectsCmd())
	rootCmd.AddCommand(commands.NewTasksCmd())
	rootCmd.AddCommand(commands.NewTeamsCmd())
	rootCmd.AddCommand(commands.NewNotificationsCmd())
	rootCmd.AddCommand(commands.NewWatchCmd())
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
