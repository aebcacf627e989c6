package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskdeck-dev/taskdeck/internal/cli/config"
	"github.com/taskdeck-dev/taskdeck/internal/cli/serverselect"
	"github.com/taskdeck-dev/taskdeck/internal/cli/userconfig"
)

// NewSelectServerCmd creates the select-server command
func NewSelectServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select-server [url-or-alias]",
		Short: "Select the server to use for commands",
		Long: `Select the server to use for commands.

If no param is provided, an interactive prompt will be shown.

Examples:
  $ taskdeck select-server                            # Interactive selection
  $ taskdeck select-server http://localhost:8000/api  # Select by URL
  $ taskdeck select-server production                 # Select by alias`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var urlOrAlias string
			if len(args) > 0 {
				urlOrAlias = args[0]
			}
			return runSelectServer(urlOrAlias, serverselect.PromptServerSelection, cmd.OutOrStdout())
		},
	}

	return cmd
}

func runSelectServer(urlOrAlias string, prompt serverselect.Prompter, out io.Writer) error {
	if out == nil {
		out = os.Stdout
	}

	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return fmt.Errorf("failed to load config: %w\nRun 'taskdeck init' to create a configuration file", err)
	}

	var server *config.Server
	if urlOrAlias != "" {
		server, err = cfg.GetServerByURLOrAlias(urlOrAlias)
	} else {
		server, err = prompt(cfg)
	}
	if err != nil {
		return err
	}

	if err := userconfig.SetSelectedServer(server.URL); err != nil {
		return fmt.Errorf("failed to save selected server: %w", err)
	}

	fmt.Fprintf(out, "Selected server: %s (%s)\n", server.Alias, server.URL)
	return nil
}
