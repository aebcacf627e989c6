package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/taskdeck-dev/taskdeck/internal/cli/config"
)

type initOptions struct {
	wsURL string
	alias string
	out   io.Writer
}

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init <api-url>",
		Short: "Add a Taskdeck server to ./taskdeck.json",
		Example: `  $ taskdeck init http://localhost:8000/api
  $ taskdeck init https://taskdeck.example.com/api --alias production`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.out = cmd.OutOrStdout()
			return runInitWithOptions(args, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.wsURL, "ws-url", "", "WebSocket notification URL (derived from the API URL if not set)")
	cmd.Flags().StringVar(&opts.alias, "alias", "", "Server alias (defaults to server-N)")

	return cmd
}

func runInitWithOptions(args []string, opts *initOptions) error {
	apiURL := args[0]
	out := opts.out
	if out == nil {
		out = os.Stdout
	}

	v := validator.New()
	if err := v.Var(apiURL, "required,url"); err != nil {
		return fmt.Errorf("invalid API URL %q: must be an absolute URL such as http://localhost:8000/api", apiURL)
	}
	if opts.wsURL != "" {
		if err := v.Var(opts.wsURL, "url"); err != nil {
			return fmt.Errorf("invalid WebSocket URL %q", opts.wsURL)
		}
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Fprintln(out, "Found existing taskdeck.json")
	} else {
		cfg = &config.Config{
			Servers: []config.Server{},
		}
		isNewConfig = true
	}

	if _, err := cfg.GetServerByURL(apiURL); err == nil {
		fmt.Fprintf(out, "Server %s already exists in taskdeck.json\n", apiURL)
		return nil
	}

	alias := opts.alias
	if alias == "" {
		alias = fmt.Sprintf("server-%d", len(cfg.Servers)+1)
	}
	if _, err := cfg.GetServerByAlias(alias); err == nil {
		return fmt.Errorf("alias '%s' is already used in taskdeck.json", alias)
	}

	server := config.Server{
		Alias: alias,
		URL:   apiURL,
		WSURL: opts.wsURL,
	}
	if _, err := server.NotificationsURL(); err != nil {
		return err
	}
	cfg.Servers = append(cfg.Servers, server)

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if isNewConfig {
		fmt.Fprintf(out, "✓ Created ./taskdeck.json with server %s (%s)\n", apiURL, alias)
	} else {
		fmt.Fprintf(out, "✓ Added server %s (%s) to ./taskdeck.json\n", apiURL, alias)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'taskdeck register' if you don't have an account yet")
	fmt.Fprintln(out, "  2. Run 'taskdeck login' to authenticate")

	return nil
}
