package commands

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password, serverAlias string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with a Taskdeck server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), email, password, WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set TASKDECK_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set TASKDECK_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses the selected server if not specified)")

	return cmd
}

func runLogin(ctx context.Context, email, password string, opts ...Option) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("TASKDECK_EMAIL")
	}
	if password == "" {
		password = os.Getenv("TASKDECK_PASSWORD")
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or TASKDECK_EMAIL env var)")
	}

	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}

	if password == "" {
		password, err = readPassword("Password: ")
		if err != nil {
			return err
		}
	}

	rt.printf("Logging in to %s (%s)...\n", rt.server.Alias, rt.server.URL)

	user, err := rt.session.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	rt.println("✓ Login successful!")
	rt.printf("  User: %s (%s)\n", user.FullName(), user.Email)
	if user.Role != "" {
		rt.printf("  Role: %s\n", user.Role)
	}

	return nil
}

// readPassword prompts on the terminal; piped stdin is rejected
func readPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or TASKDECK_PASSWORD env var)")
	}

	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}
