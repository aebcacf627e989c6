package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskdeck-dev/taskdeck/internal/account"
)

type registerFlags struct {
	username  string
	email     string
	password  string
	firstName string
	lastName  string
	role      string
}

// NewRegisterCmd creates the register command
func NewRegisterCmd() *cobra.Command {
	var flags registerFlags
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Long: `Create a new account on the selected server.

Registration does not log you in. Run 'taskdeck login' afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd.Context(), flags, WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&flags.username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&flags.email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&flags.password, "password", "", "Password (or set TASKDECK_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&flags.firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&flags.lastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&flags.role, "role", "DEV", "Role (e.g. DEV, PM, QA)")
	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses the selected server if not specified)")

	return cmd
}

func runRegister(ctx context.Context, flags registerFlags, opts ...Option) error {
	if flags.username == "" || flags.email == "" {
		return fmt.Errorf("--username and --email are required")
	}

	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}

	password := flags.password
	if password == "" {
		password = os.Getenv("TASKDECK_PASSWORD")
	}
	confirm := password
	if password == "" {
		if password, err = readPassword("Password: "); err != nil {
			return err
		}
		if confirm, err = readPassword("Confirm password: "); err != nil {
			return err
		}
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	err = rt.session.Register(ctx, account.RegisterData{
		Username:  flags.username,
		Email:     flags.email,
		Password:  password,
		Password2: confirm,
		FirstName: flags.firstName,
		LastName:  flags.lastName,
		Role:      flags.role,
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	rt.printf("✓ Account %s created on %s\n", flags.username, rt.server.Alias)
	rt.println("\nNext step: run 'taskdeck login' to sign in")
	return nil
}
