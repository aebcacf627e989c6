package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskdeck-dev/taskdeck/internal/account"
)

// NewProfileCmd creates the profile command group
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your profile",
	}

	cmd.AddCommand(newProfileUpdateCmd())
	return cmd
}

func newProfileUpdateCmd() *cobra.Command {
	var values account.Profile
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields",
		Example: `  $ taskdeck profile update --first-name Ada --last-name Lovelace
  $ taskdeck profile update --role PM`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var update account.ProfileUpdate
			flags := cmd.Flags()
			if flags.Changed("username") {
				update.Username = &values.Username
			}
			if flags.Changed("email") {
				update.Email = &values.Email
			}
			if flags.Changed("first-name") {
				update.FirstName = &values.FirstName
			}
			if flags.Changed("last-name") {
				update.LastName = &values.LastName
			}
			if flags.Changed("role") {
				update.Role = &values.Role
			}
			return runProfileUpdate(cmd.Context(), update, WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&values.Username, "username", "", "New username")
	cmd.Flags().StringVar(&values.Email, "email", "", "New email address")
	cmd.Flags().StringVar(&values.FirstName, "first-name", "", "New first name")
	cmd.Flags().StringVar(&values.LastName, "last-name", "", "New last name")
	cmd.Flags().StringVar(&values.Role, "role", "", "New role")
	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses the selected server if not specified)")

	return cmd
}

func runProfileUpdate(ctx context.Context, update account.ProfileUpdate, opts ...Option) error {
	if update.Empty() {
		return fmt.Errorf("nothing to update (pass at least one field flag)")
	}

	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}

	if _, err := rt.requireSession(ctx); err != nil {
		return err
	}

	user, err := rt.session.UpdateProfile(ctx, update)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rt.println("✓ Profile updated")
	rt.printf("  %s <%s>\n", user.FullName(), user.Email)
	return nil
}
