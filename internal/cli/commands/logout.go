package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens for the selected server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses the selected server if not specified)")

	return cmd
}

func runLogout(opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}

	if err := rt.session.Logout(); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	rt.printf("✓ Logged out from %s\n", rt.server.Alias)
	return nil
}
