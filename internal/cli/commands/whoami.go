package commands

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd.Context(), WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses the selected server if not specified)")

	return cmd
}

func runWhoami(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}

	user, err := rt.requireSession(ctx)
	if err != nil {
		return err
	}

	rt.printf("Logged in to %s (%s)\n\n", rt.server.Alias, rt.server.URL)
	rt.printf("  Username: %s\n", user.Username)
	rt.printf("  Name:     %s\n", user.FullName())
	rt.printf("  Email:    %s\n", user.Email)
	if user.Role != "" {
		rt.printf("  Role:     %s\n", user.Role)
	}

	// The access token may have been refreshed during bootstrap
	access, err := rt.store.AccessToken()
	if err == nil {
		if exp, ok := tokenExpiry(access); ok {
			rt.printf("  Token:    expires %s (in %s)\n", exp.Local().Format(time.RFC3339), time.Until(exp).Round(time.Second))
		}
	}

	return nil
}

// tokenExpiry reads the exp claim without verifying the signature. The server
// is the only party that can verify it.
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
