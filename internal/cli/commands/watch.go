package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskdeck-dev/taskdeck/internal/cli/client"
	"github.com/taskdeck-dev/taskdeck/internal/realtime"
)

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	var markRead bool
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream notifications as they arrive",
		Long: `Stream notifications as they arrive over the real-time channel.

The connection is retried a few times if it drops. Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), markRead, WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().BoolVar(&markRead, "mark-read", false, "Mark each notification as read once shown")
	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses the selected server if not specified)")

	return cmd
}

func runWatch(ctx context.Context, markRead bool, opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}
	if _, err := rt.requireSession(ctx); err != nil {
		return err
	}

	wsURL, err := rt.server.NotificationsURL()
	if err != nil {
		return err
	}

	var listener *realtime.Listener
	listener = realtime.New(wsURL, rt.store, func(msg realtime.Message) {
		var n client.Notification
		if err := msg.DecodeNotification(&n); err != nil {
			rt.logger.Warn().Err(err).Msg("Skipping notification")
			return
		}
		rt.printf("● [%s] %s\n", n.NotificationType, n.Title)
		if n.Message != "" {
			rt.printf("  %s\n", n.Message)
		}

		if markRead && n.ID > 0 {
			if err := listener.Send(ctx, realtime.NewMarkRead(n.ID)); err != nil {
				rt.logger.Warn().Err(err).Int64("notification_id", n.ID).Msg("Failed to mark notification as read")
			}
		}
	}, realtime.WithLogger(rt.logger))

	rt.printf("Watching notifications on %s (Ctrl+C to stop)...\n", rt.server.Alias)

	err = listener.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, realtime.ErrNoAccessToken):
		return errNotLoggedIn
	default:
		return fmt.Errorf("notification stream stopped: %w", err)
	}
}
