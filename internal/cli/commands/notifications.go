package commands

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/taskdeck-dev/taskdeck/internal/cli/client"
)

// NewNotificationsCmd creates the notifications command group
func NewNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "Read and manage notifications",
	}

	cmd.AddCommand(newNotificationsListCmd())
	cmd.AddCommand(newNotificationsReadCmd())
	return cmd
}

func newNotificationsListCmd() *cobra.Command {
	var unread bool
	var serverAlias string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotificationsList(cmd.Context(), unread, WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().BoolVar(&unread, "unread", false, "Only show unread notifications")
	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses the selected server if not specified)")

	return cmd
}

func runNotificationsList(ctx context.Context, unreadOnly bool, opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}
	if _, err := rt.requireSession(ctx); err != nil {
		return err
	}

	var filters client.NotificationFilters
	if unreadOnly {
		isRead := false
		filters.IsRead = &isRead
	}

	notifications, err := rt.client.ListNotifications(ctx, filters)
	if err != nil {
		return err
	}

	count, err := rt.client.UnreadCount(ctx)
	if err != nil {
		return err
	}

	if len(notifications) == 0 {
		rt.println("No notifications.")
		return nil
	}

	rt.printf("%d unread\n\n", count)

	w := tabwriter.NewWriter(rt.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\t \tTYPE\tTITLE\tCREATED AT")
	fmt.Fprintln(w, "──\t \t────\t─────\t──────────")

	for _, n := range notifications {
		marker := " "
		if !n.IsRead {
			marker = "●"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", n.ID, marker, n.NotificationType, n.Title, n.CreatedAt)
	}

	return w.Flush()
}

func newNotificationsReadCmd() *cobra.Command {
	var all bool
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "read [notification-id]",
		Short: "Mark a notification (or all with --all) as read",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("pass either a notification ID or --all")
			}
			var id int64
			if !all {
				parsed, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || parsed <= 0 {
					return fmt.Errorf("invalid notification ID %q", args[0])
				}
				id = parsed
			}
			return runNotificationsRead(cmd.Context(), id, WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Mark every notification as read")
	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses the selected server if not specified)")

	return cmd
}

// runNotificationsRead marks id as read, or every notification when id is 0
func runNotificationsRead(ctx context.Context, id int64, opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}
	if _, err := rt.requireSession(ctx); err != nil {
		return err
	}

	if id == 0 {
		if err := rt.client.MarkAllNotificationsRead(ctx); err != nil {
			return err
		}
		rt.println("✓ All notifications marked as read")
		return nil
	}

	if err := rt.client.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	rt.printf("✓ Notification %d marked as read\n", id)
	return nil
}
