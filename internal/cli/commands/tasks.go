package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/taskdeck-dev/taskdeck/internal/cli/client"
)

// NewTasksCmd creates the tasks command group
func NewTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Work with tasks",
	}

	cmd.AddCommand(newTasksListCmd())
	return cmd
}

func newTasksListCmd() *cobra.Command {
	var filters client.TaskFilters
	var projectID int64
	var serverAlias string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the tasks of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasksList(cmd.Context(), projectID, filters, WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().Int64Var(&projectID, "project", 0, "Project ID (required)")
	cmd.Flags().StringVar(&filters.Status, "status", "", "Filter by status (TODO, IN_PROGRESS, IN_REVIEW, COMPLETED, BLOCKED)")
	cmd.Flags().StringVar(&filters.Priority, "priority", "", "Filter by priority (LOW, MEDIUM, HIGH, URGENT)")
	cmd.Flags().Int64Var(&filters.Assignee, "assignee", 0, "Filter by assignee user ID")
	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses the selected server if not specified)")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runTasksList(ctx context.Context, projectID int64, filters client.TaskFilters, opts ...Option) error {
	if projectID <= 0 {
		return fmt.Errorf("--project must be a positive project ID")
	}

	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}
	if _, err := rt.requireSession(ctx); err != nil {
		return err
	}

	tasks, err := rt.client.ListTasks(ctx, projectID, filters)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		rt.printf("No tasks found in project %d.\n", projectID)
		return nil
	}

	w := tabwriter.NewWriter(rt.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tASSIGNEE\tDUE")
	fmt.Fprintln(w, "──\t─────\t──────\t────────\t────────\t───")

	for _, task := range tasks {
		assignee := "-"
		if task.Assignee != nil {
			assignee = task.Assignee.Username
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			task.ID,
			task.Title,
			task.Status,
			task.Priority,
			assignee,
			valueOr(task.DueDate, "-"),
		)
	}

	return w.Flush()
}
