package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/taskdeck-dev/taskdeck/internal/cli/client"
)

// NewProjectsCmd creates the projects command group
func NewProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Work with projects",
	}

	cmd.AddCommand(newProjectsListCmd())
	return cmd
}

func newProjectsListCmd() *cobra.Command {
	var filters client.ProjectFilters
	var serverAlias string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectsList(cmd.Context(), filters, WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&filters.Status, "status", "", "Filter by status (PLANNING, IN_PROGRESS, ON_HOLD, COMPLETED, CANCELLED)")
	cmd.Flags().StringVar(&filters.Priority, "priority", "", "Filter by priority (LOW, MEDIUM, HIGH, CRITICAL)")
	cmd.Flags().StringVar(&filters.Search, "search", "", "Search by name or description")
	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses the selected server if not specified)")

	return cmd
}

func runProjectsList(ctx context.Context, filters client.ProjectFilters, opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}
	if _, err := rt.requireSession(ctx); err != nil {
		return err
	}

	projects, err := rt.client.ListProjects(ctx, filters)
	if err != nil {
		return err
	}

	if len(projects) == 0 {
		rt.println("No projects found.")
		return nil
	}

	rt.printf("Projects on %s:\n\n", rt.server.Alias)

	w := tabwriter.NewWriter(rt.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPRIORITY\tPROGRESS\tDUE")
	fmt.Fprintln(w, "──\t────\t──────\t────────\t────────\t───")

	for _, p := range projects {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.0f%%\t%s\n",
			p.ID,
			p.Name,
			p.Status,
			p.Priority,
			p.Progress,
			valueOr(p.DueDate, "-"),
		)
	}

	return w.Flush()
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
