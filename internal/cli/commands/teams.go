package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewTeamsCmd creates the teams command group
func NewTeamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "teams",
		Aliases: []string{"team"},
		Short:   "Work with teams",
	}

	cmd.AddCommand(newTeamsListCmd())
	return cmd
}

func newTeamsListCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTeamsList(cmd.Context(), WithServerAlias(serverAlias))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses the selected server if not specified)")

	return cmd
}

func runTeamsList(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}
	if _, err := rt.requireSession(ctx); err != nil {
		return err
	}

	teams, err := rt.client.ListTeams(ctx)
	if err != nil {
		return err
	}

	if len(teams) == 0 {
		rt.println("No teams found.")
		return nil
	}

	w := tabwriter.NewWriter(rt.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMEMBERS\tDESCRIPTION")
	fmt.Fprintln(w, "──\t────\t───────\t───────────")

	for _, team := range teams {
		members := "-"
		if team.MemberCount != nil {
			members = fmt.Sprintf("%d", *team.MemberCount)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", team.ID, team.Name, members, team.Description)
	}

	return w.Flush()
}
