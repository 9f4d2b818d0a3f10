package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskslot/pkg/rank"
)

func newRankCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rank",
		Aliases: []string{"todo"},
		Short:   "List uncompleted tasks in scheduling order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := a.openSources(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer src.Close()

			tiers, err := src.tasks.FetchUncompletedTasks(cmd.Context())
			if err != nil {
				return err
			}
			ranked := rank.Rank(tiers, time.Now())
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), ranked)
			}
			renderRanking(cmd.OutOrStdout(), ranked, a.mgr.Get())
			return nil
		},
	}
}
