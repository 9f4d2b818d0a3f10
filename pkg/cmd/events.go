package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

func newEventsCmd(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List calendar events from now on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := a.openSources(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer src.Close()

			p := a.mgr.Get()
			end := time.Duration(days) * 24 * time.Hour
			if days <= 0 {
				end = p.Lookahead()
			}
			now := time.Now()
			events, err := src.cal.FetchEvents(cmd.Context(), now, now.Add(end))
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), events)
			}
			loc, err := p.Location()
			if err != nil {
				return err
			}
			renderEvents(cmd.OutOrStdout(), events, loc)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "days ahead to list (default: the policy's lookahead)")
	return cmd
}
