package cmd

import (
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskslot/pkg/scheduler"
)

func newScheduleCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Book ranked tasks into free calendar slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := a.openSources(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer src.Close()

			sch, err := a.newScheduler(src, nil)
			if err != nil {
				return err
			}
			var res *scheduler.Result
			if dryRun {
				res, err = sch.Plan(cmd.Context())
			} else {
				res, err = sch.Run(cmd.Context())
			}
			// Partial progress is still worth showing when a run aborts.
			if res != nil {
				if perr := a.printResult(cmd, res); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute placements without creating events")
	return cmd
}

func newRescheduleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule",
		Short: "Remove upcoming taskslot events and schedule again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := a.openSources(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer src.Close()

			sch, err := a.newScheduler(src, nil)
			if err != nil {
				return err
			}
			res, err := sch.Reschedule(cmd.Context())
			if res != nil {
				if perr := a.printResult(cmd, res); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		},
	}
}

func (a *app) printResult(cmd *cobra.Command, res *scheduler.Result) error {
	if a.jsonOut {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	loc, err := a.mgr.Get().Location()
	if err != nil {
		return err
	}
	renderResult(cmd.OutOrStdout(), res, loc)
	return nil
}
