package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskslot/pkg/store"
)

func newTasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage the local task store",
	}

	var priority int
	var estimate string
	add := &cobra.Command{
		Use:   "add TEXT",
		Short: "Add a local task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(a.mgr.Config())
			if err != nil {
				return err
			}
			defer st.Close()

			t, err := st.Create(cmd.Context(), args[0], priority, estimate)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), t)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added task %d: %s\n", t.ID, t.Task)
			return err
		},
	}
	add.Flags().IntVarP(&priority, "priority", "p", 1, "priority tier, 1 is most urgent")
	add.Flags().StringVarP(&estimate, "estimate", "e", "", `time estimate such as "2h"`)

	list := &cobra.Command{
		Use:   "list",
		Short: "List local tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore(a.mgr.Config())
			if err != nil {
				return err
			}
			defer st.Close()

			tasks, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), tasks)
			}
			renderLocalTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}

	done := &cobra.Command{
		Use:   "done ID",
		Short: "Mark a local task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			st, err := a.openStore(a.mgr.Config())
			if err != nil {
				return err
			}
			defer st.Close()
			return st.Complete(cmd.Context(), id)
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete every local task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore(a.mgr.Config())
			if err != nil {
				return err
			}
			defer st.Close()
			return st.Reset(cmd.Context())
		},
	}

	cmd.AddCommand(add, list, done, reset)
	return cmd
}

func newExportICSCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Export local tasks as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore(a.mgr.Config())
			if err != nil {
				return err
			}
			defer st.Close()

			tasks, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return store.WriteICS(cmd.OutOrStdout(), tasks, time.Now())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := store.WriteICS(f, tasks, time.Now()); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default: stdout)")
	return cmd
}
