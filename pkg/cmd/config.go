package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or change the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "view",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.mgr.Config()
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			b, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), a.mgr.Path())
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-wake-hours START END",
		Short: "Set the inclusive hour range in which work units may start",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("start hour: %w", err)
			}
			end, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("end hour: %w", err)
			}
			p := a.mgr.Get()
			p.WakeHours = []int{start, end}
			if err := a.mgr.Set(p); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wake hours set to %d-%d\n", start, end)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-timezone ZONE",
		Short: "Set the IANA zone wake hours are evaluated in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.mgr.Get()
			p.Timezone = args[0]
			if err := a.mgr.Set(p); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Timezone set to %s\n", args[0])
			return err
		},
	})

	return cmd
}
