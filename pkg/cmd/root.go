// Package cmd implements the taskslot command line.
package cmd

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskslot/pkg/config"
	"github.com/harrisonrobin/taskslot/pkg/logx"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	jsonOut    bool

	mgr *config.Manager
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "taskslot",
		Short: "Book uncompleted tasks into free calendar time",
		Long: `taskslot ranks your open tasks by importance, due date and list priority,
then books each one as fixed-size work units into the free time on your calendar.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	defaultPath, _ := config.GetConfigPath()
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultPath, "config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		newScheduleCmd(a),
		newRescheduleCmd(a),
		newRankCmd(a),
		newEventsCmd(a),
		newConfigCmd(a),
		newAuthCmd(a),
		newServeCmd(a),
		newTasksCmd(a),
		newExportICSCmd(a),
	)
	return root
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.log = logx.Setup(logx.Config{Level: level, Format: cfg.Log.Format})

	a.mgr, err = config.NewManager(a.configPath, a.log)
	return err
}

// dir is where tokens, credentials and the default database live.
func (a *app) dir() string {
	return filepath.Dir(a.configPath)
}
