package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskslot/pkg/errs"
	"github.com/harrisonrobin/taskslot/pkg/metrics"
	"github.com/harrisonrobin/taskslot/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, spec string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, optionally scheduling on a cron spec",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := a.mgr.Config()
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if spec == "" {
				spec = cfg.Server.Cron
			}

			src, err := a.openSources(ctx, false)
			if err != nil {
				return err
			}
			defer src.Close()
			if src.store == nil {
				if src.store, err = a.openStore(cfg); err != nil {
					return err
				}
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			srv := server.New(server.Deps{
				Tasks:    src.tasks,
				Calendar: src.cal,
				Policy:   a.mgr,
				Store:    src.store,
				Metrics:  metrics.New(reg),
				Gatherer: reg,
				Log:      a.log.With().Str("component", "http").Logger(),
			})

			go func() {
				if err := a.mgr.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					a.log.Warn().Err(err).Msg("config watcher stopped")
				}
			}()

			if spec != "" {
				loc, err := a.mgr.Get().Location()
				if err != nil {
					return err
				}
				c, err := startCron(ctx, spec, loc, srv, a.log)
				if err != nil {
					return err
				}
				defer c.Stop()
			}

			if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
				a.log.Warn().Err(err).Msg("sd_notify failed")
			} else if sent {
				a.log.Debug().Msg("notified systemd of readiness")
			}

			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	cmd.Flags().StringVar(&spec, "cron", "", `schedule runs on a cron spec, e.g. "0 * * * *" (default: server.cron)`)
	return cmd
}

// startCron runs a scheduling pass on spec. A tick is skipped while the previous
// one is still running.
func startCron(ctx context.Context, spec string, loc *time.Location, srv *server.Server, log zerolog.Logger) (*cron.Cron, error) {
	cl := cronLogger{log: log.With().Str("component", "cron").Logger()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	_, err := c.AddFunc(spec, func() {
		res, err := srv.Schedule(ctx, false)
		if err != nil {
			cl.log.Error().Err(err).Msg("scheduled run failed")
			return
		}
		cl.log.Info().Str("run_id", res.RunID).Int("placed", len(res.Placements)).Msg("scheduled run finished")
	})
	if err != nil {
		return nil, errs.NewConfigError("server.cron", "%v", err)
	}
	c.Start()
	log.Info().Str("spec", spec).Msg("cron scheduling enabled")
	return c, nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
