package cmd

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/harrisonrobin/taskslot/pkg/auth"
	"github.com/harrisonrobin/taskslot/pkg/config"
	"github.com/harrisonrobin/taskslot/pkg/errs"
	"github.com/harrisonrobin/taskslot/pkg/google"
	"github.com/harrisonrobin/taskslot/pkg/graph"
	"github.com/harrisonrobin/taskslot/pkg/metrics"
	"github.com/harrisonrobin/taskslot/pkg/orgmode"
	"github.com/harrisonrobin/taskslot/pkg/scheduler"
	"github.com/harrisonrobin/taskslot/pkg/store"
	"github.com/harrisonrobin/taskslot/pkg/taskwarrior"
)

type sources struct {
	tasks scheduler.TaskSource
	cal   scheduler.CalendarSource
	store *store.Store
}

func (s *sources) Close() {
	if s != nil && s.store != nil {
		_ = s.store.Close()
	}
}

func (a *app) storePath(cfg config.Config) string {
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	return filepath.Join(a.dir(), "tasks.db")
}

func (a *app) openStore(cfg config.Config) (*store.Store, error) {
	return store.Open(a.storePath(cfg), a.log)
}

// openSources builds the configured task and calendar providers. Without
// interactive, a missing OAuth token is an error instead of a browser prompt.
func (a *app) openSources(ctx context.Context, interactive bool) (*sources, error) {
	cfg := a.mgr.Config()
	s := &sources{}

	var graphClient *graph.Client
	graphFor := func() (*graph.Client, error) {
		if graphClient != nil {
			return graphClient, nil
		}
		hc, err := a.graphHTTP(ctx, cfg.Graph, interactive)
		if err != nil {
			return nil, err
		}
		graphClient = graph.New(hc, cfg.Graph.BaseURL,
			graph.WithRate(cfg.Graph.RatePerSec),
			graph.WithLogger(a.log.With().Str("component", "graph").Logger()),
		)
		return graphClient, nil
	}
	var googleClient *http.Client
	googleFor := func() (*http.Client, error) {
		if googleClient != nil {
			return googleClient, nil
		}
		oc, err := auth.GoogleConfig(a.dir(), auth.GoogleScopes)
		if err != nil {
			return nil, err
		}
		googleClient, err = auth.Client(ctx, auth.ProviderGoogle, oc, filepath.Join(a.dir(), auth.GoogleTokenFile), interactive)
		return googleClient, err
	}

	var err error
	switch cfg.TaskSource {
	case "graph":
		s.tasks, err = graphFor()
	case "google":
		var hc *http.Client
		if hc, err = googleFor(); err == nil {
			s.tasks, err = google.NewTasks(ctx, hc)
		}
	case "taskwarrior":
		s.tasks = taskwarrior.NewClient(cfg.Taskwarrior.Filter)
	case "orgmode":
		s.tasks = orgmode.NewSource(cfg.Org.Files)
	case "local":
		s.store, err = a.openStore(cfg)
		s.tasks = s.store
	default:
		err = errs.NewConfigError("task_source", "unknown source %q", cfg.TaskSource)
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	switch cfg.Calendar.Provider {
	case "graph":
		s.cal, err = graphFor()
	case "google":
		var hc *http.Client
		if hc, err = googleFor(); err == nil {
			s.cal, err = google.NewCalendar(ctx, hc, cfg.Calendar.Name)
		}
	default:
		err = errs.NewConfigError("calendar.provider", "unknown provider %q", cfg.Calendar.Provider)
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// graphHTTP prefers a ready token from the environment and falls back to the
// OAuth flow when a client id is configured.
func (a *app) graphHTTP(ctx context.Context, g config.GraphConfig, interactive bool) (*http.Client, error) {
	if g.ClientID == "" || (g.TokenEnv != "" && os.Getenv(g.TokenEnv) != "") {
		return auth.EnvClient(ctx, auth.ProviderGraph, g.TokenEnv)
	}
	oc, err := auth.MicrosoftConfig(g.ClientID, g.Tenant)
	if err != nil {
		return nil, err
	}
	return auth.Client(ctx, auth.ProviderGraph, oc, filepath.Join(a.dir(), auth.GraphTokenFile), interactive)
}

func (a *app) newScheduler(src *sources, m *metrics.Metrics) (*scheduler.Scheduler, error) {
	return scheduler.New(src.tasks, src.cal, a.mgr.Get(),
		scheduler.WithLogger(a.log),
		scheduler.WithMetrics(m),
	)
}
