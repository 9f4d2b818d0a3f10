// Package server exposes scheduling over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskslot/pkg/config"
	"github.com/harrisonrobin/taskslot/pkg/metrics"
	"github.com/harrisonrobin/taskslot/pkg/scheduler"
	"github.com/harrisonrobin/taskslot/pkg/store"
)

// Deps are the collaborators behind the handlers. Store and Gatherer are optional;
// without them the local task and /metrics routes are not registered.
type Deps struct {
	Tasks    scheduler.TaskSource
	Calendar scheduler.CalendarSource
	Policy   config.Store
	Store    *store.Store
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Log      zerolog.Logger
	Clock    func() time.Time
}

type Server struct {
	deps   Deps
	router *gin.Engine

	// runMu serializes scheduling runs; each run reads and writes the same calendar.
	runMu sync.Mutex
}

func New(d Deps) *Server {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(d.Log))

	s := &Server{deps: d, router: router}

	router.GET("/", s.handleRoot)
	router.GET("/healthz", s.handleHealth)
	router.GET("/todo", s.handleTodo)
	router.GET("/calendar/events", s.handleEvents)
	router.POST("/schedule", s.handleSchedule)
	router.POST("/reschedule", s.handleReschedule)
	router.GET("/config", s.handleGetConfig)
	router.POST("/config", s.handleSetConfig)

	if d.Store != nil {
		router.POST("/reset", s.handleReset)
		router.POST("/tasks", s.handleCreateTask)
		router.GET("/tasks", s.handleListTasks)
		router.GET("/tasks/:id", s.handleGetTask)
		router.GET("/calendar.ics", s.handleICS)
	}
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) scheduler() (*scheduler.Scheduler, error) {
	return scheduler.New(s.deps.Tasks, s.deps.Calendar, s.deps.Policy.Get(),
		scheduler.WithLogger(s.deps.Log),
		scheduler.WithMetrics(s.deps.Metrics),
		scheduler.WithClock(s.deps.Clock),
	)
}

// Schedule performs one run under the server's run lock. Cron ticks use it too.
func (s *Server) Schedule(ctx context.Context, dryRun bool) (*scheduler.Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	sch, err := s.scheduler()
	if err != nil {
		return nil, err
	}
	if dryRun {
		return sch.Plan(ctx)
	}
	return sch.Run(ctx)
}

func (s *Server) Reschedule(ctx context.Context) (*scheduler.Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	sch, err := s.scheduler()
	if err != nil {
		return nil, err
	}
	return sch.Reschedule(ctx)
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}
