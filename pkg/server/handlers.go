package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harrisonrobin/taskslot/pkg/config"
	"github.com/harrisonrobin/taskslot/pkg/errs"
	"github.com/harrisonrobin/taskslot/pkg/rank"
	"github.com/harrisonrobin/taskslot/pkg/slot"
	"github.com/harrisonrobin/taskslot/pkg/store"
)

type todoItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Tier       int       `json:"tier"`
	Importance string    `json:"importance"`
	Due        time.Time `json:"due"`
	Score      float64   `json:"score"`
}

type eventItem struct {
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// abort writes err with a status chosen from its kind.
func (s *Server) abort(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.IsConfig(err):
		status = http.StatusBadRequest
	case errs.IsAuth(err):
		status = http.StatusUnauthorized
	case errs.IsRemote(err):
		status = http.StatusBadGateway
	case errors.Is(err, slot.ErrNoSlotAvailable):
		status = http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	}
	s.deps.Log.Warn().Err(err).Str("path", c.FullPath()).Int("status", status).Msg("request failed")
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"name": "taskslot"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleTodo lists uncompleted tasks in scheduling order.
func (s *Server) handleTodo(c *gin.Context) {
	tiers, err := s.deps.Tasks.FetchUncompletedTasks(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	ranked := rank.Rank(tiers, s.deps.Clock())
	out := make([]todoItem, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, todoItem{
			ID:         r.Task.ID,
			Title:      r.Task.Title,
			Tier:       r.Tier,
			Importance: string(r.Task.Importance),
			Due:        r.Task.EffectiveDue(),
			Score:      r.Score,
		})
	}
	c.JSON(http.StatusOK, out)
}

// handleEvents lists events between ?start and ?end (RFC 3339), defaulting to the
// policy's fetch window around now.
func (s *Server) handleEvents(c *gin.Context) {
	p := s.deps.Policy.Get().WithDefaults()
	now := s.deps.Clock()
	start, end := now.Add(-p.Lookback()), now.Add(p.Lookahead())

	for _, q := range []struct {
		name string
		dst  *time.Time
	}{{"start", &start}, {"end", &end}} {
		if v := c.Query(q.name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + q.name + ": " + err.Error()})
				return
			}
			*q.dst = t
		}
	}

	events, err := s.deps.Calendar.FetchEvents(c.Request.Context(), start, end)
	if err != nil {
		s.abort(c, err)
		return
	}
	out := make([]eventItem, 0, len(events))
	for _, ev := range events {
		out = append(out, eventItem{ID: ev.ID, Subject: ev.Subject, Start: ev.Start, End: ev.End})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSchedule(c *gin.Context) {
	dryRun, _ := strconv.ParseBool(c.DefaultQuery("dry_run", "false"))
	res, err := s.Schedule(c.Request.Context(), dryRun)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleReschedule(c *gin.Context) {
	res, err := s.Reschedule(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Policy.Get())
}

func (s *Server) handleSetConfig(c *gin.Context) {
	var p config.Policy
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.Policy.Set(p); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, s.deps.Policy.Get())
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.deps.Store.Reset(c.Request.Context()); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// handleCreateTask takes ?task=&priority=[&estimate=].
func (s *Server) handleCreateTask(c *gin.Context) {
	priority, err := strconv.Atoi(c.Query("priority"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "priority must be an integer"})
		return
	}
	t, err := s.deps.Store.Create(c.Request.Context(), c.Query("task"), priority, c.Query("estimate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.deps.Store.List(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	if tasks == nil {
		tasks = []store.LocalTask{}
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	t, err := s.deps.Store.Get(c.Request.Context(), id)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleICS(c *gin.Context) {
	tasks, err := s.deps.Store.List(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="calendar.ics"`)
	c.Header("Content-Type", "text/calendar; charset=utf-8")
	c.Status(http.StatusOK)
	if err := store.WriteICS(c.Writer, tasks, s.deps.Clock()); err != nil {
		s.deps.Log.Error().Err(err).Msg("writing calendar export")
	}
}
