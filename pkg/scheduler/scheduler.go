// Package scheduler books ranked tasks into free calendar time.
//
// A run fetches uncompleted tasks and the events around now, ranks the tasks, drops
// those already on the calendar, and then places each task's work units one after the
// other. Each placement is folded into the busy set before the next slot search, so a
// run is strictly sequential. A failed remote write aborts the run; events already
// created stay on the calendar and are picked up by deduplication on the next run.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskslot/pkg/config"
	"github.com/harrisonrobin/taskslot/pkg/interval"
	"github.com/harrisonrobin/taskslot/pkg/metrics"
	"github.com/harrisonrobin/taskslot/pkg/model"
	"github.com/harrisonrobin/taskslot/pkg/rank"
	"github.com/harrisonrobin/taskslot/pkg/slot"
	"github.com/harrisonrobin/taskslot/pkg/util"
)

// TaskSource yields uncompleted tasks grouped by priority tier.
type TaskSource interface {
	FetchUncompletedTasks(ctx context.Context) (map[int][]model.Task, error)
}

// CalendarSource reads and writes calendar events.
type CalendarSource interface {
	FetchEvents(ctx context.Context, start, end time.Time) ([]model.Event, error)
	CreateEvent(ctx context.Context, ev model.NewEvent) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Result describes one run. On error it holds whatever was placed before the failure.
type Result struct {
	RunID string `json:"run_id"`
	// Considered lists the titles of tasks the run attempted to place, in queue order.
	Considered     []string          `json:"new_tasks"`
	Deduplicated   []string          `json:"deduplicated,omitempty"`
	Placements     []model.Placement `json:"placements"`
	Deleted        int               `json:"deleted,omitempty"`
	HorizonReached bool              `json:"horizon_reached"`
	DryRun         bool              `json:"dry_run,omitempty"`
}

type commitFunc func(ctx context.Context, ev model.NewEvent) (model.Event, error)

type Scheduler struct {
	tasks   TaskSource
	cal     CalendarSource
	policy  config.Policy
	finder  *slot.Finder
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Scheduler)

func WithLogger(l zerolog.Logger) Option { return func(s *Scheduler) { s.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Scheduler) { s.metrics = m } }

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// New builds a scheduler for one policy snapshot. An invalid policy yields an
// *errs.ConfigError.
func New(tasks TaskSource, cal CalendarSource, policy config.Policy, opts ...Option) (*Scheduler, error) {
	finder, err := slot.NewFinder(policy)
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		tasks:  tasks,
		cal:    cal,
		policy: finder.Policy(),
		finder: finder,
		log:    zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run places work and creates one calendar event per unit.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	return s.run(ctx, "run", s.createEvent)
}

// Plan computes the placements Run would make without writing to the calendar.
func (s *Scheduler) Plan(ctx context.Context) (*Result, error) {
	return s.run(ctx, "plan", func(_ context.Context, ev model.NewEvent) (model.Event, error) {
		return model.Event{Subject: ev.Title, Start: ev.Start, End: ev.End, BodyPreview: ev.Body}, nil
	})
}

// Reschedule removes this scheduler's upcoming events and runs again.
// Only events that have not started and carry the scheduler's body marker are removed.
func (s *Scheduler) Reschedule(ctx context.Context) (*Result, error) {
	now := s.now()
	events, err := s.cal.FetchEvents(ctx, now.Add(-s.policy.Lookback()), now.Add(s.policy.Lookahead()))
	if err != nil {
		s.metrics.RemoteError("fetch events")
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	deleted := 0
	for _, ev := range events {
		if _, ok := util.TaskIDFromBody(ev.BodyPreview); !ok || !ev.Start.After(now) {
			continue
		}
		if err := s.cal.DeleteEvent(ctx, ev.ID); err != nil {
			s.metrics.RemoteError("delete event")
			return &Result{Deleted: deleted}, fmt.Errorf("delete event %s: %w", ev.ID, err)
		}
		s.metrics.EventDeleted()
		deleted++
	}
	s.log.Info().Int("deleted", deleted).Msg("cleared scheduled events")

	res, err := s.run(ctx, "reschedule", s.createEvent)
	if res != nil {
		res.Deleted = deleted
	}
	return res, err
}

func (s *Scheduler) createEvent(ctx context.Context, ev model.NewEvent) (model.Event, error) {
	created, err := s.cal.CreateEvent(ctx, ev)
	if err != nil {
		s.metrics.RemoteError("create event")
		return model.Event{}, err
	}
	return created, nil
}

func (s *Scheduler) run(ctx context.Context, mode string, commit commitFunc) (res *Result, err error) {
	started := time.Now()
	now := s.now()
	res = &Result{RunID: uuid.NewString(), DryRun: mode == "plan"}
	log := s.log.With().Str("run_id", res.RunID).Str("mode", mode).Logger()

	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			log.Error().Err(err).Int("placed", len(res.Placements)).Msg("scheduling run failed")
		} else {
			log.Info().
				Int("considered", len(res.Considered)).
				Int("placed", len(res.Placements)).
				Bool("horizon_reached", res.HorizonReached).
				Dur("took", time.Since(started)).
				Msg("scheduling run finished")
		}
		s.metrics.ObserveRun(mode, outcome, time.Since(started).Seconds())
	}()

	tiers, err := s.tasks.FetchUncompletedTasks(ctx)
	if err != nil {
		s.metrics.RemoteError("fetch tasks")
		return res, fmt.Errorf("fetch tasks: %w", err)
	}
	events, err := s.cal.FetchEvents(ctx, now.Add(-s.policy.Lookback()), now.Add(s.policy.Lookahead()))
	if err != nil {
		s.metrics.RemoteError("fetch events")
		return res, fmt.Errorf("fetch events: %w", err)
	}

	busy := s.busySet(events, log)
	queue, skipped := Dedup(rank.Queue(tiers, now), events, s.policy.DedupKey)
	res.Deduplicated = skipped
	s.metrics.Deduped(len(skipped))
	log.Debug().Int("queue", len(queue)).Int("deduplicated", len(skipped)).Int("busy", busy.Len()).Msg("queue ready")

	return res, s.place(ctx, now, queue, busy, commit, res, log)
}

// busySet turns events into the collision set, dropping events that span a day or more.
func (s *Scheduler) busySet(events []model.Event, log zerolog.Logger) *interval.Set {
	items := make([]interval.Interval, 0, len(events))
	for _, ev := range events {
		if !ev.Start.Before(ev.End) {
			log.Warn().Str("subject", ev.Subject).Time("start", ev.Start).Msg("ignoring event with empty span")
			continue
		}
		items = append(items, interval.Interval{Start: ev.Start, End: ev.End})
	}
	// Every item was checked above, so New cannot fail.
	busy, _ := interval.New(items...)
	busy.FilterByMaxDuration(s.policy.MaxBusyEvent())
	return busy
}

// place folds the queue into busy, one unit at a time, stopping at the horizon.
func (s *Scheduler) place(ctx context.Context, now time.Time, queue []model.Task, busy *interval.Set, commit commitFunc, res *Result, log zerolog.Logger) error {
	from := s.finder.SearchPoint(now)
	horizon := now.Add(s.policy.Horizon())

	for _, task := range queue {
		res.Considered = append(res.Considered, task.Title)
		units := UnitCount(task, s.policy)

		for unit := 1; unit <= units; unit++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := s.placeUnit(ctx, busy, from, task, unit, units, commit)
			if err != nil {
				return err
			}
			res.Placements = append(res.Placements, p)
			log.Debug().Str("task", task.Title).Int("unit", unit).Int("units", units).Time("start", p.Start).Msg("unit placed")

			if p.Start.After(horizon) {
				res.HorizonReached = true
				s.metrics.Horizon()
				log.Info().Time("horizon", horizon).Str("task", task.Title).Msg("horizon reached, stopping")
				return nil
			}
		}
	}
	return nil
}

func (s *Scheduler) placeUnit(ctx context.Context, busy *interval.Set, from time.Time, task model.Task, unit, units int, commit commitFunc) (model.Placement, error) {
	found, err := s.finder.Find(from, busy)
	if err != nil {
		return model.Placement{}, fmt.Errorf("place %q unit %d/%d: %w", task.Title, unit, units, err)
	}

	importance := task.Importance
	if importance == "" {
		importance = model.ImportanceNormal
	}
	ev, err := commit(ctx, model.NewEvent{
		Title:      task.Title,
		Start:      found.Start,
		End:        found.End,
		Importance: importance,
		Body:       util.EventBody(task, unit, units),
	})
	if err != nil {
		return model.Placement{}, fmt.Errorf("create event for %q unit %d/%d: %w", task.Title, unit, units, err)
	}
	if err := busy.Add(found.Start, found.End); err != nil {
		return model.Placement{}, err
	}
	s.metrics.UnitPlaced()

	return model.Placement{
		TaskID:  task.ID,
		Title:   task.Title,
		Unit:    unit,
		Units:   units,
		Start:   found.Start,
		End:     found.End,
		EventID: ev.ID,
	}, nil
}

// UnitCount is the number of work units a task expands into: UnitsPerHour per
// annotated hour, or a single unit when the task has no usable annotation.
func UnitCount(task model.Task, p config.Policy) int {
	h, ok := task.Hours()
	if !ok || h <= 0 {
		return 1
	}
	return h * p.UnitsPerHour()
}

// Dedup drops tasks that already have an event. With key "title" an event subject
// equal to the task title matches; with key "id" the task id in the event body does.
// It returns the remaining queue and the titles that were dropped.
func Dedup(queue []model.Task, events []model.Event, key string) ([]model.Task, []string) {
	existing := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if key == config.DedupByID {
			if id, ok := util.TaskIDFromBody(ev.BodyPreview); ok && id != "" {
				existing[id] = struct{}{}
			}
			continue
		}
		existing[ev.Subject] = struct{}{}
	}

	kept := make([]model.Task, 0, len(queue))
	var skipped []string
	for _, task := range queue {
		k := task.Title
		if key == config.DedupByID {
			k = task.ID
		}
		if _, ok := existing[k]; ok {
			skipped = append(skipped, task.Title)
			continue
		}
		kept = append(kept, task)
	}
	return kept, skipped
}
