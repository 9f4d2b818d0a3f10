package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskslot/pkg/config"
	"github.com/harrisonrobin/taskslot/pkg/errs"
	"github.com/harrisonrobin/taskslot/pkg/metrics"
	"github.com/harrisonrobin/taskslot/pkg/model"
	"github.com/harrisonrobin/taskslot/pkg/slot"
	"github.com/harrisonrobin/taskslot/pkg/util"
)

type fakeTasks struct {
	FetchFn func(ctx context.Context) (map[int][]model.Task, error)
}

func (f *fakeTasks) FetchUncompletedTasks(ctx context.Context) (map[int][]model.Task, error) {
	return f.FetchFn(ctx)
}

type fakeCalendar struct {
	events  []model.Event
	created []model.NewEvent
	deleted []string
	// failOn makes the n-th CreateEvent call (1-based) fail.
	failOn int
}

func (f *fakeCalendar) FetchEvents(_ context.Context, start, end time.Time) ([]model.Event, error) {
	var out []model.Event
	for _, ev := range f.events {
		if ev.End.After(start) && ev.Start.Before(end) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, ev model.NewEvent) (model.Event, error) {
	if f.failOn > 0 && len(f.created)+1 == f.failOn {
		return model.Event{}, &errs.RemoteCallError{Service: "graph", Op: "create event", Status: 500, Detail: "boom"}
	}
	f.created = append(f.created, ev)
	created := model.Event{
		ID:          fmt.Sprintf("ev-%d", len(f.created)),
		Subject:     ev.Title,
		Start:       ev.Start,
		End:         ev.End,
		BodyPreview: ev.Body,
	}
	f.events = append(f.events, created)
	return created, nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	kept := f.events[:0]
	for _, ev := range f.events {
		if ev.ID != id {
			kept = append(kept, ev)
		}
	}
	f.events = kept
	return nil
}

var now = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC)
}

func allDay() config.Policy {
	p := config.DefaultPolicy()
	p.WakeHours = []int{0, 23}
	p.Timezone = "UTC"
	return p
}

func staticTasks(tiers map[int][]model.Task) *fakeTasks {
	return &fakeTasks{FetchFn: func(context.Context) (map[int][]model.Task, error) { return tiers, nil }}
}

func newScheduler(t *testing.T, tasks TaskSource, cal CalendarSource, p config.Policy, opts ...Option) *Scheduler {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	s, err := New(tasks, cal, p, opts...)
	require.NoError(t, err)
	return s
}

func TestRunPlacesHourAnnotatedTask(t *testing.T) {
	task := model.Task{ID: "t1", Title: "Write report", LastModified: now, Checklist: []string{"2h"}, Importance: model.ImportanceHigh}
	cal := &fakeCalendar{}
	s := newScheduler(t, staticTasks(map[int][]model.Task{1: {task}}), cal, allDay())

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Placements, 4)
	want := []time.Time{at(10, 0), at(10, 30), at(11, 0), at(11, 30)}
	for i, p := range res.Placements {
		assert.Equal(t, want[i], p.Start, "unit %d", i+1)
		assert.Equal(t, 25*time.Minute, p.End.Sub(p.Start))
		assert.Equal(t, i+1, p.Unit)
		assert.Equal(t, 4, p.Units)
		assert.Equal(t, fmt.Sprintf("ev-%d", i+1), p.EventID)
	}
	assert.Equal(t, []string{"Write report"}, res.Considered)
	assert.False(t, res.HorizonReached)
	assert.NotEmpty(t, res.RunID)

	require.Len(t, cal.created, 4)
	assert.Equal(t, model.ImportanceHigh, cal.created[0].Importance)
	id, ok := util.TaskIDFromBody(cal.created[0].Body)
	assert.True(t, ok)
	assert.Equal(t, "t1", id)
}

func TestRunRanksAcrossTiers(t *testing.T) {
	tiers := map[int][]model.Task{
		1: {{ID: "a", Title: "Urgent", LastModified: now}},
		2: {{ID: "b", Title: "Later", LastModified: now}},
	}
	s := newScheduler(t, staticTasks(tiers), &fakeCalendar{}, allDay())

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Urgent", "Later"}, res.Considered)
	require.Len(t, res.Placements, 2)
	assert.Equal(t, at(10, 0), res.Placements[0].Start)
	assert.Equal(t, at(10, 30), res.Placements[1].Start)
}

func TestRunSkipsTasksAlreadyOnCalendar(t *testing.T) {
	tiers := map[int][]model.Task{1: {
		{ID: "a", Title: "A", LastModified: now},
		{ID: "b", Title: "B", LastModified: now},
	}}
	cal := &fakeCalendar{events: []model.Event{
		{ID: "x", Subject: "A", Start: at(15, 0), End: at(15, 25)},
	}}
	s := newScheduler(t, staticTasks(tiers), cal, allDay())

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, res.Considered)
	assert.Equal(t, []string{"A"}, res.Deduplicated)
	require.Len(t, cal.created, 1)
	assert.Equal(t, "B", cal.created[0].Title)
}

func TestRunDedupByID(t *testing.T) {
	p := allDay()
	p.DedupKey = config.DedupByID
	tiers := map[int][]model.Task{1: {
		{ID: "a", Title: "Renamed", LastModified: now},
		{ID: "b", Title: "Booked elsewhere", LastModified: now},
	}}
	cal := &fakeCalendar{events: []model.Event{
		{ID: "x", Subject: "Old title", Start: at(15, 0), End: at(15, 25), BodyPreview: util.MarkerPrefix + " a\nUnit: 1/1\n"},
		{ID: "y", Subject: "Booked elsewhere", Start: at(16, 0), End: at(16, 25)},
	}}
	s := newScheduler(t, staticTasks(tiers), cal, p)

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Booked elsewhere"}, res.Considered)
	assert.Equal(t, []string{"Renamed"}, res.Deduplicated)
}

func TestRunStopsAtHorizon(t *testing.T) {
	// Leave 10:00-12:30 free, then block eight days in 12h chunks.
	var events []model.Event
	blockStart := at(12, 30)
	for i := 0; i < 16; i++ {
		start := blockStart.Add(time.Duration(i) * 12 * time.Hour)
		events = append(events, model.Event{ID: fmt.Sprintf("b%d", i), Subject: "Busy", Start: start, End: start.Add(12 * time.Hour)})
	}
	tiers := map[int][]model.Task{
		1: {{ID: "a", Title: "Big", LastModified: now, Checklist: []string{"3h"}}},
		2: {{ID: "b", Title: "Never reached", LastModified: now}},
	}
	cal := &fakeCalendar{events: events}
	s := newScheduler(t, staticTasks(tiers), cal, allDay())

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Placements, 5)
	assert.Equal(t, at(10, 30), res.Placements[0].Start)
	assert.Equal(t, at(12, 0), res.Placements[3].Start)
	assert.Equal(t, blockStart.Add(16*12*time.Hour), res.Placements[4].Start)
	assert.True(t, res.HorizonReached)
	assert.Equal(t, []string{"Big"}, res.Considered)
}

func TestRunIgnoresDayLongEvents(t *testing.T) {
	cal := &fakeCalendar{events: []model.Event{
		{ID: "allday", Subject: "Holiday", Start: at(0, 0), End: at(0, 0).Add(24 * time.Hour)},
	}}
	tiers := map[int][]model.Task{1: {{ID: "a", Title: "A", LastModified: now}}}
	s := newScheduler(t, staticTasks(tiers), cal, allDay())

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Placements, 1)
	assert.Equal(t, at(10, 0), res.Placements[0].Start)
}

func TestRunAbortsOnCommitFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	tiers := map[int][]model.Task{1: {{ID: "a", Title: "A", LastModified: now, Checklist: []string{"2h"}}}}
	cal := &fakeCalendar{failOn: 2}
	s := newScheduler(t, staticTasks(tiers), cal, allDay(), WithMetrics(m))

	res, err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsRemote(err))

	require.NotNil(t, res)
	assert.Len(t, res.Placements, 1)
	assert.Len(t, cal.created, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("run", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteErrors.WithLabelValues("create event")))
}

func TestRunPropagatesFetchError(t *testing.T) {
	boom := errors.New("boom")
	tasks := &fakeTasks{FetchFn: func(context.Context) (map[int][]model.Task, error) { return nil, boom }}
	cal := &fakeCalendar{}
	s := newScheduler(t, tasks, cal, allDay())

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, cal.created)
}

func TestRunNoSlotAvailable(t *testing.T) {
	p := allDay()
	p.MaxSearchSteps = 4
	cal := &fakeCalendar{events: []model.Event{
		{ID: "x", Subject: "Busy", Start: at(9, 0), End: at(21, 0)},
	}}
	tiers := map[int][]model.Task{1: {{ID: "a", Title: "A", LastModified: now}}}
	s := newScheduler(t, staticTasks(tiers), cal, p)

	res, err := s.Run(context.Background())
	assert.ErrorIs(t, err, slot.ErrNoSlotAvailable)
	assert.Empty(t, res.Placements)
	assert.Empty(t, cal.created)
}

func TestPlanDoesNotWrite(t *testing.T) {
	tiers := map[int][]model.Task{1: {{ID: "a", Title: "A", LastModified: now, Checklist: []string{"1h"}}}}
	cal := &fakeCalendar{}
	s := newScheduler(t, staticTasks(tiers), cal, allDay())

	res, err := s.Plan(context.Background())
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	require.Len(t, res.Placements, 2)
	assert.Equal(t, at(10, 30), res.Placements[1].Start)
	assert.Empty(t, res.Placements[0].EventID)
	assert.Empty(t, cal.created)
}

func TestRescheduleDeletesOnlyFutureMarkedEvents(t *testing.T) {
	cal := &fakeCalendar{events: []model.Event{
		{ID: "future", Subject: "A", Start: at(14, 0), End: at(14, 25), BodyPreview: util.MarkerPrefix + " a\n"},
		{ID: "past", Subject: "A", Start: at(8, 0), End: at(8, 25), BodyPreview: util.MarkerPrefix + " a\n"},
		{ID: "meeting", Subject: "Standup", Start: at(15, 0), End: at(15, 30)},
	}}
	tiers := map[int][]model.Task{1: {{ID: "b", Title: "B", LastModified: now}}}
	s := newScheduler(t, staticTasks(tiers), cal, allDay())

	res, err := s.Reschedule(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"future"}, cal.deleted)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []string{"B"}, res.Considered)
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	p := config.DefaultPolicy()
	p.WakeHours = []int{20, 4}

	_, err := New(staticTasks(nil), &fakeCalendar{}, p)
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))
}

func TestUnitCount(t *testing.T) {
	p := config.DefaultPolicy()
	cases := []struct {
		checklist []string
		want      int
	}{
		{nil, 1},
		{[]string{"review notes"}, 1},
		{[]string{"2h"}, 4},
		{[]string{" 3 h focus"}, 6},
		{[]string{"0h"}, 1},
		{[]string{"notes", "2h"}, 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, UnitCount(model.Task{Checklist: c.checklist}, p), "%v", c.checklist)
	}
}
