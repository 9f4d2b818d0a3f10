package slot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskslot/pkg/config"
	"github.com/harrisonrobin/taskslot/pkg/errs"
	"github.com/harrisonrobin/taskslot/pkg/interval"
)

func utcPolicy(start, end int) config.Policy {
	p := config.DefaultPolicy()
	p.WakeHours = []int{start, end}
	p.Timezone = "UTC"
	return p
}

func mustFinder(t *testing.T, p config.Policy) *Finder {
	t.Helper()
	f, err := NewFinder(p)
	require.NoError(t, err)
	return f
}

func emptySet(t *testing.T) *interval.Set {
	t.Helper()
	s, err := interval.New()
	require.NoError(t, err)
	return s
}

func TestSearchPoint(t *testing.T) {
	f := mustFinder(t, utcPolicy(0, 23))
	now := time.Date(2025, 3, 10, 9, 47, 13, 500, time.UTC)

	assert.Equal(t, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), f.SearchPoint(now))
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), f.SearchPoint(now.Add(14*time.Hour)), "rolls over midnight")
}

func TestFindFreeCalendar(t *testing.T) {
	f := mustFinder(t, utcPolicy(0, 23))
	from := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	got, err := f.Find(from, emptySet(t))
	require.NoError(t, err)

	assert.Equal(t, from, got.Start)
	assert.Equal(t, 25*time.Minute, got.Duration())
}

func TestFindProbeWindowSkipsBusyDay(t *testing.T) {
	f := mustFinder(t, utcPolicy(0, 23))
	from := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	busy, err := interval.New(interval.Interval{
		Start: from.Add(20 * time.Hour),
		End:   from.Add(21 * time.Hour),
	})
	require.NoError(t, err)

	got, err := f.Find(from, busy)
	require.NoError(t, err)

	// The 25h probe from 10:00 hits the busy hour, so the finder steps once and
	// then only needs a unit-length gap.
	assert.Equal(t, from.Add(30*time.Minute), got.Start)
}

func TestFindStaysInsideWakeHours(t *testing.T) {
	f := mustFinder(t, utcPolicy(4, 20))
	from := time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC)

	got, err := f.Find(from, emptySet(t))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 11, 4, 0, 0, 0, time.UTC), got.Start)
	assert.True(t, f.WithinWakeHours(got.Start))
}

func TestFindNeverReturnsOutsideWakeHours(t *testing.T) {
	f := mustFinder(t, utcPolicy(4, 20))
	busy := emptySet(t)
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 120; i++ {
		got, err := f.Find(from, busy)
		require.NoError(t, err)
		h := got.Start.Hour()
		assert.True(t, h >= 4 && h <= 20, "slot %d starts at hour %d", i, h)
		require.NoError(t, busy.Add(got.Start, got.End))
	}
}

func TestFindAvoidsBusyIntervals(t *testing.T) {
	f := mustFinder(t, utcPolicy(0, 23))
	from := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	busy, err := interval.New(interval.Interval{Start: from, End: from.Add(2 * time.Hour)})
	require.NoError(t, err)

	got, err := f.Find(from, busy)
	require.NoError(t, err)

	assert.Equal(t, from.Add(2*time.Hour), got.Start, "touching the busy end is allowed")
	assert.False(t, busy.Overlaps(got.Start, got.End))
}

func TestFindExhaustsSearchBound(t *testing.T) {
	p := utcPolicy(0, 23)
	p.MaxSearchSteps = 10
	f := mustFinder(t, p)
	from := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	busy, err := interval.New(interval.Interval{Start: from.Add(-time.Hour), End: from.Add(30 * 24 * time.Hour)})
	require.NoError(t, err)

	_, err = f.Find(from, busy)

	assert.ErrorIs(t, err, ErrNoSlotAvailable)
}

func TestNewFinderRejectsBadPolicy(t *testing.T) {
	p := config.DefaultPolicy()
	p.WakeHours = nil

	_, err := NewFinder(p)

	assert.True(t, errs.IsConfig(err))
}

func TestWakeHoursUsePolicyTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	p := utcPolicy(9, 17)
	p.Timezone = "America/New_York"
	f := mustFinder(t, p)

	assert.True(t, f.WithinWakeHours(time.Date(2025, 7, 1, 9, 0, 0, 0, loc)))
	assert.False(t, f.WithinWakeHours(time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)), "05:00 in New York")
}
