package slot

import (
	"errors"
	"fmt"
	"time"

	"github.com/harrisonrobin/taskslot/pkg/config"
	"github.com/harrisonrobin/taskslot/pkg/interval"
)

// ErrNoSlotAvailable is returned when the search exhausts Policy.MaxSearchSteps.
var ErrNoSlotAvailable = errors.New("no slot available")

// Finder places fixed-size work units into free time within wake hours.
type Finder struct {
	policy config.Policy
	loc    *time.Location
}

// NewFinder validates p. An invalid policy yields an *errs.ConfigError.
func NewFinder(p config.Policy) (*Finder, error) {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	loc, err := p.Location()
	if err != nil {
		return nil, err
	}
	return &Finder{policy: p, loc: loc}, nil
}

// SearchPoint is the first candidate start for a run: the top of the next hour
// after now, in the policy location.
func (f *Finder) SearchPoint(now time.Time) time.Time {
	t := now.In(f.loc).Add(time.Hour)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, f.loc)
}

// WithinWakeHours reports whether t's hour falls in the inclusive wake window.
func (f *Finder) WithinWakeHours(t time.Time) bool {
	h := t.In(f.loc).Hour()
	return f.policy.WakeHours[0] <= h && h <= f.policy.WakeHours[1]
}

// Find returns the first free unit-length slot at or after from.
//
// The first candidate is probed with the wide ProbeWindow rather than a unit, so a
// start is only accepted immediately when the whole region after it is clear. Every
// following candidate moves one cadence step and is probed at unit length.
func (f *Finder) Find(from time.Time, busy *interval.Set) (interval.Interval, error) {
	unit := f.policy.Unit()
	cadence := f.policy.Cadence()

	start := from
	end := from.Add(f.policy.Probe())
	for steps := 0; busy.Overlaps(start, end) || !f.WithinWakeHours(start); steps++ {
		if steps >= f.policy.MaxSearchSteps {
			return interval.Interval{}, fmt.Errorf("%w: searched %d steps from %s", ErrNoSlotAvailable, steps, from.Format(time.RFC3339))
		}
		start = start.Add(cadence)
		end = start.Add(unit)
	}
	return interval.Interval{Start: start, End: start.Add(unit)}, nil
}

func (f *Finder) Policy() config.Policy { return f.policy }
