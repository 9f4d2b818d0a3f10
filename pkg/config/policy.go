package config

import (
	"time"

	"github.com/harrisonrobin/taskslot/pkg/errs"
)

const (
	DedupByTitle = "title"
	DedupByID    = "id"
)

// Policy controls where and how far ahead work units are placed.
// It is passed by value into the slot finder and scheduler for each run.
type Policy struct {
	// WakeHours is the inclusive [start, end] hour-of-day window for slot starts.
	WakeHours []int `yaml:"wake_hours" json:"wake_hours"`
	// Timezone is the single reference location that hours are evaluated in.
	// Empty means the process local zone.
	Timezone string `yaml:"timezone,omitempty" json:"timezone,omitempty"`

	UnitMinutes       int `yaml:"unit_minutes,omitempty" json:"unit_minutes,omitempty"`
	CadenceMinutes    int `yaml:"cadence_minutes,omitempty" json:"cadence_minutes,omitempty"`
	ProbeWindowHours  int `yaml:"probe_window_hours,omitempty" json:"probe_window_hours,omitempty"`
	MaxSearchSteps    int `yaml:"max_search_steps,omitempty" json:"max_search_steps,omitempty"`
	HorizonDays       int `yaml:"horizon_days,omitempty" json:"horizon_days,omitempty"`
	LookbackDays      int `yaml:"lookback_days,omitempty" json:"lookback_days,omitempty"`
	LookaheadDays     int `yaml:"lookahead_days,omitempty" json:"lookahead_days,omitempty"`
	MaxBusyEventHours int `yaml:"max_busy_event_hours,omitempty" json:"max_busy_event_hours,omitempty"`

	// DedupKey selects how existing events suppress tasks: "title" or "id".
	DedupKey string `yaml:"dedup_key,omitempty" json:"dedup_key,omitempty"`
}

// DefaultPolicy returns the stock policy: wake hours 4..20, 25 minute units on a
// 30 minute cadence, a 7 day horizon.
func DefaultPolicy() Policy {
	return Policy{
		WakeHours:         []int{4, 20},
		UnitMinutes:       25,
		CadenceMinutes:    30,
		ProbeWindowHours:  25,
		MaxSearchSteps:    2016,
		HorizonDays:       7,
		LookbackDays:      1,
		LookaheadDays:     8,
		MaxBusyEventHours: 24,
		DedupKey:          DedupByTitle,
	}
}

// WithDefaults fills every unset optional field from DefaultPolicy. WakeHours is
// never defaulted here: a policy without it is invalid.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.UnitMinutes == 0 {
		p.UnitMinutes = d.UnitMinutes
	}
	if p.CadenceMinutes == 0 {
		p.CadenceMinutes = d.CadenceMinutes
	}
	if p.ProbeWindowHours == 0 {
		p.ProbeWindowHours = d.ProbeWindowHours
	}
	if p.MaxSearchSteps == 0 {
		p.MaxSearchSteps = d.MaxSearchSteps
	}
	if p.HorizonDays == 0 {
		p.HorizonDays = d.HorizonDays
	}
	if p.LookbackDays == 0 {
		p.LookbackDays = d.LookbackDays
	}
	if p.LookaheadDays == 0 {
		p.LookaheadDays = d.LookaheadDays
	}
	if p.MaxBusyEventHours == 0 {
		p.MaxBusyEventHours = d.MaxBusyEventHours
	}
	if p.DedupKey == "" {
		p.DedupKey = d.DedupKey
	}
	if p.WakeHours != nil {
		p.WakeHours = append([]int(nil), p.WakeHours...)
	}
	return p
}

// Validate checks the policy, returning an *errs.ConfigError on the first problem.
func (p Policy) Validate() error {
	if len(p.WakeHours) != 2 {
		return errs.NewConfigError("wake_hours", "expected [start, end], got %d values", len(p.WakeHours))
	}
	start, end := p.WakeHours[0], p.WakeHours[1]
	if start < 0 || start > 23 || end < 0 || end > 23 {
		return errs.NewConfigError("wake_hours", "hours must be within 0..23, got [%d, %d]", start, end)
	}
	if start > end {
		return errs.NewConfigError("wake_hours", "start %d is after end %d", start, end)
	}
	if _, err := p.Location(); err != nil {
		return errs.NewConfigError("timezone", "%v", err)
	}
	if p.UnitMinutes <= 0 {
		return errs.NewConfigError("unit_minutes", "must be positive")
	}
	if p.CadenceMinutes < p.UnitMinutes {
		return errs.NewConfigError("cadence_minutes", "must be at least unit_minutes (%d)", p.UnitMinutes)
	}
	if p.ProbeWindowHours <= 0 {
		return errs.NewConfigError("probe_window_hours", "must be positive")
	}
	if p.MaxSearchSteps <= 0 {
		return errs.NewConfigError("max_search_steps", "must be positive")
	}
	if p.HorizonDays <= 0 || p.LookbackDays < 0 || p.LookaheadDays <= 0 {
		return errs.NewConfigError("horizon_days", "horizon and lookahead must be positive")
	}
	if p.MaxBusyEventHours <= 0 {
		return errs.NewConfigError("max_busy_event_hours", "must be positive")
	}
	if p.DedupKey != DedupByTitle && p.DedupKey != DedupByID {
		return errs.NewConfigError("dedup_key", "unknown key %q", p.DedupKey)
	}
	return nil
}

func (p Policy) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(p.Timezone)
}

func (p Policy) Unit() time.Duration    { return time.Duration(p.UnitMinutes) * time.Minute }
func (p Policy) Cadence() time.Duration { return time.Duration(p.CadenceMinutes) * time.Minute }
func (p Policy) Probe() time.Duration   { return time.Duration(p.ProbeWindowHours) * time.Hour }
func (p Policy) Horizon() time.Duration { return days(p.HorizonDays) }
func (p Policy) Lookback() time.Duration {
	return days(p.LookbackDays)
}
func (p Policy) Lookahead() time.Duration {
	return days(p.LookaheadDays)
}
func (p Policy) MaxBusyEvent() time.Duration {
	return time.Duration(p.MaxBusyEventHours) * time.Hour
}

// UnitsPerHour is how many work units one estimated hour expands into.
func (p Policy) UnitsPerHour() int {
	n := int(time.Hour / p.Cadence())
	if n < 1 {
		return 1
	}
	return n
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }
