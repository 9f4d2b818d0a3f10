package interval

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrInvalidInterval = errors.New("interval start must be before end")

// Interval is a busy [Start, End) range.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Set holds busy intervals. Intervals passed to New are sorted by start; intervals
// appended later keep insertion order. Overlap checks scan linearly, so order only
// matters for Last.
type Set struct {
	items []Interval
}

// New builds a Set from items, sorted by start time.
func New(items ...Interval) (*Set, error) {
	s := &Set{items: make([]Interval, 0, len(items))}
	for _, it := range items {
		if !it.Start.Before(it.End) {
			return nil, fmt.Errorf("%w: [%s, %s]", ErrInvalidInterval, it.Start.Format(time.RFC3339), it.End.Format(time.RFC3339))
		}
		s.items = append(s.items, it)
	}
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].Start.Before(s.items[j].Start)
	})
	return s, nil
}

// Overlaps reports whether any stored interval strictly overlaps [start, end).
// Intervals that only share an endpoint do not overlap.
func (s *Set) Overlaps(start, end time.Time) bool {
	for _, it := range s.items {
		if it.Start.Before(end) && it.End.After(start) {
			return true
		}
	}
	return false
}

// FilterByMaxDuration keeps only intervals strictly shorter than limit.
func (s *Set) FilterByMaxDuration(limit time.Duration) {
	kept := s.items[:0]
	for _, it := range s.items {
		if it.Duration() < limit {
			kept = append(kept, it)
		}
	}
	s.items = kept
}

// Add appends [start, end). It is visible to the next Overlaps call.
func (s *Set) Add(start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidInterval
	}
	s.items = append(s.items, Interval{Start: start, End: end})
	return nil
}

func (s *Set) Len() int { return len(s.items) }

// All returns a copy of the stored intervals.
func (s *Set) All() []Interval {
	out := make([]Interval, len(s.items))
	copy(out, s.items)
	return out
}

// Last returns the most recently appended interval.
func (s *Set) Last() (Interval, bool) {
	if len(s.items) == 0 {
		return Interval{}, false
	}
	return s.items[len(s.items)-1], true
}
