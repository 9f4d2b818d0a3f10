package model

import (
	"regexp"
	"strconv"
	"time"
)

// Importance is the remote importance flag carried by a task and the events booked for it.
type Importance string

const (
	ImportanceNormal Importance = "normal"
	ImportanceHigh   Importance = "high"
)

const (
	StatusCompleted = "completed"

	// DefaultDueOffset is added to a task's modification time when it has no explicit due date.
	DefaultDueOffset = 15 * 24 * time.Hour
)

var hoursRegex = regexp.MustCompile(`(?i)^\s*(\d+)\s*h`)

// Task represents an uncompleted to-do item from any task source.
type Task struct {
	ID           string
	Title        string
	Tier         int
	Importance   Importance
	Due          *time.Time
	LastModified time.Time
	Status       string
	// Checklist holds the display names of the task's checklist items, in order.
	// The first item may carry a duration annotation such as "2h".
	Checklist []string
	Source    string // "graph", "google", "taskwarrior", "orgmode" or "local"
}

// EffectiveDue returns the explicit due date, or LastModified + DefaultDueOffset.
// The result is always in UTC.
func (t Task) EffectiveDue() time.Time {
	if t.Due != nil && !t.Due.IsZero() {
		return t.Due.UTC()
	}
	return t.LastModified.Add(DefaultDueOffset).UTC()
}

// Hours parses the duration annotation on the first checklist item.
func (t Task) Hours() (int, bool) {
	if len(t.Checklist) == 0 {
		return 0, false
	}
	m := hoursRegex.FindStringSubmatch(t.Checklist[0])
	if m == nil {
		return 0, false
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return h, true
}

// IsCompleted reports whether the source marked the task done.
func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}
