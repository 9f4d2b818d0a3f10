package model

import "time"

// Event is a calendar event as seen by the scheduler.
type Event struct {
	ID          string
	Subject     string
	Start       time.Time
	End         time.Time
	BodyPreview string
}

// NewEvent describes an event to create on a calendar.
type NewEvent struct {
	Title      string
	Start      time.Time
	End        time.Time
	Importance Importance
	Body       string
}

// Placement records one work unit booked for a task.
type Placement struct {
	TaskID  string
	Title   string
	Unit    int // 1-based
	Units   int
	Start   time.Time
	End     time.Time
	EventID string
}
