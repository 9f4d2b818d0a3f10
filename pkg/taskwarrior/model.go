package taskwarrior

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/taskslot/pkg/model"
	"github.com/harrisonrobin/taskslot/pkg/util"
)

const (
	PENDING   = "pending"
	COMPLETED = "completed"
	WAITING   = "waiting"
	DELETED   = "deleted"

	// ImportantTag marks a task as high importance.
	ImportantTag = "important"
)

type CustomTime struct {
	time.Time
}

const taskwarriorTimeLayout = "20060102T150405Z" // YYYYMMDDTHHMMSSZ, 'Z' indicates UTC

// UnmarshalJSON implements the json.Unmarshaler interface for CustomTime.
func (ct *CustomTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "0" {
		ct.Time = time.Time{}
		return nil
	}

	t, err := time.Parse(taskwarriorTimeLayout, s)
	if err != nil {
		return fmt.Errorf("failed to parse Taskwarrior time string '%s': %w", s, err)
	}
	ct.Time = t
	return nil
}

// MarshalJSON implements the json.Marshaler interface for CustomTime.
func (ct CustomTime) MarshalJSON() ([]byte, error) {
	if ct.Time.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + ct.Time.Format(taskwarriorTimeLayout) + `"`), nil
}

type Task struct {
	UUID        string      `json:"uuid"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
	Priority    string      `json:"priority,omitempty"`
	Due         *CustomTime `json:"due,omitempty"`
	Entry       *CustomTime `json:"entry,omitempty"`
	Modified    *CustomTime `json:"modified,omitempty"`
	Project     string      `json:"project,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Annotations []struct {
		Description string      `json:"description"`
		Entry       *CustomTime `json:"entry"`
	} `json:"annotations,omitempty"`
	// Est is the "estimate" UDA, exported as an ISO 8601 duration (PT2H) or as
	// free text such as "2h".
	Est string `json:"est,omitempty"`
}

// Tier maps the priority attribute onto tiers: H=1, M=2, L=3, none=4.
func (t Task) Tier() int {
	switch strings.ToUpper(t.Priority) {
	case "H":
		return 1
	case "M":
		return 2
	case "L":
		return 3
	default:
		return 4
	}
}

// ToTask converts t. The estimate, when present, becomes the first checklist line
// and annotations follow it.
func (t Task) ToTask() model.Task {
	task := model.Task{
		ID:         t.UUID,
		Title:      t.Description,
		Tier:       t.Tier(),
		Importance: model.ImportanceNormal,
		Status:     t.Status,
		Source:     "taskwarrior",
	}
	if t.Status == COMPLETED {
		task.Status = model.StatusCompleted
	}
	for _, tag := range t.Tags {
		if tag == ImportantTag {
			task.Importance = model.ImportanceHigh
			break
		}
	}
	if t.Due != nil && !t.Due.IsZero() {
		due := t.Due.Time
		task.Due = &due
	}
	switch {
	case t.Modified != nil && !t.Modified.IsZero():
		task.LastModified = t.Modified.Time
	case t.Entry != nil:
		task.LastModified = t.Entry.Time
	}

	if est := strings.TrimSpace(t.Est); est != "" {
		if d, err := util.ParseDuration(est); err == nil {
			if h, ok := util.HoursAnnotation(d); ok {
				task.Checklist = append(task.Checklist, h)
			}
		} else {
			task.Checklist = append(task.Checklist, est)
		}
	}
	for _, a := range t.Annotations {
		task.Checklist = append(task.Checklist, a.Description)
	}
	return task
}
