package graph

import (
	"context"
	"net/url"
	"time"

	"github.com/harrisonrobin/taskslot/pkg/model"
)

// dateTimeTimeZone is Graph's zone-less timestamp plus IANA or Windows zone name.
type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// graphTimeLayout matches Graph's seven-digit fractional seconds without offset.
const graphTimeLayout = "2006-01-02T15:04:05.9999999"

func (d *dateTimeTimeZone) parse() (time.Time, bool) {
	if d == nil || d.DateTime == "" {
		return time.Time{}, false
	}
	loc := time.UTC
	if d.TimeZone != "" && d.TimeZone != "UTC" {
		if l, err := time.LoadLocation(d.TimeZone); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(graphTimeLayout, d.DateTime, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type todoList struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type todoTask struct {
	ID                   string            `json:"id"`
	Title                string            `json:"title"`
	Status               string            `json:"status"`
	Importance           string            `json:"importance"`
	LastModifiedDateTime time.Time         `json:"lastModifiedDateTime"`
	DueDateTime          *dateTimeTimeZone `json:"dueDateTime"`
	ChecklistItems       []struct {
		DisplayName string `json:"displayName"`
	} `json:"checklistItems"`
}

// FetchUncompletedTasks returns open To Do tasks keyed by tier, where tier is the
// 1-based position of the list. Checklist items are expanded in the same request.
func (c *Client) FetchUncompletedTasks(ctx context.Context) (map[int][]model.Task, error) {
	lists, err := getAll[todoList](ctx, c, "list task lists", c.url("/me/todo/lists", nil), nil)
	if err != nil {
		return nil, err
	}

	out := make(map[int][]model.Task)
	for i, list := range lists {
		tier := i + 1
		q := url.Values{"$expand": {"checklistItems"}}
		items, err := getAll[todoTask](ctx, c, "list tasks", c.url("/me/todo/lists/"+url.PathEscape(list.ID)+"/tasks", q), nil)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			task := item.toTask(tier)
			if task.IsCompleted() {
				continue
			}
			out[tier] = append(out[tier], task)
		}
		c.log.Debug().Str("list", list.DisplayName).Int("tier", tier).Int("tasks", len(out[tier])).Msg("fetched task list")
	}
	return out, nil
}

func (t todoTask) toTask(tier int) model.Task {
	task := model.Task{
		ID:           t.ID,
		Title:        t.Title,
		Tier:         tier,
		Importance:   model.ImportanceNormal,
		LastModified: t.LastModifiedDateTime,
		Status:       t.Status,
		Source:       service,
	}
	if t.Importance == string(model.ImportanceHigh) {
		task.Importance = model.ImportanceHigh
	}
	if due, ok := t.DueDateTime.parse(); ok {
		task.Due = &due
	}
	for _, item := range t.ChecklistItems {
		task.Checklist = append(task.Checklist, item.DisplayName)
	}
	return task
}
