package google

import (
	"context"
	"strings"
	"time"

	"google.golang.org/api/tasks/v1"

	"github.com/harrisonrobin/taskslot/pkg/model"
)

const tasksService = "google-tasks"

// TasksClient reads Google Tasks. Each task list is one tier, in list order.
type TasksClient struct {
	srv *tasks.Service
}

func NewTasksClient(srv *tasks.Service) *TasksClient {
	return &TasksClient{srv: srv}
}

// FetchUncompletedTasks returns open tasks keyed by tier, where tier is the 1-based
// position of the task list.
func (c *TasksClient) FetchUncompletedTasks(ctx context.Context) (map[int][]model.Task, error) {
	var lists []*tasks.TaskList
	err := c.srv.Tasklists.List().MaxResults(100).Pages(ctx, func(page *tasks.TaskLists) error {
		lists = append(lists, page.Items...)
		return nil
	})
	if err != nil {
		return nil, remoteError(tasksService, "list task lists", err)
	}

	out := make(map[int][]model.Task)
	for i, list := range lists {
		tier := i + 1
		err := c.srv.Tasks.List(list.Id).
			ShowCompleted(false).
			ShowHidden(false).
			MaxResults(100).
			Pages(ctx, func(page *tasks.Tasks) error {
				for _, item := range page.Items {
					task := toTask(item, tier)
					if task.IsCompleted() || item.Deleted {
						continue
					}
					out[tier] = append(out[tier], task)
				}
				return nil
			})
		if err != nil {
			return nil, remoteError(tasksService, "list tasks", err)
		}
	}
	return out, nil
}

// toTask converts a Google task. The first line of the notes stands in for the
// checklist, so "2h" on that line sets the estimate.
func toTask(item *tasks.Task, tier int) model.Task {
	t := model.Task{
		ID:         item.Id,
		Title:      item.Title,
		Tier:       tier,
		Importance: model.ImportanceNormal,
		Status:     item.Status,
		Source:     "google",
	}
	if item.Updated != "" {
		if updated, err := time.Parse(time.RFC3339, item.Updated); err == nil {
			t.LastModified = updated
		}
	}
	if item.Due != "" {
		if due, err := time.Parse(time.RFC3339, item.Due); err == nil {
			t.Due = &due
		}
	}
	if notes := strings.TrimSpace(item.Notes); notes != "" {
		first, _, _ := strings.Cut(notes, "\n")
		t.Checklist = []string{strings.TrimSpace(first)}
	}
	return t
}
