package taskwarrior

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/harrisonrobin/taskslot/pkg/model"
)

// Runner executes the task binary and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

type Client struct {
	filter []string
	run    Runner
}

// NewClient returns a client exporting pending tasks matching filter.
func NewClient(filter []string) *Client {
	return &Client{filter: filter, run: execTask}
}

// NewClientWithRunner is NewClient with a custom command runner.
func NewClientWithRunner(filter []string, run Runner) *Client {
	return &Client{filter: filter, run: run}
}

func execTask(ctx context.Context, args ...string) ([]byte, error) {
	output, err := exec.CommandContext(ctx, "task", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("taskwarrior command failed: exit code %d, %s, stderr: %s",
				exitErr.ExitCode(), err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("taskwarrior command failed: %w", err)
	}
	return output, nil
}

func (c *Client) GetTasks(ctx context.Context) ([]Task, error) {
	args := append([]string{}, c.filter...)
	args = append(args, "status:"+PENDING, "export", "rc.hooks=0")
	output, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return ParseExport(bytes.NewReader(output))
}

// FetchUncompletedTasks groups pending tasks by priority tier.
func (c *Client) FetchUncompletedTasks(ctx context.Context) (map[int][]model.Task, error) {
	tasks, err := c.GetTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int][]model.Task)
	for _, t := range tasks {
		if t.Status != PENDING {
			continue
		}
		task := t.ToTask()
		out[task.Tier] = append(out[task.Tier], task)
	}
	return out, nil
}

// ParseExport reads either a JSON array, as written by `task export`, or a stream
// of JSON objects, as handed to hooks.
func ParseExport(r io.Reader) ([]Task, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}

	if b[0] == '[' {
		var tasks []Task
		if err := json.Unmarshal(b, &tasks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal taskwarrior output: %w", err)
		}
		return tasks, nil
	}

	var tasks []Task
	decoder := json.NewDecoder(bytes.NewReader(b))
	for {
		var task Task
		if err := decoder.Decode(&task); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode task json: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
