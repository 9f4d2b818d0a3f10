// Package store keeps locally entered tasks in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/harrisonrobin/taskslot/pkg/model"
)

//go:embed schema.sql
var schema string

var ErrNotFound = errors.New("task not found")

// LocalTask is one row of the tasks table. Priority doubles as the tier.
type LocalTask struct {
	ID        int64     `json:"id"`
	Task      string    `json:"task"`
	Priority  int       `json:"priority"`
	Estimate  string    `json:"estimate,omitempty"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// ToTask converts the row for scheduling. The estimate, e.g. "2h", becomes the
// first checklist line.
func (t LocalTask) ToTask() model.Task {
	task := model.Task{
		ID:           "local-" + strconv.FormatInt(t.ID, 10),
		Title:        t.Task,
		Tier:         t.Priority,
		Importance:   model.ImportanceNormal,
		LastModified: t.CreatedAt,
		Status:       "pending",
		Source:       "local",
	}
	if t.Done {
		task.Status = model.StatusCompleted
	}
	if t.Estimate != "" {
		task.Checklist = []string{t.Estimate}
	}
	return task
}

type Store struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// Open creates the database file and its directory if needed.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite serializes writers anyway, and :memory: databases are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")

	s := &Store{db: db, log: log, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Reset drops every task and recreates the table.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS tasks`); err != nil {
		return err
	}
	if err := s.migrate(ctx); err != nil {
		return err
	}
	s.log.Info().Msg("local task store reset")
	return nil
}

// Create inserts a task. Priority must be positive.
func (s *Store) Create(ctx context.Context, task string, priority int, estimate string) (LocalTask, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return LocalTask{}, errors.New("task text is required")
	}
	if priority < 1 {
		return LocalTask{}, fmt.Errorf("priority must be at least 1, got %d", priority)
	}

	created := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(task, priority, estimate, created_at) VALUES(?,?,?,?)`,
		task, priority, nullStr(estimate), created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return LocalTask{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return LocalTask{}, err
	}
	return LocalTask{ID: id, Task: task, Priority: priority, Estimate: strings.TrimSpace(estimate), CreatedAt: created}, nil
}

func (s *Store) Get(ctx context.Context, id int64) (LocalTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, task, priority, estimate, done, created_at FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return LocalTask{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return t, err
}

// Complete marks a task done so it is no longer scheduled.
func (s *Store) Complete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET done = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// List returns all tasks in insertion order.
func (s *Store) List(ctx context.Context) ([]LocalTask, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, task, priority, estimate, done, created_at FROM tasks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LocalTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FetchUncompletedTasks groups open tasks by priority.
func (s *Store) FetchUncompletedTasks(ctx context.Context) (map[int][]model.Task, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int][]model.Task)
	for _, t := range all {
		if t.Done {
			continue
		}
		out[t.Priority] = append(out[t.Priority], t.ToTask())
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (LocalTask, error) {
	var (
		t        LocalTask
		estimate sql.NullString
		created  string
	)
	if err := row.Scan(&t.ID, &t.Task, &t.Priority, &estimate, &t.Done, &created); err != nil {
		return LocalTask{}, err
	}
	t.Estimate = estimate.String
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return LocalTask{}, fmt.Errorf("task %d: bad created_at %q: %w", t.ID, created, err)
	}
	t.CreatedAt = ts
	return t, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return strings.TrimSpace(v)
}
