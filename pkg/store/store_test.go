package store

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskslot/pkg/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "tasks.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateGetList(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	a, err := s.Create(ctx, "Write report", 1, "2h")
	require.NoError(t, err)
	b, err := s.Create(ctx, "Water plants", 3, "")
	require.NoError(t, err)
	assert.Equal(t, a.ID+1, b.ID)

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", got.Task)
	assert.Equal(t, "2h", got.Estimate)
	assert.Equal(t, a.CreatedAt, got.CreatedAt)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Water plants", all[1].Task)
}

func TestCreateValidates(t *testing.T) {
	s := openTemp(t)
	_, err := s.Create(context.Background(), "  ", 1, "")
	assert.Error(t, err)
	_, err = s.Create(context.Background(), "x", 0, "")
	assert.Error(t, err)
}

func TestGetMissing(t *testing.T) {
	s := openTemp(t)
	_, err := s.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetClearsTasks(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	_, err := s.Create(ctx, "Old", 1, "")
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFetchUncompletedTasks(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	a, _ := s.Create(ctx, "Report", 1, "2h")
	_, _ = s.Create(ctx, "Plants", 2, "")
	done, _ := s.Create(ctx, "Taxes", 1, "")
	require.NoError(t, s.Complete(ctx, done.ID))

	tiers, err := s.FetchUncompletedTasks(ctx)
	require.NoError(t, err)

	require.Len(t, tiers[1], 1)
	report := tiers[1][0]
	assert.Equal(t, "local-"+strconv.FormatInt(a.ID, 10), report.ID)
	assert.Equal(t, model.ImportanceNormal, report.Importance)
	h, ok := report.Hours()
	assert.True(t, ok)
	assert.Equal(t, 2, h)
	assert.Len(t, tiers[2], 1)

	assert.ErrorIs(t, s.Complete(ctx, 999), ErrNotFound)
}

func TestWriteICS(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	tasks := []LocalTask{
		{ID: 1, Task: "Write report", Priority: 1},
		{ID: 2, Task: "Water plants", Priority: 3},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteICS(&buf, tasks, now))
	out := buf.String()

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "METHOD:PUBLISH")
	assert.Contains(t, out, "UID:1@taskslot")
	assert.Contains(t, out, "SUMMARY:Water plants")
	assert.Contains(t, out, "DTSTART:20250310T180000Z")
	assert.Contains(t, out, "DTEND:20250310T190000Z")
	assert.Contains(t, out, "DTSTART:20250311T180000Z")
	assert.Contains(t, out, "PRIORITY:3")
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
}
