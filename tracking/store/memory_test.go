package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timetrack/tracking"
	"github.com/warp/timetrack/tracking/store"
)

func newMemory(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SaveEmployee(ctx, tracking.Employee{ID: "E1", Name: "Ada"}))
	require.NoError(t, m.SaveProject(ctx, tracking.Project{ID: "P1", Name: "Apollo"}))
	require.NoError(t, m.SaveTask(ctx, tracking.Task{ID: "T1", Title: "Design", ProjectID: "P1"}))
	require.NoError(t, m.SaveTask(ctx, tracking.Task{ID: "T2", Title: "Support"}))
	return m
}

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func TestMemory_InsertJoinsDetails(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Insert(ctx, tracking.TimeEntry{ID: "a", EmployeeID: "E1", TaskID: "T1", StartTime: t0}))

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Details.EmployeeName)
	assert.Equal(t, "Apollo", got.Details.ProjectName)
	assert.Equal(t, tracking.ProjectID("P1"), got.Details.ProjectID)
}

func TestMemory_TaskWithoutProjectShowsNA(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()
	require.NoError(t, m.Insert(ctx, tracking.TimeEntry{ID: "a", EmployeeID: "E1", TaskID: "T2", StartTime: t0}))

	got, err := m.Get(ctx, "a")

	require.NoError(t, err)
	assert.Equal(t, tracking.NoProjectName, got.Details.ProjectName)
	assert.Empty(t, got.Details.ProjectID)
}

func TestMemory_RejectsSecondOpenEntry(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()
	require.NoError(t, m.Insert(ctx, tracking.TimeEntry{ID: "a", EmployeeID: "E1", TaskID: "T1", StartTime: t0}))

	err := m.Insert(ctx, tracking.TimeEntry{ID: "b", EmployeeID: "E1", TaskID: "T2", StartTime: t0.Add(time.Hour)})
	assert.ErrorIs(t, err, tracking.ErrOpenEntryExists)

	// A closed entry is fine.
	end := t0.Add(2 * time.Hour)
	minutes := 60
	require.NoError(t, m.Insert(ctx, tracking.TimeEntry{
		ID: "c", EmployeeID: "E1", TaskID: "T2",
		StartTime: t0.Add(time.Hour), EndTime: &end, DurationMinutes: &minutes,
	}))
}

func TestMemory_MissingReference(t *testing.T) {
	m := newMemory(t)

	err := m.Insert(context.Background(), tracking.TimeEntry{ID: "a", EmployeeID: "ghost", TaskID: "T1", StartTime: t0})
	assert.ErrorIs(t, err, tracking.ErrMissingReference)

	err = m.Insert(context.Background(), tracking.TimeEntry{ID: "a", EmployeeID: "E1", TaskID: "ghost", StartTime: t0})
	assert.ErrorIs(t, err, tracking.ErrMissingReference)
}

func TestMemory_WithTxRollsBackOnError(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(s tracking.Store) error {
		require.NoError(t, s.Insert(ctx, tracking.TimeEntry{ID: "a", EmployeeID: "E1", TaskID: "T1", StartTime: t0}))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	_, err = m.Get(ctx, "a")
	assert.True(t, tracking.IsNotFound(err))
}

func TestMemory_WithTxCommits(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	require.NoError(t, m.WithTx(ctx, func(s tracking.Store) error {
		return s.Insert(ctx, tracking.TimeEntry{ID: "a", EmployeeID: "E1", TaskID: "T1", StartTime: t0})
	}))

	open, err := m.OpenForEmployee(ctx, "E1", 2)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, tracking.EntryID("a"), open[0].ID)
}

func TestMemory_WithTxCanceledContext(t *testing.T) {
	m := newMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := m.WithTx(ctx, func(tracking.Store) error { called = true; return nil })

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemory_ReturnedEntriesAreCopies(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()
	require.NoError(t, m.Insert(ctx, tracking.TimeEntry{ID: "a", EmployeeID: "E1", TaskID: "T1", StartTime: t0}))

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	got.StartTime = t0.Add(time.Hour)

	again, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, again.StartTime.Equal(t0))
}

func TestMemory_UpdateAndDelete(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()
	require.NoError(t, m.Insert(ctx, tracking.TimeEntry{ID: "a", EmployeeID: "E1", TaskID: "T1", StartTime: t0}))

	end := t0.Add(30 * time.Minute)
	minutes := 30
	require.NoError(t, m.Update(ctx, "a", tracking.EntryPatch{EndTime: &end, DurationMinutes: &minutes}))

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, got.IsOpen())
	assert.Equal(t, 30, *got.DurationMinutes)

	err = m.Update(ctx, "missing", tracking.EntryPatch{EndTime: &end})
	assert.True(t, tracking.IsNotFound(err))

	deleted, err := m.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = m.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, deleted)
}
