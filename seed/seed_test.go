package seed_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timetrack/seed"
	"github.com/warp/timetrack/store/sqlite"
	"github.com/warp/timetrack/tracking"
	"github.com/warp/timetrack/tracking/store"
)

func TestDemo_AppliesToMemoryStore(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, seed.Apply(ctx, mem, seed.Demo()))

	task, err := mem.GetTask(ctx, "task-design")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, tracking.ProjectID("proj-apollo"), task.ProjectID)

	emp, err := mem.GetEmployee(ctx, "emp-ada")
	require.NoError(t, err)
	require.NotNil(t, emp)
	assert.Equal(t, "ada@example.com", emp.Email)
}

func TestDemo_AppliesToSQLiteTwice(t *testing.T) {
	// GIVEN: A fresh database (foreign keys on)
	ctx := context.Background()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// WHEN: Seeding twice
	require.NoError(t, seed.Apply(ctx, db, seed.Demo()))
	require.NoError(t, seed.Apply(ctx, db, seed.Demo()))

	// THEN: Upserts keep one row per record and a started entry joins cleanly
	tr := tracking.New(db, tracking.Options{})
	entry, err := tr.StartEntry(ctx, tracking.StartRequest{EmployeeID: "emp-grace", TaskID: "task-support"})
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", entry.Details.EmployeeName)
	assert.Equal(t, tracking.NoProjectName, entry.Details.ProjectName)
}

func TestLoad_RejectsUnknownProjectAndFields(t *testing.T) {
	_, err := seed.Load(strings.NewReader(`
tasks:
  - id: t1
    title: Orphan
    project_id: missing
`))
	assert.ErrorContains(t, err, `unknown project "missing"`)

	_, err = seed.Load(strings.NewReader(`
employees:
  - id: e1
    name: Ada
    hire_date: 2024-01-01
`))
	assert.Error(t, err)
}

func TestLoad_EmptyDocument(t *testing.T) {
	f, err := seed.Load(strings.NewReader(""))

	require.NoError(t, err)
	assert.Empty(t, f.Employees)
}
