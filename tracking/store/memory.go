// Package store provides in-memory tracking.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/timetrack/tracking"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a tracking.TxStore kept entirely in memory.
//
// Transactions are copy-on-commit: WithTx runs fn against a private copy of
// the state and swaps it in only when fn succeeds, so a failed command leaves
// no trace. Writers are serialized by the store lock.
type Memory struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	entries   map[tracking.EntryID]tracking.TimeEntry
	employees map[tracking.EmployeeID]tracking.Employee
	tasks     map[tracking.TaskID]tracking.Task
	projects  map[tracking.ProjectID]tracking.Project
}

func NewMemory() *Memory {
	return &Memory{state: &state{
		entries:   make(map[tracking.EntryID]tracking.TimeEntry),
		employees: make(map[tracking.EmployeeID]tracking.Employee),
		tasks:     make(map[tracking.TaskID]tracking.Task),
		projects:  make(map[tracking.ProjectID]tracking.Project),
	}}
}

func (st *state) clone() *state {
	c := &state{
		entries:   make(map[tracking.EntryID]tracking.TimeEntry, len(st.entries)),
		employees: make(map[tracking.EmployeeID]tracking.Employee, len(st.employees)),
		tasks:     make(map[tracking.TaskID]tracking.Task, len(st.tasks)),
		projects:  make(map[tracking.ProjectID]tracking.Project, len(st.projects)),
	}
	for k, v := range st.entries {
		c.entries[k] = v.Clone()
	}
	for k, v := range st.employees {
		c.employees[k] = v
	}
	for k, v := range st.tasks {
		c.tasks[k] = v
	}
	for k, v := range st.projects {
		c.projects[k] = v
	}
	return c
}

// =============================================================================
// DIRECTORY WRITES (seeding; owned by other subsystems in production)
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, e tracking.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.employees[e.ID] = e
	return nil
}

func (m *Memory) SaveProject(_ context.Context, p tracking.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.projects[p.ID] = p
	return nil
}

func (m *Memory) SaveTask(_ context.Context, t tracking.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.tasks[t.ID] = t
	return nil
}

// DeleteEmployee removes an employee record. Entries referencing it are kept,
// mirroring a database without cascading deletes.
func (m *Memory) DeleteEmployee(_ context.Context, id tracking.EmployeeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.employees, id)
	return nil
}

// =============================================================================
// tracking.Store
// =============================================================================

func (m *Memory) GetEmployee(ctx context.Context, id tracking.EmployeeID) (*tracking.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m.state}.GetEmployee(ctx, id)
}

func (m *Memory) GetTask(ctx context.Context, id tracking.TaskID) (*tracking.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m.state}.GetTask(ctx, id)
}

func (m *Memory) GetProject(ctx context.Context, id tracking.ProjectID) (*tracking.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m.state}.GetProject(ctx, id)
}

func (m *Memory) Insert(ctx context.Context, e tracking.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.state}.Insert(ctx, e)
}

func (m *Memory) Get(ctx context.Context, id tracking.EntryID) (*tracking.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m.state}.Get(ctx, id)
}

func (m *Memory) Update(ctx context.Context, id tracking.EntryID, p tracking.EntryPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.state}.Update(ctx, id, p)
}

func (m *Memory) Delete(ctx context.Context, id tracking.EntryID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m.state}.Delete(ctx, id)
}

func (m *Memory) OpenForEmployee(ctx context.Context, id tracking.EmployeeID, limit int) ([]tracking.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m.state}.OpenForEmployee(ctx, id, limit)
}

func (m *Memory) Query(ctx context.Context, f tracking.Filter) ([]tracking.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m.state}.Query(ctx, f)
}

// WithTx runs fn against a copy of the state and commits it on success.
func (m *Memory) WithTx(ctx context.Context, fn func(tracking.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(view{work}); err != nil {
		return err
	}
	// A command that outlived its deadline is rolled back.
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = work
	return nil
}

// ForceInsert stores an entry without the open-entry check. It exists to
// reproduce data written before the uniqueness constraint was in place.
func (m *Memory) ForceInsert(e tracking.TimeEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.entries[e.ID] = e.Clone()
}

// =============================================================================
// VIEW - unlocked operations over one state
// =============================================================================

type view struct{ st *state }

func (v view) GetEmployee(_ context.Context, id tracking.EmployeeID) (*tracking.Employee, error) {
	e, ok := v.st.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (v view) GetTask(_ context.Context, id tracking.TaskID) (*tracking.Task, error) {
	t, ok := v.st.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (v view) GetProject(_ context.Context, id tracking.ProjectID) (*tracking.Project, error) {
	p, ok := v.st.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (v view) Insert(_ context.Context, e tracking.TimeEntry) error {
	if _, ok := v.st.employees[e.EmployeeID]; !ok {
		return tracking.ErrMissingReference
	}
	if _, ok := v.st.tasks[e.TaskID]; !ok {
		return tracking.ErrMissingReference
	}
	if e.IsOpen() && v.hasOpen(e.EmployeeID, e.ID) {
		return tracking.ErrOpenEntryExists
	}
	stored := e.Clone()
	stored.Details = tracking.EntryDetails{}
	v.st.entries[e.ID] = stored
	return nil
}

func (v view) Get(_ context.Context, id tracking.EntryID) (*tracking.TimeEntry, error) {
	e, ok := v.st.entries[id]
	if !ok {
		return nil, &tracking.NotFoundError{Resource: tracking.ResourceEntry, ID: string(id)}
	}
	out := v.withDetails(e)
	return &out, nil
}

func (v view) Update(_ context.Context, id tracking.EntryID, p tracking.EntryPatch) error {
	e, ok := v.st.entries[id]
	if !ok {
		return &tracking.NotFoundError{Resource: tracking.ResourceEntry, ID: string(id)}
	}
	updated := p.Apply(e)
	if updated.IsOpen() && v.hasOpen(updated.EmployeeID, id) {
		return tracking.ErrOpenEntryExists
	}
	v.st.entries[id] = updated
	return nil
}

func (v view) Delete(_ context.Context, id tracking.EntryID) (bool, error) {
	if _, ok := v.st.entries[id]; !ok {
		return false, nil
	}
	delete(v.st.entries, id)
	return true, nil
}

func (v view) OpenForEmployee(_ context.Context, id tracking.EmployeeID, limit int) ([]tracking.TimeEntry, error) {
	var open []tracking.TimeEntry
	for _, e := range v.st.entries {
		if e.EmployeeID == id && e.IsOpen() {
			open = append(open, v.withDetails(e))
		}
	}
	tracking.SortRecentFirst(open)
	if limit > 0 && len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func (v view) Query(_ context.Context, f tracking.Filter) ([]tracking.TimeEntry, error) {
	out := []tracking.TimeEntry{}
	for _, e := range v.st.entries {
		full := v.withDetails(e)
		if f.Matches(full) {
			out = append(out, full)
		}
	}
	tracking.SortRecentFirst(out)
	return out, nil
}

func (v view) hasOpen(employeeID tracking.EmployeeID, except tracking.EntryID) bool {
	for id, e := range v.st.entries {
		if id != except && e.EmployeeID == employeeID && e.IsOpen() {
			return true
		}
	}
	return false
}

// withDetails joins display fields the way the SQL stores' LEFT JOINs do.
func (v view) withDetails(e tracking.TimeEntry) tracking.TimeEntry {
	out := e.Clone()
	d := tracking.EntryDetails{}
	if emp, ok := v.st.employees[e.EmployeeID]; ok {
		d.EmployeeName = emp.Name
		d.EmployeeEmail = emp.Email
	}
	if task, ok := v.st.tasks[e.TaskID]; ok {
		d.TaskTitle = task.Title
		d.TaskStatus = task.Status
		d.ProjectID = task.ProjectID
	}
	d.ProjectName = tracking.NoProjectName
	if p, ok := v.st.projects[d.ProjectID]; ok && d.ProjectID != "" {
		d.ProjectName = p.Name
		d.ProjectStatus = p.Status
	}
	out.Details = d
	return out
}
