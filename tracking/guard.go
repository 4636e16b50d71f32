/*
guard.go - Active-session guard

PURPOSE:
  Protects the invariant "at most one open entry per employee" across
  concurrent requests.

TWO LAYERS:
  1. Per-employee lock: start and stop for the same employee are serialized
     in-process for the whole transaction, so the second request observes the
     first one's committed state instead of racing it.
  2. Storage uniqueness: the Store rejects a second open row
     (ErrOpenEntryExists). This holds across processes sharing a database and
     is the authoritative check; the lock only makes conflicts rare.

  A plain check-then-insert without either layer lets two concurrent starts
  both observe "no active entry" and both insert.

MORE THAN ONE OPEN ENTRY:
  If a store ever returns two open entries for one employee (data written
  before the constraint existed), the guard reports ErrMultipleOpenEntries
  instead of silently closing only the newest one.
*/
package tracking

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Guard enforces the one-open-entry-per-employee invariant.
type Guard struct {
	mu    sync.Mutex
	locks map[EmployeeID]*employeeLock
}

type employeeLock struct {
	mu   sync.Mutex
	refs int
}

func NewGuard() *Guard {
	return &Guard{locks: make(map[EmployeeID]*employeeLock)}
}

// Lock blocks until the caller holds the employee's session lock and returns
// the release function. Lock entries are dropped once no one references them.
func (g *Guard) Lock(id EmployeeID) (unlock func()) {
	g.mu.Lock()
	l, ok := g.locks[id]
	if !ok {
		l = &employeeLock{}
		g.locks[id] = l
	}
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, id)
		}
		g.mu.Unlock()
	}
}

// Active returns the employee's open entry, or nil.
func (g *Guard) Active(ctx context.Context, s Store, employeeID EmployeeID) (*TimeEntry, error) {
	open, err := s.OpenForEmployee(ctx, employeeID, 2)
	if err != nil {
		return nil, err
	}
	switch len(open) {
	case 0:
		return nil, nil
	case 1:
		return &open[0], nil
	default:
		return nil, &ConflictError{EmployeeID: employeeID, ActiveEntryID: open[0].ID, Err: ErrMultipleOpenEntries}
	}
}

// Open inserts a new open entry if the employee has none.
func (g *Guard) Open(ctx context.Context, s Store, entry TimeEntry) error {
	active, err := g.Active(ctx, s, entry.EmployeeID)
	if err != nil {
		return err
	}
	if active != nil {
		return &ConflictError{EmployeeID: entry.EmployeeID, ActiveEntryID: active.ID}
	}

	if err := s.Insert(ctx, entry); err != nil {
		if errors.Is(err, ErrOpenEntryExists) {
			return &ConflictError{EmployeeID: entry.EmployeeID, Err: ErrOpenEntryExists}
		}
		return err
	}
	return nil
}

// Close ends the employee's open entry at the given instant. It returns
// (nil, nil) when there is nothing to close.
func (g *Guard) Close(ctx context.Context, s Store, employeeID EmployeeID, at time.Time) (*TimeEntry, error) {
	active, err := g.Active(ctx, s, employeeID)
	if err != nil || active == nil {
		return nil, err
	}

	closed, err := closeEntry(*active, at)
	if err != nil {
		return nil, err
	}
	patch := EntryPatch{EndTime: closed.EndTime, DurationMinutes: closed.DurationMinutes}
	if err := s.Update(ctx, active.ID, patch); err != nil {
		return nil, err
	}
	return &closed, nil
}
