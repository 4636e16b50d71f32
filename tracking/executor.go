/*
executor.go - Transactional command executor

PURPOSE:
  Gives every mutating operation (start, stop, update, delete) atomicity and a
  consistent return value.

PROTOCOL:
  1. Begin transaction (TxStore.WithTx), bounded by the command timeout
  2. Validate
  3. Write (insert/update/delete)
  4. Re-read the affected row with its display fields
  5. Commit and return the re-read snapshot

  Any error rolls the transaction back before it reaches the caller; partial
  writes are never observable. Rollback failures are logged by the store and
  never replace the original error.

ERRORS:
  Taxonomy errors (InvalidInput, NotFound, Conflict) pass through unchanged.
  Anything else is logged with the operation name and returned as an
  *InternalError.
*/
package tracking

import (
	"context"
	"log/slog"
	"time"
)

// Executor runs commands inside a store transaction.
type Executor struct {
	store   TxStore
	log     *slog.Logger
	timeout time.Duration
}

// NewExecutor creates an executor. timeout <= 0 disables the command deadline.
func NewExecutor(store TxStore, log *slog.Logger, timeout time.Duration) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{store: store, log: log, timeout: timeout}
}

func (x *Executor) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if x.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, x.timeout)
}

// execute runs fn in a transaction and returns its value only on commit.
func execute[T any](ctx context.Context, x *Executor, op string, attrs []any, fn func(context.Context, Store) (T, error)) (T, error) {
	started := time.Now()
	ctx, cancel := x.withDeadline(ctx)
	defer cancel()

	var out T
	err := x.store.WithTx(ctx, func(s Store) error {
		v, err := fn(ctx, s)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	err = classify(op, err)
	observe(op, err, started)

	if err != nil {
		x.logFailure(ctx, op, err, attrs)
		var zero T
		return zero, err
	}
	return out, nil
}

// read runs a read-only operation against the store under the same deadline.
func read[T any](ctx context.Context, x *Executor, op string, attrs []any, fn func(context.Context, Store) (T, error)) (T, error) {
	started := time.Now()
	ctx, cancel := x.withDeadline(ctx)
	defer cancel()

	out, err := fn(ctx, x.store)
	err = classify(op, err)
	observe(op, err, started)

	if err != nil {
		x.logFailure(ctx, op, err, attrs)
		var zero T
		return zero, err
	}
	return out, nil
}

func (x *Executor) logFailure(ctx context.Context, op string, err error, attrs []any) {
	args := append([]any{slog.String("op", op), slog.String("error", err.Error())}, attrs...)
	if KindOf(err) == KindInternal {
		x.log.ErrorContext(ctx, "tracker command failed", args...)
		return
	}
	x.log.DebugContext(ctx, "tracker command rejected", args...)
}
