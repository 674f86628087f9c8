package txbridge

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"

	"github.com/camunda-community-hub/c7-data-migrator/internal/errors"
	"gorm.io/gorm"
)

// Conn is the subset of database operations exposed for secondary-side work.
// Both *sql.DB (autocommit mode) and *sql.Tx satisfy it.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// binding associates one scope with its lazily created secondary transaction.
type binding struct {
	tx        *sql.Tx
	committed bool
}

// Coordinator hands out secondary-database connections whose commit and
// rollback follow the primary transaction's outcome.
type Coordinator struct {
	secondary *sql.DB
	logger    *slog.Logger

	mu       sync.Mutex
	bindings map[*TxScope]*binding
}

// NewCoordinator creates a coordinator over the secondary database handle.
func NewCoordinator(secondary *sql.DB, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		secondary: secondary,
		logger:    logger,
		bindings:  make(map[*TxScope]*binding),
	}
}

// SecondaryConn returns a connection to the secondary database bound to the
// given scope. Within one scope the same transaction is returned on every
// call; it commits in the scope's before-commit phase and rolls back if the
// primary rolls back.
//
// With a nil or completed scope there is nothing to bind to: the raw
// autocommit handle is returned and a warning logged, preserving best-effort
// behavior for callers outside any transaction.
func (c *Coordinator) SecondaryConn(ctx context.Context, scope *TxScope) (Conn, error) {
	if !scope.Active() {
		c.logger.Warn("secondary connection requested outside an active transaction, using autocommit")
		return c.secondary, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.bindings[scope]; ok {
		return b.tx, nil
	}

	tx, err := c.secondary.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("txbridge").
			Category(errors.CategoryTransaction).
			Build()
	}

	b := &binding{tx: tx}
	c.bindings[scope] = b

	// Commit the secondary before the primary's physical commit. An error
	// here propagates and prevents the primary from committing data that
	// assumes this write succeeded.
	if err := scope.OnBeforeCommit(func() error {
		if err := b.tx.Commit(); err != nil {
			return errors.New(err).
				Component("txbridge").
				Category(errors.CategoryTransaction).
				Context("phase", "before-commit").
				Build()
		}
		b.committed = true
		return nil
	}); err != nil {
		_ = tx.Rollback()
		delete(c.bindings, scope)
		return nil, err
	}

	// Tear-down runs unconditionally once the primary's outcome is known,
	// whether or not the secondary commit itself succeeded.
	if err := scope.OnAfterCompletion(func(outcome Outcome) {
		c.release(scope, outcome)
	}); err != nil {
		_ = tx.Rollback()
		delete(c.bindings, scope)
		return nil, err
	}

	return tx, nil
}

// release rolls back an uncommitted secondary transaction when the primary
// rolled back, and always drops the binding.
func (c *Coordinator) release(scope *TxScope, outcome Outcome) {
	c.mu.Lock()
	b, ok := c.bindings[scope]
	delete(c.bindings, scope)
	c.mu.Unlock()

	if !ok {
		return
	}

	if !b.committed {
		if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			c.logger.Error("failed to roll back secondary transaction",
				"outcome", outcome.String(), "error", err)
		}
	} else if outcome == OutcomeRolledBack {
		// Secondary committed but primary rolled back: the documented
		// divergence window. Surface it loudly for reconciliation.
		c.logger.Error("secondary committed but primary rolled back, manual reconciliation may be required")
	}
}

// IsActive reports whether the scope has a live secondary binding.
func (c *Coordinator) IsActive(scope *TxScope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.bindings[scope]
	return ok
}

// RunInTransaction executes fn inside one primary GORM transaction with a
// fresh scope. Hook and commit ordering:
//
//  1. fn runs with the open transaction and scope
//  2. before-commit hooks run (secondary commits happen here)
//  3. the primary commit is issued
//  4. after-completion hooks run with the final outcome
//
// Any error in steps 1-3 rolls the primary back and completes the scope with
// OutcomeRolledBack. A panic in fn or a hook rolls back and completes the
// scope the same way before re-panicking, so neither transaction leaks.
func RunInTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB, scope *TxScope) error) error {
	scope := NewScope()

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		scope.complete(OutcomeRolledBack)
		return errors.New(tx.Error).
			Component("txbridge").
			Category(errors.CategoryTransaction).
			Build()
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			scope.complete(OutcomeRolledBack)
			panic(r)
		}
	}()

	if err := fn(tx, scope); err != nil {
		tx.Rollback()
		scope.complete(OutcomeRolledBack)
		return err
	}

	if err := scope.runBeforeCommit(); err != nil {
		tx.Rollback()
		scope.complete(OutcomeRolledBack)
		return err
	}

	if err := tx.Commit().Error; err != nil {
		// The secondary may already be committed at this point; release
		// logic reports the divergence.
		scope.complete(OutcomeRolledBack)
		return errors.New(err).
			Component("txbridge").
			Category(errors.CategoryTransaction).
			Context("phase", "primary-commit").
			Build()
	}

	scope.complete(OutcomeCommitted)
	return nil
}
