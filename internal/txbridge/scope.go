// Package txbridge coordinates writes to a secondary database with the
// lifecycle of a primary database transaction.
//
// The coordination is deliberately not two-phase commit. The secondary
// connection is committed in a before-commit hook of the primary transaction:
// a secondary commit failure prevents the primary from committing, which
// covers the common failure case. The reverse window remains: if the
// secondary commit succeeds and the primary's own commit then fails, the
// secondary change stays committed while the primary rolls back. That
// divergence is accepted: the affected rows can be detected and reconciled
// by a later run, never silently lost.
package txbridge

import (
	"sync"

	"github.com/camunda-community-hub/c7-data-migrator/internal/errors"
)

// Outcome is the final result of a transaction scope.
type Outcome int

const (
	// OutcomeCommitted means the primary transaction committed.
	OutcomeCommitted Outcome = iota
	// OutcomeRolledBack means the primary transaction rolled back.
	OutcomeRolledBack
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	if o == OutcomeCommitted {
		return "committed"
	}
	return "rolled_back"
}

// ErrScopeCompleted is returned when hooks are registered on a finished scope.
var ErrScopeCompleted = errors.NewStd("transaction scope already completed")

// TxScope represents one logical primary transaction and carries the
// completion hooks other components register against it. It is constructed
// once per transaction and passed explicitly through the call chain; there is
// no ambient transaction binding.
type TxScope struct {
	mu              sync.Mutex
	beforeCommit    []func() error
	afterCompletion []func(Outcome)
	completed       bool
}

// NewScope creates a scope for one logical transaction.
func NewScope() *TxScope {
	return &TxScope{}
}

// OnBeforeCommit registers a hook invoked before the primary commit is
// physically issued. A hook error aborts the primary commit.
func (s *TxScope) OnBeforeCommit(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return ErrScopeCompleted
	}
	s.beforeCommit = append(s.beforeCommit, fn)
	return nil
}

// OnAfterCompletion registers a hook invoked after the transaction's final
// outcome is known. After-completion hooks run unconditionally, on commit
// and rollback alike.
func (s *TxScope) OnAfterCompletion(fn func(Outcome)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return ErrScopeCompleted
	}
	s.afterCompletion = append(s.afterCompletion, fn)
	return nil
}

// Active reports whether the scope still represents an open transaction.
func (s *TxScope) Active() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.completed
}

// runBeforeCommit runs the registered before-commit hooks in registration
// order, stopping at the first error.
func (s *TxScope) runBeforeCommit() error {
	s.mu.Lock()
	hooks := s.beforeCommit
	s.mu.Unlock()

	for _, hook := range hooks {
		if err := hook(); err != nil {
			return err
		}
	}
	return nil
}

// complete marks the scope finished and runs the after-completion hooks.
// Idempotent: only the first call runs the hooks.
func (s *TxScope) complete(outcome Outcome) {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return
	}
	s.completed = true
	hooks := s.afterCompletion
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(outcome)
	}
}
