package migrator

import (
	"sync/atomic"
	"time"

	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"github.com/google/uuid"
)

// RunContext carries the per-run mutable state through the call chain: the
// run identity, its mode, and the compensation register for failed batches.
// It replaces ambient thread-local state with an explicit object.
type RunContext struct {
	RunID      string
	Mode       Mode
	EntityType entities.EntityType
	StartedAt  time.Time

	// Register collects target keys needing compensation after a failed
	// ledger flush. Scoped to this run only.
	Register *ledger.CompensationRegister

	migrated atomic.Int64
	skipped  atomic.Int64
}

// NewRunContext creates the context for one migration run.
func NewRunContext(mode Mode, entityType entities.EntityType) *RunContext {
	return &RunContext{
		RunID:      uuid.NewString(),
		Mode:       mode,
		EntityType: entityType,
		StartedAt:  time.Now(),
		Register:   ledger.NewCompensationRegister(),
	}
}

// CountMigrated increments the migrated counter.
func (rc *RunContext) CountMigrated() { rc.migrated.Add(1) }

// AddMigrated advances the migrated counter by a flushed batch size.
func (rc *RunContext) AddMigrated(n int) { rc.migrated.Add(int64(n)) }

// CountSkipped increments the skipped counter.
func (rc *RunContext) CountSkipped() { rc.skipped.Add(1) }

// Migrated returns the number of entities migrated so far.
func (rc *RunContext) Migrated() int64 { return rc.migrated.Load() }

// Skipped returns the number of entities skipped so far.
func (rc *RunContext) Skipped() int64 { return rc.skipped.Load() }

// FailedKeys returns the target keys recorded by the last failed flush.
func (rc *RunContext) FailedKeys() []string { return rc.Register.FailedKeys() }

// ClearFailedKeys empties the compensation register.
func (rc *RunContext) ClearFailedKeys() { rc.Register.Clear() }

// RunSummary is the terminal report of one run.
type RunSummary struct {
	RunID      string
	Mode       Mode
	EntityType entities.EntityType
	Migrated   int64
	Skipped    int64
	Duration   time.Duration
}
