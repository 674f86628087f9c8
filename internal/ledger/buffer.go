package ledger

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/camunda-community-hub/c7-data-migrator/internal/errors"
)

// DefaultFlushThreshold is the default buffer size that triggers a flush.
const DefaultFlushThreshold = 100

// CompensationRegister collects target-system keys whose ledger write failed
// and which therefore need a compensating action against the target engine.
//
// One register belongs to one migration run. It is passed explicitly through
// the call chain rather than held in ambient state, so concurrent runs never
// cross-contaminate each other's rollback lists.
type CompensationRegister struct {
	mu   sync.Mutex
	keys []string
}

// NewCompensationRegister creates an empty register.
func NewCompensationRegister() *CompensationRegister {
	return &CompensationRegister{}
}

// Record appends target keys from a failed batch.
func (r *CompensationRegister) Record(keys []string) {
	if len(keys) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, keys...)
}

// FailedKeys returns a copy of the recorded keys.
func (r *CompensationRegister) FailedKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.keys)
}

// Clear empties the register.
func (r *CompensationRegister) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = nil
}

// Buffer coalesces ledger inserts into bulk writes.
//
// Entries accumulate in memory until the flush threshold is reached, then a
// single bulk insert lands the whole batch. For entity types whose target
// object must be rolled back when the ledger write fails, the buffer keeps a
// side list of the batch's target keys; on flush failure those keys are
// deposited into the run's CompensationRegister before the error propagates.
//
// All mutations serialize on the buffer's own lock. The flush's bulk insert
// is the only I/O performed while holding it; callers must not call back
// into the buffer from inside a flush.
type Buffer struct {
	mu          sync.Mutex
	store       Store
	threshold   int
	pending     []NewEntry
	compensable []string // target keys of the current batch needing rollback on failure
	logger      *slog.Logger
}

// NewBuffer creates a buffer flushing through the given store.
func NewBuffer(store Store, threshold int, logger *slog.Logger) *Buffer {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{
		store:     store,
		threshold: threshold,
		logger:    logger,
	}
}

// Add appends an entry to the buffer. If the buffer reaches the configured
// threshold the flush happens synchronously before Add returns; a flush error
// is the caller's signal to run compensation via the register. The returned
// count is the number of entries the call persisted, zero when no flush was
// triggered. Entries only count as migrated once their batch has landed.
func (b *Buffer) Add(ctx context.Context, register *CompensationRegister, entry NewEntry) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, entry)
	if entry.TargetKey != nil && entry.EntityType.RequiresCompensation() {
		b.compensable = append(b.compensable, *entry.TargetKey)
	}

	if len(b.pending) >= b.threshold {
		return b.flushLocked(ctx, register)
	}
	return 0, nil
}

// Flush persists all buffered entries in one bulk insert, returning the
// number of entries persisted.
func (b *Buffer) Flush(ctx context.Context, register *CompensationRegister) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(ctx, register)
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// flushLocked snapshots and clears the buffer, then executes the bulk insert.
// The buffer is cleared on both outcomes: a failed batch is considered
// unmigrated in its entirety and is re-derived from the source on the next
// run, never re-flushed from memory.
func (b *Buffer) flushLocked(ctx context.Context, register *CompensationRegister) (int, error) {
	if len(b.pending) == 0 {
		return 0, nil
	}

	batch := b.pending
	keys := b.compensable
	b.pending = nil
	b.compensable = nil

	if err := b.store.BulkInsert(ctx, batch); err != nil {
		if register != nil {
			register.Record(keys)
		}
		b.logger.Error("ledger bulk insert failed",
			"batch_size", len(batch),
			"compensable_keys", len(keys),
			"error", err)
		return 0, errors.New(err).
			Component("ledger").
			Category(errors.CategoryBatch).
			Context("batch_size", len(batch)).
			Build()
	}

	// A successful flush supersedes earlier failures: the caller has either
	// compensated them already or is about to abort.
	if register != nil {
		register.Clear()
	}

	b.logger.Debug("ledger batch flushed", "batch_size", len(batch))
	return len(batch), nil
}
