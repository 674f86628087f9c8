package ledger

import (
	"context"
	"time"

	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
)

// StoreConfig tunes store behavior.
type StoreConfig struct {
	// SaveSkipReason controls whether UpdateSkipReason persists the supplied
	// reason. When false a NULL is stored instead, keeping behavior identical
	// for users who disable the feature for storage or privacy reasons.
	SaveSkipReason bool

	// ListSkippedRequiresReason selects the skipped-entry predicate:
	// true  -> target_key IS NULL AND skip_reason IS NOT NULL
	// false -> target_key IS NULL
	ListSkippedRequiresReason bool
}

// NewEntry describes a ledger entry to be inserted.
type NewEntry struct {
	LegacyID   string
	EntityType entities.EntityType
	TargetKey  *string
	CreateTime *time.Time
	SkipReason *string
}

// Store is the ledger query/write API. All reads and writes are scoped by
// entity type; a legacy ID is only meaningful together with its type.
type Store interface {
	// Exists reports whether any entry exists for the legacy ID and type.
	Exists(ctx context.Context, legacyID string, entityType entities.EntityType) (bool, error)

	// HasTargetKey reports whether the entry exists and maps to a target key.
	HasTargetKey(ctx context.Context, legacyID string, entityType entities.EntityType) (bool, error)

	// FindTargetKey returns the target key for the legacy ID and type.
	// Returns ErrEntryNotFound if no entry exists or the entry has no key.
	FindTargetKey(ctx context.Context, legacyID string, entityType entities.EntityType) (string, error)

	// Find returns the full ledger entry, or ErrEntryNotFound.
	Find(ctx context.Context, legacyID string, entityType entities.EntityType) (*entities.LedgerEntry, error)

	// ListSkipped returns a page of skipped entries for the type, ordered by ID.
	ListSkipped(ctx context.Context, entityType entities.EntityType, offset, pageSize int) ([]entities.LedgerEntry, error)

	// UpdateTargetKey records the target key for an existing entry.
	// Idempotent: repeating the same key is a no-op. A different key returns
	// ErrTargetKeyConflict. Recording a key clears any skip reason.
	UpdateTargetKey(ctx context.Context, legacyID string, entityType entities.EntityType, targetKey string) error

	// UpdateSkipReason records a skip reason for the entry, creating the
	// entry if it does not exist. Honors StoreConfig.SaveSkipReason.
	UpdateSkipReason(ctx context.Context, legacyID string, entityType entities.EntityType, reason string) error

	// CountSkipped returns the number of skipped entries for the type.
	// An empty entityType counts across all types.
	CountSkipped(ctx context.Context, entityType entities.EntityType) (int64, error)

	// CountMigrated returns the number of entries with a target key for the type.
	CountMigrated(ctx context.Context, entityType entities.EntityType) (int64, error)

	// BulkInsert persists the entries in a single transaction. Either the
	// whole batch lands or none of it. Honors StoreConfig.SaveSkipReason.
	BulkInsert(ctx context.Context, entries []NewEntry) error

	// Reset deletes every ledger entry of the given type. This is the only
	// operation that removes ledger rows.
	Reset(ctx context.Context, entityType entities.EntityType) (int64, error)

	// RecordRunStart inserts a MigrationRun audit row.
	RecordRunStart(ctx context.Context, run *entities.MigrationRun) error

	// RecordRunEnd finalizes a MigrationRun audit row.
	RecordRunEnd(ctx context.Context, runID string, outcome entities.RunOutcome, migrated, skipped int64, errMsg string) error

	// RecentRuns returns the most recent runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]entities.MigrationRun, error)
}
