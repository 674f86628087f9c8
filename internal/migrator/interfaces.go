// Package migrator contains the per-entity-type migration orchestrator and
// the collaborator interfaces it drives.
package migrator

import (
	"context"
	"time"

	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
)

// SourceEntity is one row surfaced from the legacy engine database.
type SourceEntity struct {
	LegacyID   string
	EntityType entities.EntityType
	CreateTime *time.Time

	// Fields carries the raw source columns for the converter. The
	// orchestrator never interprets them.
	Fields map[string]any
}

// SourceClient reads the legacy engine database in pages.
type SourceClient interface {
	// Count returns the total number of source entities of the type.
	Count(ctx context.Context, entityType entities.EntityType) (int64, error)

	// FetchPage returns source entities ordered by legacy ID.
	FetchPage(ctx context.Context, entityType entities.EntityType, offset, limit int) ([]SourceEntity, error)

	// FetchOne returns a single source entity, or ErrSourceEntityNotFound.
	FetchOne(ctx context.Context, entityType entities.EntityType, legacyID string) (*SourceEntity, error)
}

// TargetRecord is the converter's output: a target-schema representation the
// target client can create. The orchestrator treats it as opaque.
type TargetRecord struct {
	EntityType entities.EntityType
	Payload    map[string]any
}

// KeyLookup resolves previously migrated dependencies during conversion,
// e.g. a variable's owning process instance.
type KeyLookup interface {
	// FindTargetKey returns the target key for a migrated entity, or
	// ledger.ErrEntryNotFound.
	FindTargetKey(ctx context.Context, entityType entities.EntityType, legacyID string) (string, error)
}

// Converter validates and transforms one source entity into a target record.
//
// A validation failure (missing dependency, unsupported construct) is
// reported as a non-empty skip reason with a nil error; it is an expected,
// recorded outcome. An error return is reserved for programming or
// data-corruption failures and aborts the run.
type Converter interface {
	Convert(ctx context.Context, entity *SourceEntity, lookup KeyLookup) (record *TargetRecord, skipReason string, err error)
}

// TargetClient creates and compensates objects in the target engine.
// Keys are opaque strings assigned by the target.
type TargetClient interface {
	Create(ctx context.Context, record *TargetRecord) (targetKey string, err error)
	Cancel(ctx context.Context, entityType entities.EntityType, targetKey string) error
	Delete(ctx context.Context, entityType entities.EntityType, targetKey string) error
}
