package ledger

import "github.com/camunda-community-hub/c7-data-migrator/internal/errors"

// Sentinel errors for ledger operations.
// These typed errors let callers distinguish failure modes without relying
// on string matching or GORM-specific errors.
var (
	// ErrEntryNotFound indicates no ledger entry exists for the legacy ID and type.
	ErrEntryNotFound = errors.NewStd("ledger entry not found")

	// ErrTargetKeyConflict indicates an attempt to overwrite an existing
	// target key with a different value. No business case produces this;
	// it signals a programming or data-corruption error and aborts the run.
	ErrTargetKeyConflict = errors.NewStd("target key conflict")

	// ErrDuplicateEntry indicates a unique constraint violation on
	// (legacy_id, entity_type).
	ErrDuplicateEntry = errors.NewStd("duplicate ledger entry")

	// ErrInvalidEntityType indicates an unknown entity type string.
	ErrInvalidEntityType = errors.NewStd("invalid entity type")
)
