package entities

import "time"

// LedgerEntry records the migration state of a single legacy entity.
//
// A row is created the first time an entity is observed, before any target
// key exists. TargetKey and SkipReason are mutually exclusive: a row either
// maps to a target key, or carries a skip reason, or has neither (observed
// but not yet migrated). Rows are only ever deleted by an explicit reset.
type LedgerEntry struct {
	ID uint `gorm:"primaryKey"`

	// Natural key: legacy identifier scoped by entity type.
	LegacyID   string     `gorm:"size:64;not null;uniqueIndex:idx_ledger_identity"`
	EntityType EntityType `gorm:"size:40;not null;uniqueIndex:idx_ledger_identity;index:idx_ledger_skipped"`

	// TargetKey is the identifier assigned by the target engine, stored in
	// string form so 64-bit numeric keys survive representation changes.
	// NULL means not yet successfully migrated.
	TargetKey *string `gorm:"size:64;index"`

	// CreateTime is the business timestamp of the source entity, when known.
	CreateTime *time.Time

	// SkipReason is set only when migration was deliberately deferred.
	SkipReason *string `gorm:"size:1000;index:idx_ledger_skipped"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// Migrated reports whether the entry maps to a target key.
func (e *LedgerEntry) Migrated() bool {
	return e.TargetKey != nil
}

// Skipped reports whether the entry carries a recorded skip reason.
func (e *LedgerEntry) Skipped() bool {
	return e.TargetKey == nil && e.SkipReason != nil
}
