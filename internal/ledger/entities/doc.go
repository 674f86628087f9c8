// Package entities defines the GORM entity models for the migration ledger schema.
//
// The ledger is the migrator's own bookkeeping database. It records, per
// legacy entity, whether that entity has been migrated to the target engine
// (and under which key) or deliberately skipped (and why).
//
// # Entities
//
//   - LedgerEntry: one row per observed legacy entity, keyed by
//     (legacy_id, entity_type)
//   - MigrationRun: audit record of each operator-initiated run
//
// The ledger lives in its own SQLite file or, for shared deployments, in a
// prefixed set of MySQL tables co-located with another schema.
package entities
