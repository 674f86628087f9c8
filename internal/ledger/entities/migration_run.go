package entities

import "time"

// RunOutcome is the terminal status of a migration run.
type RunOutcome string

const (
	RunOutcomeRunning   RunOutcome = "running"
	RunOutcomeCompleted RunOutcome = "completed"
	RunOutcomeAborted   RunOutcome = "aborted"
)

// MigrationRun is the audit record of one operator-initiated run.
// Every retry is an explicit new run, so this table is the authoritative
// answer to "what was attempted, when, and in which mode".
type MigrationRun struct {
	ID    uint   `gorm:"primaryKey"`
	RunID string `gorm:"size:36;not null;uniqueIndex"` // UUID

	Mode       string     `gorm:"size:20;not null"`
	EntityType EntityType `gorm:"size:40;not null;index"`

	StartedAt   time.Time `gorm:"not null"`
	CompletedAt *time.Time

	MigratedCount int64      `gorm:"default:0"`
	SkippedCount  int64      `gorm:"default:0"`
	Outcome       RunOutcome `gorm:"size:20;not null;default:'running'"`
	ErrorMessage  string     `gorm:"type:text"`

	// MarkerWritten reports that the legacy-side run marker was committed
	// together with this row, via the transaction coordinator.
	MarkerWritten bool `gorm:"default:false"`
}

// TableName returns the table name for GORM.
func (MigrationRun) TableName() string {
	return "migration_runs"
}
