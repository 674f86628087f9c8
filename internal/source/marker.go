package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/camunda-community-hub/c7-data-migrator/internal/errors"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"github.com/camunda-community-hub/c7-data-migrator/internal/txbridge"
)

// markerTable lives in the legacy database and records which migration runs
// have touched it. Operators of the legacy system can see migration
// progress without access to the ledger database.
const markerTable = "MIGRATION_RUN_LOG_"

const createMarkerTableSQL = `CREATE TABLE IF NOT EXISTS ` + markerTable + ` (
	RUN_ID_      VARCHAR(36) NOT NULL,
	ENTITY_TYPE_ VARCHAR(40) NOT NULL,
	MODE_        VARCHAR(20) NOT NULL,
	MIGRATED_    BIGINT NOT NULL,
	SKIPPED_     BIGINT NOT NULL,
	RECORDED_    TIMESTAMP NOT NULL,
	PRIMARY KEY (RUN_ID_, ENTITY_TYPE_)
)`

// MarkerWriter records run markers in the legacy database through the
// transaction coordinator, so a marker commits only when the ledger-side
// audit update commits.
type MarkerWriter struct {
	coordinator *txbridge.Coordinator
	logger      *slog.Logger
}

// NewMarkerWriter creates a marker writer over the coordinator that owns
// the legacy database handle.
func NewMarkerWriter(coordinator *txbridge.Coordinator, logger *slog.Logger) *MarkerWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkerWriter{coordinator: coordinator, logger: logger}
}

// EnsureTable creates the marker table if it is missing. Called once at
// startup, outside any coordinated transaction.
func (w *MarkerWriter) EnsureTable(ctx context.Context) error {
	conn, err := w.coordinator.SecondaryConn(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, createMarkerTableSQL); err != nil {
		return errors.New(err).
			Component("source").
			Category(errors.CategoryDatabase).
			Context("table", markerTable).
			Build()
	}
	return nil
}

// Record writes one run marker inside the scope's coordinated transaction.
func (w *MarkerWriter) Record(ctx context.Context, scope *txbridge.TxScope, runID string, mode string, entityType entities.EntityType, migrated, skipped int64) error {
	conn, err := w.coordinator.SecondaryConn(ctx, scope)
	if err != nil {
		return err
	}

	_, err = conn.ExecContext(ctx,
		`INSERT INTO `+markerTable+` (RUN_ID_, ENTITY_TYPE_, MODE_, MIGRATED_, SKIPPED_, RECORDED_) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, string(entityType), mode, migrated, skipped, time.Now().UTC())
	if err != nil {
		return errors.New(err).
			Component("source").
			Category(errors.CategoryDatabase).
			Context("table", markerTable).
			Context("run_id", runID).
			Build()
	}

	w.logger.Debug("run marker staged", "run_id", runID, "entity_type", entityType)
	return nil
}
