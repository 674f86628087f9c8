// Package runner wires the migration components together and executes the
// CLI operations. It owns component lifecycle; the cmd packages stay thin.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/camunda-community-hub/c7-data-migrator/internal/conf"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"github.com/camunda-community-hub/c7-data-migrator/internal/logging"
	"github.com/camunda-community-hub/c7-data-migrator/internal/migrator"
	"github.com/camunda-community-hub/c7-data-migrator/internal/source"
	"github.com/camunda-community-hub/c7-data-migrator/internal/target"
	"github.com/camunda-community-hub/c7-data-migrator/internal/txbridge"
	"gorm.io/gorm"
)

// Runner holds the wired migration components for one invocation.
type Runner struct {
	settings *conf.Settings
	logger   *slog.Logger

	ledgerManager ledger.Manager
	store         ledger.Store
	buffer        *ledger.Buffer
	sourceDB      *gorm.DB
	sourceClient  *source.Client
	coordinator   *txbridge.Coordinator
	marker        *source.MarkerWriter
	targetClient  *target.Client
	migrator      *migrator.Migrator
}

// New builds a fully wired runner from settings. Close must be called when
// done.
func New(ctx context.Context, settings *conf.Settings) (*Runner, error) {
	logger := logging.ForService("runner")

	ledgerManager, err := ledger.NewManager(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := ledgerManager.Initialize(); err != nil {
		ledgerManager.Close()
		return nil, err
	}

	store := ledger.NewStore(ledgerManager.DB(), ledger.StoreConfig{
		SaveSkipReason:            settings.Ledger.SaveSkipReason,
		ListSkippedRequiresReason: settings.Ledger.ListSkippedRequiresReason,
	}, logging.ForService("ledger"))

	buffer := ledger.NewBuffer(store, settings.Migration.BatchSize, logging.ForService("ledger"))

	sourceDB, err := source.Open(settings)
	if err != nil {
		ledgerManager.Close()
		return nil, err
	}
	sourceClient := source.NewClient(sourceDB, logging.ForService("source"))

	sourceSQL, err := sourceDB.DB()
	if err != nil {
		ledgerManager.Close()
		return nil, fmt.Errorf("failed to get underlying source database: %w", err)
	}
	coordinator := txbridge.NewCoordinator(sourceSQL, logging.ForService("txbridge"))
	marker := source.NewMarkerWriter(coordinator, logging.ForService("source"))
	if err := marker.EnsureTable(ctx); err != nil {
		ledgerManager.Close()
		return nil, err
	}

	targetClient := target.NewClient(&settings.Target, logging.ForService("target"))

	policy, err := migrator.NewCompensationPolicy(settings.Migration.CompensationPolicy, logging.ForService("migrator"))
	if err != nil {
		targetClient.Close()
		ledgerManager.Close()
		return nil, err
	}

	m, err := migrator.New(&migrator.Config{
		Store:          store,
		Buffer:         buffer,
		Source:         sourceClient,
		Target:         targetClient,
		Converter:      target.NewConverter(),
		Policy:         policy,
		Logger:         logging.ForService("migrator"),
		PageSize:       settings.Migration.PageSize,
		SkipValidation: settings.Migration.SkipValidation,
	})
	if err != nil {
		targetClient.Close()
		ledgerManager.Close()
		return nil, err
	}

	return &Runner{
		settings:      settings,
		logger:        logger,
		ledgerManager: ledgerManager,
		store:         store,
		buffer:        buffer,
		sourceDB:      sourceDB,
		sourceClient:  sourceClient,
		coordinator:   coordinator,
		marker:        marker,
		targetClient:  targetClient,
		migrator:      m,
	}, nil
}

// Close releases all database and HTTP resources.
func (r *Runner) Close() {
	r.targetClient.Close()
	if sqlDB, err := r.sourceDB.DB(); err == nil {
		sqlDB.Close()
	}
	r.ledgerManager.Close()
}

// Store exposes the ledger store for status and reset operations.
func (r *Runner) Store() ledger.Store {
	return r.store
}

// entityTypes resolves the configured or requested entity types, preserving
// dependency order. An empty selection means every type.
func (r *Runner) entityTypes(requested []string) ([]entities.EntityType, error) {
	if len(requested) == 0 {
		requested = r.settings.Migration.EntityTypes
	}
	if len(requested) == 0 {
		return entities.AllEntityTypes, nil
	}

	selected := make(map[entities.EntityType]bool, len(requested))
	for _, name := range requested {
		t, ok := entities.ParseEntityType(name)
		if !ok {
			return nil, fmt.Errorf("unknown entity type %q", name)
		}
		selected[t] = true
	}

	var ordered []entities.EntityType
	for _, t := range entities.AllEntityTypes {
		if selected[t] {
			ordered = append(ordered, t)
		}
	}
	return ordered, nil
}

// Execute runs one migration pass in the given mode over the selected
// entity types, in dependency order. The first aborted run stops the pass;
// completed types keep their results.
func (r *Runner) Execute(ctx context.Context, mode migrator.Mode, requested []string) error {
	types, err := r.entityTypes(requested)
	if err != nil {
		return err
	}

	for _, entityType := range types {
		summary, err := r.migrator.Run(ctx, mode, entityType)
		if err != nil {
			return err
		}
		if err := r.recordMarker(ctx, summary); err != nil {
			// The run itself succeeded; a marker failure is reported but
			// does not undo it.
			r.logger.Error("failed to record run marker",
				"run_id", summary.RunID, "error", err)
		}
	}
	return nil
}

// recordMarker commits the legacy-side run marker together with the
// ledger-side marker flag, through the transaction coordinator.
func (r *Runner) recordMarker(ctx context.Context, summary *migrator.RunSummary) error {
	return txbridge.RunInTransaction(ctx, r.ledgerManager.DB(), func(tx *gorm.DB, scope *txbridge.TxScope) error {
		if err := tx.Model(&entities.MigrationRun{}).
			Where("run_id = ?", summary.RunID).
			Update("marker_written", true).Error; err != nil {
			return err
		}
		return r.marker.Record(ctx, scope, summary.RunID, string(summary.Mode), summary.EntityType, summary.Migrated, summary.Skipped)
	})
}

// Status summarizes ledger progress for one entity type.
type Status struct {
	EntityType entities.EntityType
	Migrated   int64
	Skipped    int64
}

// Status reports per-type ledger counts and the most recent runs.
func (r *Runner) Status(ctx context.Context, recentRuns int) ([]Status, []entities.MigrationRun, error) {
	var statuses []Status
	for _, entityType := range entities.AllEntityTypes {
		migrated, err := r.store.CountMigrated(ctx, entityType)
		if err != nil {
			return nil, nil, err
		}
		skipped, err := r.store.CountSkipped(ctx, entityType)
		if err != nil {
			return nil, nil, err
		}
		statuses = append(statuses, Status{EntityType: entityType, Migrated: migrated, Skipped: skipped})
	}

	runs, err := r.store.RecentRuns(ctx, recentRuns)
	if err != nil {
		return nil, nil, err
	}
	return statuses, runs, nil
}

// Reset deletes ledger entries for the requested types and returns the
// number of removed entries per type.
func (r *Runner) Reset(ctx context.Context, requested []string) (map[entities.EntityType]int64, error) {
	types, err := r.entityTypes(requested)
	if err != nil {
		return nil, err
	}

	removed := make(map[entities.EntityType]int64, len(types))
	for _, entityType := range types {
		n, err := r.store.Reset(ctx, entityType)
		if err != nil {
			return removed, err
		}
		removed[entityType] = n
		r.logger.Info("ledger entries removed", "entity_type", entityType, "count", n)
	}
	return removed, nil
}
