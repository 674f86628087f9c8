package migrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/camunda-community-hub/c7-data-migrator/internal/errors"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"github.com/camunda-community-hub/c7-data-migrator/internal/pager"
	gocache "github.com/patrickmn/go-cache"
)

// DefaultPageSize is the default source pagination page size.
const DefaultPageSize = 500

const (
	// lookupCacheTTL bounds staleness of cached target-key lookups. Keys are
	// immutable once assigned, so the TTL only limits memory growth.
	lookupCacheTTL     = 10 * time.Minute
	lookupCacheCleanup = 15 * time.Minute
)

// Config assembles the orchestrator's collaborators.
type Config struct {
	Store     ledger.Store
	Buffer    *ledger.Buffer
	Source    SourceClient
	Target    TargetClient
	Converter Converter
	Policy    CompensationPolicy
	Logger    *slog.Logger

	// PageSize is the source pagination page size.
	PageSize int

	// SkipValidation bypasses converter validation, migrating every entity
	// the converter can transform. Skip reasons are still honored.
	SkipValidation bool
}

// Migrator drives the per-entity migration algorithm for one entity type at
// a time. A single run is sequential: rows within a page are processed in
// order because a row's validation may depend on an earlier row's ledger
// entry already existing.
type Migrator struct {
	store          ledger.Store
	buffer         *ledger.Buffer
	source         SourceClient
	target         TargetClient
	converter      Converter
	policy         CompensationPolicy
	logger         *slog.Logger
	pageSize       int
	skipValidation bool
	lookupCache    *gocache.Cache
}

// New creates a Migrator from the given configuration.
func New(cfg *Config) (*Migrator, error) {
	if cfg.Store == nil || cfg.Buffer == nil || cfg.Source == nil || cfg.Target == nil || cfg.Converter == nil {
		return nil, fmt.Errorf("store, buffer, source, target and converter are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := cfg.Policy
	if policy == nil {
		var err error
		policy, err = NewCompensationPolicy("cancel", logger)
		if err != nil {
			return nil, err
		}
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Migrator{
		store:          cfg.Store,
		buffer:         cfg.Buffer,
		source:         cfg.Source,
		target:         cfg.Target,
		converter:      cfg.Converter,
		policy:         policy,
		logger:         logger,
		pageSize:       pageSize,
		skipValidation: cfg.SkipValidation,
		lookupCache:    gocache.New(lookupCacheTTL, lookupCacheCleanup),
	}, nil
}

// Run executes one migration run for the entity type in the given mode and
// returns its summary. Already-flushed batches stay committed on abort;
// unflushed buffer contents are dropped and re-derived from the source on
// the next run.
func (m *Migrator) Run(ctx context.Context, mode Mode, entityType entities.EntityType) (*RunSummary, error) {
	if !entityType.Valid() {
		return nil, ledger.ErrInvalidEntityType
	}

	rc := NewRunContext(mode, entityType)
	m.logger.Info("migration run starting",
		"run_id", rc.RunID, "mode", mode, "entity_type", entityType)

	run := &entities.MigrationRun{
		RunID:      rc.RunID,
		Mode:       string(mode),
		EntityType: entityType,
		StartedAt:  rc.StartedAt,
		Outcome:    entities.RunOutcomeRunning,
	}
	if err := m.store.RecordRunStart(ctx, run); err != nil {
		return nil, err
	}

	var runErr error
	switch mode {
	case ModeMigrate:
		runErr = m.runMigrate(ctx, rc)
	case ModeRetrySkipped:
		runErr = m.runRetrySkipped(ctx, rc)
	default:
		runErr = fmt.Errorf("unknown migration mode %q", mode)
	}

	if runErr == nil {
		// Land whatever remains below the flush threshold.
		runErr = m.flushAndCompensate(ctx, rc)
	}

	outcome := entities.RunOutcomeCompleted
	errMsg := ""
	if runErr != nil {
		outcome = entities.RunOutcomeAborted
		errMsg = runErr.Error()
	}
	if err := m.store.RecordRunEnd(ctx, rc.RunID, outcome, rc.Migrated(), rc.Skipped(), errMsg); err != nil {
		m.logger.Error("failed to finalize run audit record", "run_id", rc.RunID, "error", err)
	}

	summary := &RunSummary{
		RunID:      rc.RunID,
		Mode:       mode,
		EntityType: entityType,
		Migrated:   rc.Migrated(),
		Skipped:    rc.Skipped(),
		Duration:   time.Since(rc.StartedAt),
	}

	m.logger.Info("migration run finished",
		"run_id", rc.RunID,
		"outcome", outcome,
		"migrated", summary.Migrated,
		"skipped", summary.Skipped,
		"duration", summary.Duration)

	if runErr != nil {
		return summary, errors.Join(ErrRunAborted, runErr)
	}
	return summary, nil
}

// runMigrate walks the full source result set. Consuming a row does not
// remove it from the source set, so the offset advances normally.
func (m *Migrator) runMigrate(ctx context.Context, rc *RunContext) error {
	count := func(ctx context.Context) (int64, error) {
		return m.source.Count(ctx, rc.EntityType)
	}
	fetch := func(ctx context.Context, offset, limit int) ([]SourceEntity, error) {
		return m.source.FetchPage(ctx, rc.EntityType, offset, limit)
	}
	consume := func(ctx context.Context, entity SourceEntity) error {
		return m.migrateEntity(ctx, rc, &entity)
	}

	return pager.Paginate(ctx, m.pageSize, pager.Advance, count, fetch, consume)
}

// runRetrySkipped walks the ledger's skipped entries. Every successful retry
// removes the entry from the skipped predicate, shrinking the result set, so
// each page is re-fetched from offset 0.
func (m *Migrator) runRetrySkipped(ctx context.Context, rc *RunContext) error {
	count := func(ctx context.Context) (int64, error) {
		return m.store.CountSkipped(ctx, rc.EntityType)
	}
	fetch := func(ctx context.Context, offset, limit int) ([]entities.LedgerEntry, error) {
		return m.store.ListSkipped(ctx, rc.EntityType, offset, limit)
	}
	consume := func(ctx context.Context, entry entities.LedgerEntry) error {
		return m.retryEntity(ctx, rc, &entry)
	}

	return pager.Paginate(ctx, m.pageSize, pager.RestartFromZero, count, fetch, consume)
}

// migrateEntity runs the per-entity algorithm for MIGRATE mode.
func (m *Migrator) migrateEntity(ctx context.Context, rc *RunContext, entity *SourceEntity) error {
	existing, err := m.store.Find(ctx, entity.LegacyID, entity.EntityType)
	switch {
	case err == nil:
		if existing.Migrated() {
			// Already migrated; this is the idempotence point.
			return nil
		}
		if existing.Skipped() {
			// Known-skipped entities are only re-attempted by RETRY_SKIPPED.
			return nil
		}
	case errors.Is(err, ledger.ErrEntryNotFound):
		// First observation
	default:
		return err
	}

	record, skipReason, err := m.convert(ctx, entity)
	if err != nil {
		return err
	}

	if skipReason != "" {
		if err := m.store.UpdateSkipReason(ctx, entity.LegacyID, entity.EntityType, skipReason); err != nil {
			return err
		}
		rc.CountSkipped()
		m.logger.Debug("entity skipped",
			"legacy_id", entity.LegacyID, "entity_type", entity.EntityType, "reason", skipReason)
		return nil
	}

	targetKey, err := m.target.Create(ctx, record)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryTargetClient).
			EntityContext(entity.LegacyID, string(entity.EntityType)).
			Build()
	}

	newEntry := ledger.NewEntry{
		LegacyID:   entity.LegacyID,
		EntityType: entity.EntityType,
		TargetKey:  &targetKey,
		CreateTime: entity.CreateTime,
	}
	// The counter advances by the flushed batch size, not per Add: a buffered
	// entry is not migrated until its batch has landed in the ledger.
	flushed, err := m.buffer.Add(ctx, rc.Register, newEntry)
	if err != nil {
		return m.compensateFlushFailure(ctx, rc, err)
	}
	rc.AddMigrated(flushed)
	return nil
}

// retryEntity re-attempts a previously skipped ledger entry.
func (m *Migrator) retryEntity(ctx context.Context, rc *RunContext, entry *entities.LedgerEntry) error {
	entity, err := m.source.FetchOne(ctx, entry.EntityType, entry.LegacyID)
	if err != nil {
		if errors.Is(err, ErrSourceEntityNotFound) {
			reason := "source entity no longer exists"
			if err := m.store.UpdateSkipReason(ctx, entry.LegacyID, entry.EntityType, reason); err != nil {
				return err
			}
			rc.CountSkipped()
			return nil
		}
		return err
	}

	record, skipReason, err := m.convert(ctx, entity)
	if err != nil {
		return err
	}

	if skipReason != "" {
		// Still blocked; refresh the recorded reason.
		if err := m.store.UpdateSkipReason(ctx, entry.LegacyID, entry.EntityType, skipReason); err != nil {
			return err
		}
		rc.CountSkipped()
		return nil
	}

	targetKey, err := m.target.Create(ctx, record)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryTargetClient).
			EntityContext(entry.LegacyID, string(entry.EntityType)).
			Build()
	}

	// The entry already exists, so the key is recorded directly rather than
	// through the insert buffer. This clears the skip reason.
	if err := m.store.UpdateTargetKey(ctx, entry.LegacyID, entry.EntityType, targetKey); err != nil {
		return err
	}

	rc.CountMigrated()
	return nil
}

// convert delegates to the external converter, honoring the validation
// bypass toggle for skip reasons that are validation findings.
func (m *Migrator) convert(ctx context.Context, entity *SourceEntity) (*TargetRecord, string, error) {
	record, skipReason, err := m.converter.Convert(ctx, entity, m)
	if err != nil {
		return nil, "", errors.New(err).
			Category(errors.CategoryConversion).
			EntityContext(entity.LegacyID, string(entity.EntityType)).
			Build()
	}
	if skipReason != "" && m.skipValidation && record != nil {
		// Validation bypass: the converter produced a usable record despite
		// the finding, and the operator chose to migrate anyway.
		m.logger.Warn("validation finding bypassed",
			"legacy_id", entity.LegacyID, "entity_type", entity.EntityType, "finding", skipReason)
		return record, "", nil
	}
	return record, skipReason, nil
}

// flushAndCompensate flushes the buffer and, when the flush fails, issues the
// configured compensating action for every orphaned target key. The failed
// batch's legacy IDs have no ledger rows and are re-derived on the next run.
func (m *Migrator) flushAndCompensate(ctx context.Context, rc *RunContext) error {
	flushed, err := m.buffer.Flush(ctx, rc.Register)
	if err != nil {
		return m.compensateFlushFailure(ctx, rc, err)
	}
	rc.AddMigrated(flushed)
	return nil
}

// compensateFlushFailure realizes the batch-compensation guarantee: every
// target object created in the failed batch is cancelled (per policy) so no
// orphan keeps running, then the run aborts with the original error.
func (m *Migrator) compensateFlushFailure(ctx context.Context, rc *RunContext, flushErr error) error {
	keys := rc.FailedKeys()
	m.logger.Error("ledger flush failed, compensating created target objects",
		"run_id", rc.RunID, "policy", m.policy.Name(), "orphaned_keys", len(keys))

	if compErr := m.policy.Compensate(ctx, m.target, rc.EntityType, keys); compErr != nil {
		return errors.Join(flushErr, compErr)
	}
	rc.ClearFailedKeys()
	return flushErr
}

// FindTargetKey implements KeyLookup for converters, caching resolved keys.
// Target keys are immutable once assigned, so a cache hit can never be stale.
func (m *Migrator) FindTargetKey(ctx context.Context, entityType entities.EntityType, legacyID string) (string, error) {
	cacheKey := string(entityType) + "\x00" + legacyID
	if cached, found := m.lookupCache.Get(cacheKey); found {
		return cached.(string), nil
	}

	key, err := m.store.FindTargetKey(ctx, legacyID, entityType)
	if err != nil {
		return "", err
	}

	m.lookupCache.Set(cacheKey, key, gocache.DefaultExpiration)
	return key, nil
}
