package ledger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/camunda-community-hub/c7-data-migrator/internal/errors"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"gorm.io/gorm"
)

// storeImpl implements Store backed by a GORM database.
type storeImpl struct {
	db     *gorm.DB
	config StoreConfig
	logger *slog.Logger
}

// NewStore creates a ledger Store on top of an initialized manager database.
func NewStore(db *gorm.DB, config StoreConfig, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &storeImpl{
		db:     db,
		config: config,
		logger: logger,
	}
}

func (s *storeImpl) Exists(ctx context.Context, legacyID string, entityType entities.EntityType) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entities.LedgerEntry{}).
		Where("legacy_id = ? AND entity_type = ?", legacyID, entityType).
		Count(&count).Error
	if err != nil {
		return false, errors.New(err).
			Component("ledger").
			Category(errors.CategoryDatabase).
			EntityContext(legacyID, string(entityType)).
			Build()
	}
	return count > 0, nil
}

func (s *storeImpl) HasTargetKey(ctx context.Context, legacyID string, entityType entities.EntityType) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entities.LedgerEntry{}).
		Where("legacy_id = ? AND entity_type = ? AND target_key IS NOT NULL", legacyID, entityType).
		Count(&count).Error
	if err != nil {
		return false, errors.New(err).
			Component("ledger").
			Category(errors.CategoryDatabase).
			EntityContext(legacyID, string(entityType)).
			Build()
	}
	return count > 0, nil
}

func (s *storeImpl) Find(ctx context.Context, legacyID string, entityType entities.EntityType) (*entities.LedgerEntry, error) {
	var entry entities.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("legacy_id = ? AND entity_type = ?", legacyID, entityType).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, errors.New(err).
			Component("ledger").
			Category(errors.CategoryDatabase).
			EntityContext(legacyID, string(entityType)).
			Build()
	}
	return &entry, nil
}

func (s *storeImpl) FindTargetKey(ctx context.Context, legacyID string, entityType entities.EntityType) (string, error) {
	entry, err := s.Find(ctx, legacyID, entityType)
	if err != nil {
		return "", err
	}
	if entry.TargetKey == nil {
		return "", ErrEntryNotFound
	}
	return *entry.TargetKey, nil
}

// skippedScope applies the configured skipped-entry predicate.
func (s *storeImpl) skippedScope(tx *gorm.DB) *gorm.DB {
	if s.config.ListSkippedRequiresReason {
		return tx.Where("target_key IS NULL AND skip_reason IS NOT NULL")
	}
	return tx.Where("target_key IS NULL")
}

func (s *storeImpl) ListSkipped(ctx context.Context, entityType entities.EntityType, offset, pageSize int) ([]entities.LedgerEntry, error) {
	var skipped []entities.LedgerEntry
	query := s.db.WithContext(ctx).
		Where("entity_type = ?", entityType).
		Order("id ASC").
		Limit(pageSize).
		Offset(offset)

	if err := s.skippedScope(query).Find(&skipped).Error; err != nil {
		return nil, errors.New(err).
			Component("ledger").
			Category(errors.CategoryDatabase).
			Context("entity_type", string(entityType)).
			Build()
	}
	return skipped, nil
}

func (s *storeImpl) UpdateTargetKey(ctx context.Context, legacyID string, entityType entities.EntityType, targetKey string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry entities.LedgerEntry
		err := tx.Where("legacy_id = ? AND entity_type = ?", legacyID, entityType).First(&entry).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// First observation and migration in one step
			entry = entities.LedgerEntry{
				LegacyID:   legacyID,
				EntityType: entityType,
				TargetKey:  &targetKey,
			}
			return tx.Create(&entry).Error
		case err != nil:
			return err
		}

		if entry.TargetKey != nil {
			if *entry.TargetKey == targetKey {
				return nil
			}
			s.logger.Error("refusing to overwrite target key",
				"legacy_id", legacyID,
				"entity_type", entityType,
				"existing_key", *entry.TargetKey,
				"new_key", targetKey)
			return ErrTargetKeyConflict
		}

		// Recording a key clears any skip reason, preserving the invariant
		// that target_key and skip_reason are mutually exclusive.
		updates := map[string]any{
			"target_key":  targetKey,
			"skip_reason": nil,
		}
		return tx.Model(&entry).Updates(updates).Error
	})
}

func (s *storeImpl) UpdateSkipReason(ctx context.Context, legacyID string, entityType entities.EntityType, reason string) error {
	stored := s.maskSkipReason(reason)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry entities.LedgerEntry
		err := tx.Where("legacy_id = ? AND entity_type = ?", legacyID, entityType).First(&entry).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry = entities.LedgerEntry{
				LegacyID:   legacyID,
				EntityType: entityType,
				SkipReason: stored,
			}
			return tx.Create(&entry).Error
		case err != nil:
			return err
		}

		if entry.TargetKey != nil {
			// Migrated entries never regress to skipped; target_key and
			// skip_reason stay mutually exclusive.
			s.logger.Warn("ignoring skip reason for migrated entry",
				"legacy_id", legacyID,
				"entity_type", entityType,
				"reason", reason)
			return nil
		}

		return tx.Model(&entry).Update("skip_reason", stored).Error
	})
}

// maskSkipReason applies the SaveSkipReason flag: reasons are stored as NULL
// when persistence is disabled.
func (s *storeImpl) maskSkipReason(reason string) *string {
	if !s.config.SaveSkipReason {
		return nil
	}
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *storeImpl) CountSkipped(ctx context.Context, entityType entities.EntityType) (int64, error) {
	query := s.db.WithContext(ctx).Model(&entities.LedgerEntry{})
	if entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}

	var count int64
	if err := s.skippedScope(query).Count(&count).Error; err != nil {
		return 0, errors.New(err).
			Component("ledger").
			Category(errors.CategoryDatabase).
			Build()
	}
	return count, nil
}

func (s *storeImpl) CountMigrated(ctx context.Context, entityType entities.EntityType) (int64, error) {
	query := s.db.WithContext(ctx).Model(&entities.LedgerEntry{}).
		Where("target_key IS NOT NULL")
	if entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, errors.New(err).
			Component("ledger").
			Category(errors.CategoryDatabase).
			Build()
	}
	return count, nil
}

func (s *storeImpl) BulkInsert(ctx context.Context, newEntries []NewEntry) error {
	if len(newEntries) == 0 {
		return nil
	}

	rows := make([]entities.LedgerEntry, 0, len(newEntries))
	for i := range newEntries {
		ne := &newEntries[i]
		row := entities.LedgerEntry{
			LegacyID:   ne.LegacyID,
			EntityType: ne.EntityType,
			TargetKey:  ne.TargetKey,
			CreateTime: ne.CreateTime,
		}
		if ne.SkipReason != nil {
			row.SkipReason = s.maskSkipReason(*ne.SkipReason)
		}
		rows = append(rows, row)
	}

	// Single transaction so the batch is never partially visible.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.New(ErrDuplicateEntry).
				Component("ledger").
				Category(errors.CategoryBatch).
				Context("batch_size", len(rows)).
				Build()
		}
		return errors.New(err).
			Component("ledger").
			Category(errors.CategoryBatch).
			Context("batch_size", len(rows)).
			Build()
	}
	return nil
}

func (s *storeImpl) Reset(ctx context.Context, entityType entities.EntityType) (int64, error) {
	if !entityType.Valid() {
		return 0, ErrInvalidEntityType
	}

	result := s.db.WithContext(ctx).
		Where("entity_type = ?", entityType).
		Delete(&entities.LedgerEntry{})
	if result.Error != nil {
		return 0, errors.New(result.Error).
			Component("ledger").
			Category(errors.CategoryDatabase).
			Context("entity_type", string(entityType)).
			Build()
	}

	s.logger.Info("ledger reset", "entity_type", entityType, "rows_deleted", result.RowsAffected)
	return result.RowsAffected, nil
}

func (s *storeImpl) RecordRunStart(ctx context.Context, run *entities.MigrationRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return errors.New(err).
			Component("ledger").
			Category(errors.CategoryDatabase).
			Context("run_id", run.RunID).
			Build()
	}
	return nil
}

func (s *storeImpl) RecordRunEnd(ctx context.Context, runID string, outcome entities.RunOutcome, migrated, skipped int64, errMsg string) error {
	updates := map[string]any{
		"outcome":        outcome,
		"migrated_count": migrated,
		"skipped_count":  skipped,
		"error_message":  errMsg,
		"completed_at":   s.db.NowFunc(),
	}

	result := s.db.WithContext(ctx).Model(&entities.MigrationRun{}).
		Where("run_id = ?", runID).
		Updates(updates)
	if result.Error != nil {
		return errors.New(result.Error).
			Component("ledger").
			Category(errors.CategoryDatabase).
			Context("run_id", runID).
			Build()
	}
	return nil
}

func (s *storeImpl) RecentRuns(ctx context.Context, limit int) ([]entities.MigrationRun, error) {
	var runs []entities.MigrationRun
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, errors.New(err).
			Component("ledger").
			Category(errors.CategoryDatabase).
			Build()
	}
	return runs, nil
}

// isUniqueConstraintError detects unique constraint violations across the
// supported SQLite and MySQL drivers.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry")
}
