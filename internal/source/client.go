package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/camunda-community-hub/c7-data-migrator/internal/errors"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"github.com/camunda-community-hub/c7-data-migrator/internal/migrator"
	"gorm.io/gorm"
)

// Client reads legacy engine entities page by page. It satisfies the
// orchestrator's SourceClient interface.
type Client struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewClient creates a source client over an open legacy database.
func NewClient(db *gorm.DB, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{db: db, logger: logger}
}

// Count returns the total number of source entities of the type.
func (c *Client) Count(ctx context.Context, entityType entities.EntityType) (int64, error) {
	spec, err := specFor(entityType)
	if err != nil {
		return 0, err
	}

	var count int64
	q := c.db.WithContext(ctx).Table(spec.table)
	if spec.filter != "" {
		q = q.Where(spec.filter)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, errors.New(err).
			Component("source").
			Category(errors.CategorySourceClient).
			Context("table", spec.table).
			Build()
	}
	return count, nil
}

// FetchPage returns source entities ordered by legacy ID.
func (c *Client) FetchPage(ctx context.Context, entityType entities.EntityType, offset, limit int) ([]migrator.SourceEntity, error) {
	spec, err := specFor(entityType)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	q := c.db.WithContext(ctx).Table(spec.table).Order(spec.idColumn)
	if spec.filter != "" {
		q = q.Where(spec.filter)
	}
	if err := q.Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategorySourceClient).
			Context("table", spec.table).
			Build()
	}

	result := make([]migrator.SourceEntity, 0, len(rows))
	for _, row := range rows {
		entity, err := c.toEntity(entityType, spec, row)
		if err != nil {
			return nil, err
		}
		result = append(result, *entity)
	}
	return result, nil
}

// FetchOne returns a single source entity by legacy ID, or
// migrator.ErrSourceEntityNotFound.
func (c *Client) FetchOne(ctx context.Context, entityType entities.EntityType, legacyID string) (*migrator.SourceEntity, error) {
	spec, err := specFor(entityType)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	q := c.db.WithContext(ctx).Table(spec.table).Where(spec.idColumn+" = ?", legacyID)
	if spec.filter != "" {
		q = q.Where(spec.filter)
	}
	if err := q.Limit(1).Find(&rows).Error; err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategorySourceClient).
			Context("table", spec.table).
			EntityContext(legacyID, string(entityType)).
			Build()
	}
	if len(rows) == 0 {
		return nil, migrator.ErrSourceEntityNotFound
	}
	return c.toEntity(entityType, spec, rows[0])
}

// toEntity lifts a raw row into a SourceEntity, keeping all columns
// available to the converter.
func (c *Client) toEntity(entityType entities.EntityType, spec tableSpec, row map[string]any) (*migrator.SourceEntity, error) {
	legacyID, ok := stringValue(row[spec.idColumn])
	if !ok || legacyID == "" {
		return nil, fmt.Errorf("source row in %s has no usable %s column", spec.table, spec.idColumn)
	}

	entity := &migrator.SourceEntity{
		LegacyID:   legacyID,
		EntityType: entityType,
		Fields:     row,
	}

	if spec.timeColumn != "" {
		if t, ok := timeValue(row[spec.timeColumn]); ok {
			entity.CreateTime = &t
		}
	}
	return entity, nil
}

// stringValue coerces a raw driver value to a string. MySQL returns text
// columns as []byte.
func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

// timeValue coerces a raw driver value to a time.Time. SQLite stores
// timestamps as text.
func timeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return parseTimeString(t)
	case []byte:
		return parseTimeString(string(t))
	default:
		return time.Time{}, false
	}
}

func parseTimeString(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
