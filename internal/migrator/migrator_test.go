package migrator

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupLedger creates an in-memory SQLite ledger store for testing.
func setupLedger(t *testing.T) ledger.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.LedgerEntry{}, &entities.MigrationRun{}))

	return ledger.NewStore(db, ledger.StoreConfig{
		SaveSkipReason:            true,
		ListSkippedRequiresReason: true,
	}, nil)
}

// fakeSource serves entities from memory.
type fakeSource struct {
	mu       sync.Mutex
	entities map[entities.EntityType][]SourceEntity
}

func newFakeSource() *fakeSource {
	return &fakeSource{entities: make(map[entities.EntityType][]SourceEntity)}
}

func (s *fakeSource) add(entityType entities.EntityType, legacyIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range legacyIDs {
		s.entities[entityType] = append(s.entities[entityType], SourceEntity{
			LegacyID:   id,
			EntityType: entityType,
			Fields:     map[string]any{"ID_": id},
		})
	}
}

func (s *fakeSource) remove(entityType entities.EntityType, legacyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entities[entityType][:0]
	for _, e := range s.entities[entityType] {
		if e.LegacyID != legacyID {
			kept = append(kept, e)
		}
	}
	s.entities[entityType] = kept
}

func (s *fakeSource) Count(ctx context.Context, entityType entities.EntityType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entities[entityType])), nil
}

func (s *fakeSource) FetchPage(ctx context.Context, entityType entities.EntityType, offset, limit int) ([]SourceEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.entities[entityType]
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (s *fakeSource) FetchOne(ctx context.Context, entityType entities.EntityType, legacyID string) (*SourceEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entities[entityType] {
		if e.LegacyID == legacyID {
			entity := e
			return &entity, nil
		}
	}
	return nil, ErrSourceEntityNotFound
}

// fakeTarget assigns sequential keys and records compensation calls.
type fakeTarget struct {
	mu        sync.Mutex
	created   int
	cancelled []string
	deleted   []string
}

func (f *fakeTarget) Create(ctx context.Context, record *TargetRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return fmt.Sprintf("tk-%d", f.created), nil
}

func (f *fakeTarget) Cancel(ctx context.Context, entityType entities.EntityType, targetKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, targetKey)
	return nil
}

func (f *fakeTarget) Delete(ctx context.Context, entityType entities.EntityType, targetKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, targetKey)
	return nil
}

// fakeConverter skips entities listed in blocked, passes the rest through.
type fakeConverter struct {
	mu      sync.Mutex
	blocked map[string]string
}

func newFakeConverter() *fakeConverter {
	return &fakeConverter{blocked: make(map[string]string)}
}

func (c *fakeConverter) block(legacyID, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocked[legacyID] = reason
}

func (c *fakeConverter) unblock(legacyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.blocked, legacyID)
}

func (c *fakeConverter) Convert(ctx context.Context, entity *SourceEntity, lookup KeyLookup) (*TargetRecord, string, error) {
	c.mu.Lock()
	reason := c.blocked[entity.LegacyID]
	c.mu.Unlock()
	if reason != "" {
		return nil, reason, nil
	}
	return &TargetRecord{
		EntityType: entity.EntityType,
		Payload:    map[string]any{"legacyId": entity.LegacyID},
	}, "", nil
}

// failingStore fails every bulk insert to exercise the compensation path.
type failingStore struct {
	ledger.Store
}

func (s *failingStore) BulkInsert(ctx context.Context, newEntries []ledger.NewEntry) error {
	return fmt.Errorf("ledger unavailable")
}

type testFixture struct {
	store     ledger.Store
	source    *fakeSource
	target    *fakeTarget
	converter *fakeConverter
	migrator  *Migrator
}

func setupMigrator(t *testing.T, store ledger.Store) *testFixture {
	t.Helper()

	src := newFakeSource()
	tgt := &fakeTarget{}
	conv := newFakeConverter()

	m, err := New(&Config{
		Store:     store,
		Buffer:    ledger.NewBuffer(store, 10, nil),
		Source:    src,
		Target:    tgt,
		Converter: conv,
		PageSize:  3,
	})
	require.NoError(t, err)

	return &testFixture{store: store, source: src, target: tgt, converter: conv, migrator: m}
}

func TestMigrateRun(t *testing.T) {
	f := setupMigrator(t, setupLedger(t))
	ctx := t.Context()

	f.source.add(entities.EntityProcessInstance, "pi-1", "pi-2", "pi-3", "pi-4")

	summary, err := f.migrator.Run(ctx, ModeMigrate, entities.EntityProcessInstance)
	require.NoError(t, err)

	assert.Equal(t, int64(4), summary.Migrated)
	assert.Zero(t, summary.Skipped)

	for _, id := range []string{"pi-1", "pi-2", "pi-3", "pi-4"} {
		key, err := f.store.FindTargetKey(ctx, id, entities.EntityProcessInstance)
		require.NoError(t, err)
		assert.NotEmpty(t, key)
	}

	runs, err := f.store.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, entities.RunOutcomeCompleted, runs[0].Outcome)
	assert.Equal(t, int64(4), runs[0].MigratedCount)
}

func TestMigrateIsIdempotent(t *testing.T) {
	f := setupMigrator(t, setupLedger(t))
	ctx := t.Context()

	f.source.add(entities.EntityProcessInstance, "pi-1", "pi-2")

	first, err := f.migrator.Run(ctx, ModeMigrate, entities.EntityProcessInstance)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Migrated)

	second, err := f.migrator.Run(ctx, ModeMigrate, entities.EntityProcessInstance)
	require.NoError(t, err)
	assert.Zero(t, second.Migrated)

	// No duplicate target objects were created
	assert.Equal(t, 2, f.target.created)
}

func TestMigrateRecordsSkip(t *testing.T) {
	f := setupMigrator(t, setupLedger(t))
	ctx := t.Context()

	f.source.add(entities.EntityVariable, "v-1", "v-2")
	f.converter.block("v-2", "dependency not migrated")

	summary, err := f.migrator.Run(ctx, ModeMigrate, entities.EntityVariable)
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Migrated)
	assert.Equal(t, int64(1), summary.Skipped)

	entry, err := f.store.Find(ctx, "v-2", entities.EntityVariable)
	require.NoError(t, err)
	assert.True(t, entry.Skipped())
	require.NotNil(t, entry.SkipReason)
	assert.Equal(t, "dependency not migrated", *entry.SkipReason)

	// Skipped entities never reach the target
	assert.Equal(t, 1, f.target.created)
}

func TestMigrateDoesNotRetrySkipped(t *testing.T) {
	f := setupMigrator(t, setupLedger(t))
	ctx := t.Context()

	f.source.add(entities.EntityVariable, "v-1")
	f.converter.block("v-1", "blocked")

	_, err := f.migrator.Run(ctx, ModeMigrate, entities.EntityVariable)
	require.NoError(t, err)

	f.converter.unblock("v-1")

	// A plain migrate run leaves known-skipped entities alone
	summary, err := f.migrator.Run(ctx, ModeMigrate, entities.EntityVariable)
	require.NoError(t, err)
	assert.Zero(t, summary.Migrated)

	count, err := f.store.CountSkipped(ctx, entities.EntityVariable)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRetrySkippedRoundTrip(t *testing.T) {
	f := setupMigrator(t, setupLedger(t))
	ctx := t.Context()

	f.source.add(entities.EntityVariable, "v-1", "v-2")
	f.converter.block("v-1", "dependency not migrated")
	f.converter.block("v-2", "dependency not migrated")

	_, err := f.migrator.Run(ctx, ModeMigrate, entities.EntityVariable)
	require.NoError(t, err)

	f.converter.unblock("v-1")
	f.converter.unblock("v-2")

	summary, err := f.migrator.Run(ctx, ModeRetrySkipped, entities.EntityVariable)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Migrated)

	count, err := f.store.CountSkipped(ctx, entities.EntityVariable)
	require.NoError(t, err)
	assert.Zero(t, count)

	// The retry replaced the skip reason with a key
	entry, err := f.store.Find(ctx, "v-1", entities.EntityVariable)
	require.NoError(t, err)
	assert.True(t, entry.Migrated())
	assert.Nil(t, entry.SkipReason)
}

func TestRetrySkippedStillBlocked(t *testing.T) {
	f := setupMigrator(t, setupLedger(t))
	ctx := t.Context()

	f.source.add(entities.EntityVariable, "v-1")
	f.converter.block("v-1", "first reason")

	_, err := f.migrator.Run(ctx, ModeMigrate, entities.EntityVariable)
	require.NoError(t, err)

	f.converter.block("v-1", "second reason")

	summary, err := f.migrator.Run(ctx, ModeRetrySkipped, entities.EntityVariable)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Skipped)

	entry, err := f.store.Find(ctx, "v-1", entities.EntityVariable)
	require.NoError(t, err)
	require.NotNil(t, entry.SkipReason)
	assert.Equal(t, "second reason", *entry.SkipReason)
}

func TestRetrySkippedSourceEntityGone(t *testing.T) {
	f := setupMigrator(t, setupLedger(t))
	ctx := t.Context()

	f.source.add(entities.EntityVariable, "v-1")
	f.converter.block("v-1", "blocked")

	_, err := f.migrator.Run(ctx, ModeMigrate, entities.EntityVariable)
	require.NoError(t, err)

	f.source.remove(entities.EntityVariable, "v-1")
	f.converter.unblock("v-1")

	summary, err := f.migrator.Run(ctx, ModeRetrySkipped, entities.EntityVariable)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Skipped)
	assert.Zero(t, summary.Migrated)

	entry, err := f.store.Find(ctx, "v-1", entities.EntityVariable)
	require.NoError(t, err)
	assert.True(t, entry.Skipped())
}

func TestTypeScopedRuns(t *testing.T) {
	f := setupMigrator(t, setupLedger(t))
	ctx := t.Context()

	f.source.add(entities.EntityProcessInstance, "pi-1")
	f.source.add(entities.EntityVariable, "v-1")

	summary, err := f.migrator.Run(ctx, ModeMigrate, entities.EntityProcessInstance)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Migrated)

	// The variable was not touched
	exists, err := f.store.Exists(ctx, "v-1", entities.EntityVariable)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFlushFailureCompensates(t *testing.T) {
	f := setupMigrator(t, &failingStore{Store: setupLedger(t)})
	ctx := t.Context()

	f.source.add(entities.EntityProcessInstance, "pi-1", "pi-2")

	summary, err := f.migrator.Run(ctx, ModeMigrate, entities.EntityProcessInstance)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunAborted)

	// Both created process instances were cancelled
	assert.ElementsMatch(t, []string{"tk-1", "tk-2"}, f.target.cancelled)

	runs, err := f.store.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, entities.RunOutcomeAborted, runs[0].Outcome)
	assert.NotEmpty(t, runs[0].ErrorMessage)

	// Compensated entities never count as migrated: nothing landed in the
	// ledger, so the summary and the audit row both report zero.
	require.NotNil(t, summary)
	assert.Zero(t, summary.Migrated)
	assert.Zero(t, runs[0].MigratedCount)
}

func TestInvalidEntityType(t *testing.T) {
	f := setupMigrator(t, setupLedger(t))

	_, err := f.migrator.Run(t.Context(), ModeMigrate, entities.EntityType("bogus"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInvalidEntityType)
}

func TestFindTargetKeyCaching(t *testing.T) {
	store := setupLedger(t)
	f := setupMigrator(t, store)
	ctx := t.Context()

	require.NoError(t, store.UpdateTargetKey(ctx, "pd-1", entities.EntityProcessDefinition, "def-key"))

	key, err := f.migrator.FindTargetKey(ctx, entities.EntityProcessDefinition, "pd-1")
	require.NoError(t, err)
	assert.Equal(t, "def-key", key)

	// Cached: the key keeps resolving even after the ledger row is gone
	_, err = store.Reset(ctx, entities.EntityProcessDefinition)
	require.NoError(t, err)

	key, err = f.migrator.FindTargetKey(ctx, entities.EntityProcessDefinition, "pd-1")
	require.NoError(t, err)
	assert.Equal(t, "def-key", key)

	_, err = f.migrator.FindTargetKey(ctx, entities.EntityProcessDefinition, "pd-2")
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("migrate")
	require.NoError(t, err)
	assert.Equal(t, ModeMigrate, m)

	m, err = ParseMode("retry-skipped")
	require.NoError(t, err)
	assert.Equal(t, ModeRetrySkipped, m)

	_, err = ParseMode("nonsense")
	require.Error(t, err)
}
