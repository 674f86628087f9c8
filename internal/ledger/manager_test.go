package ledger

import (
	"path/filepath"
	"testing"

	"github.com/camunda-community-hub/c7-data-migrator/internal/conf"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteManagerLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	manager, err := NewSQLiteManager(SQLiteConfig{Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, manager.Initialize())

	assert.True(t, manager.Exists())
	assert.False(t, manager.IsMySQL())
	assert.Equal(t, dbPath, manager.Path())

	// The schema is usable after Initialize
	store := NewStore(manager.DB(), StoreConfig{SaveSkipReason: true}, nil)
	require.NoError(t, store.UpdateTargetKey(t.Context(), "pi-1", entities.EntityProcessInstance, "k1"))

	require.NoError(t, manager.Delete())
	assert.False(t, ExistsFromPath(dbPath))
}

func TestNewManagerSelectsBackend(t *testing.T) {
	settings := &conf.Settings{}
	settings.Ledger.SQLite.Enabled = true
	settings.Ledger.SQLite.Path = filepath.Join(t.TempDir(), "ledger.db")

	manager, err := NewManager(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	assert.False(t, manager.IsMySQL())
}

func TestNewManagerRequiresBackend(t *testing.T) {
	_, err := NewManager(&conf.Settings{})
	require.Error(t, err)
}

func TestExistsFromPath(t *testing.T) {
	assert.False(t, ExistsFromPath(":memory:"))
	assert.False(t, ExistsFromPath(filepath.Join(t.TempDir(), "nope.db")))
}
