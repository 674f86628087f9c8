package txbridge

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupDatabases creates a primary GORM database and a secondary plain
// database, each with a single-column table.
func setupDatabases(t *testing.T) (*gorm.DB, *sql.DB) {
	t.Helper()
	dir := t.TempDir()

	primary, err := gorm.Open(sqlite.Open(filepath.Join(dir, "primary.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, primary.Exec("CREATE TABLE primary_rows (val TEXT)").Error)

	secondaryGorm, err := gorm.Open(sqlite.Open(filepath.Join(dir, "secondary.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, secondaryGorm.Exec("CREATE TABLE secondary_rows (val TEXT)").Error)

	secondary, err := secondaryGorm.DB()
	require.NoError(t, err)

	t.Cleanup(func() {
		if db, err := primary.DB(); err == nil {
			db.Close()
		}
		secondary.Close()
	})

	return primary, secondary
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func countPrimaryRows(t *testing.T, db *gorm.DB) int {
	t.Helper()
	var n int64
	require.NoError(t, db.Table("primary_rows").Count(&n).Error)
	return int(n)
}

func TestRunInTransactionCommitsBoth(t *testing.T) {
	primary, secondary := setupDatabases(t)
	coordinator := NewCoordinator(secondary, nil)
	ctx := t.Context()

	err := RunInTransaction(ctx, primary, func(tx *gorm.DB, scope *TxScope) error {
		if err := tx.Exec("INSERT INTO primary_rows (val) VALUES (?)", "p1").Error; err != nil {
			return err
		}
		conn, err := coordinator.SecondaryConn(ctx, scope)
		if err != nil {
			return err
		}
		_, err = conn.ExecContext(ctx, "INSERT INTO secondary_rows (val) VALUES (?)", "s1")
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 1, countPrimaryRows(t, primary))
	assert.Equal(t, 1, countRows(t, secondary, "secondary_rows"))
}

func TestRunInTransactionRollsBackBoth(t *testing.T) {
	primary, secondary := setupDatabases(t)
	coordinator := NewCoordinator(secondary, nil)
	ctx := t.Context()

	err := RunInTransaction(ctx, primary, func(tx *gorm.DB, scope *TxScope) error {
		if err := tx.Exec("INSERT INTO primary_rows (val) VALUES (?)", "p1").Error; err != nil {
			return err
		}
		conn, err := coordinator.SecondaryConn(ctx, scope)
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, "INSERT INTO secondary_rows (val) VALUES (?)", "s1"); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	assert.Equal(t, 0, countPrimaryRows(t, primary))
	assert.Equal(t, 0, countRows(t, secondary, "secondary_rows"))
}

func TestRunInTransactionRollsBackOnPanic(t *testing.T) {
	primary, secondary := setupDatabases(t)
	coordinator := NewCoordinator(secondary, nil)
	ctx := t.Context()

	var captured *TxScope
	require.PanicsWithValue(t, "boom", func() {
		_ = RunInTransaction(ctx, primary, func(tx *gorm.DB, scope *TxScope) error {
			captured = scope
			if err := tx.Exec("INSERT INTO primary_rows (val) VALUES (?)", "p1").Error; err != nil {
				return err
			}
			conn, err := coordinator.SecondaryConn(ctx, scope)
			if err != nil {
				return err
			}
			if _, err := conn.ExecContext(ctx, "INSERT INTO secondary_rows (val) VALUES (?)", "s1"); err != nil {
				return err
			}
			panic("boom")
		})
	})

	assert.Equal(t, 0, countPrimaryRows(t, primary))
	assert.Equal(t, 0, countRows(t, secondary, "secondary_rows"))
	assert.False(t, captured.Active())
	assert.False(t, coordinator.IsActive(captured))
}

func TestSecondaryCommitFailurePreventsPrimaryCommit(t *testing.T) {
	primary, secondary := setupDatabases(t)
	coordinator := NewCoordinator(secondary, nil)
	ctx := t.Context()

	err := RunInTransaction(ctx, primary, func(tx *gorm.DB, scope *TxScope) error {
		if err := tx.Exec("INSERT INTO primary_rows (val) VALUES (?)", "p1").Error; err != nil {
			return err
		}
		conn, err := coordinator.SecondaryConn(ctx, scope)
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, "INSERT INTO secondary_rows (val) VALUES (?)", "s1"); err != nil {
			return err
		}
		// Finishing the secondary transaction out from under the
		// coordinator makes its before-commit hook fail.
		secondaryTx, ok := conn.(*sql.Tx)
		require.True(t, ok)
		return secondaryTx.Rollback()
	})
	require.Error(t, err)

	assert.Equal(t, 0, countPrimaryRows(t, primary))
	assert.Equal(t, 0, countRows(t, secondary, "secondary_rows"))
}

func TestSecondaryConnReusedWithinScope(t *testing.T) {
	primary, secondary := setupDatabases(t)
	coordinator := NewCoordinator(secondary, nil)
	ctx := t.Context()

	err := RunInTransaction(ctx, primary, func(tx *gorm.DB, scope *TxScope) error {
		first, err := coordinator.SecondaryConn(ctx, scope)
		if err != nil {
			return err
		}
		second, err := coordinator.SecondaryConn(ctx, scope)
		if err != nil {
			return err
		}
		assert.Same(t, first, second)
		assert.True(t, coordinator.IsActive(scope))
		return nil
	})
	require.NoError(t, err)
}

func TestSecondaryConnWithoutScopeUsesAutocommit(t *testing.T) {
	_, secondary := setupDatabases(t)
	coordinator := NewCoordinator(secondary, nil)
	ctx := t.Context()

	conn, err := coordinator.SecondaryConn(ctx, nil)
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx, "INSERT INTO secondary_rows (val) VALUES (?)", "s1")
	require.NoError(t, err)

	// Autocommit: the write is immediately visible
	assert.Equal(t, 1, countRows(t, secondary, "secondary_rows"))
}

func TestBindingReleasedAfterCompletion(t *testing.T) {
	primary, secondary := setupDatabases(t)
	coordinator := NewCoordinator(secondary, nil)
	ctx := t.Context()

	var scope *TxScope
	err := RunInTransaction(ctx, primary, func(tx *gorm.DB, s *TxScope) error {
		scope = s
		_, err := coordinator.SecondaryConn(ctx, s)
		return err
	})
	require.NoError(t, err)

	assert.False(t, coordinator.IsActive(scope))
	assert.False(t, scope.Active())
}
