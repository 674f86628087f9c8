// Package ledger implements the persistent migration ledger: the key-mapping
// store, the batched insert buffer, and the SQLite/MySQL database managers.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/camunda-community-hub/c7-data-migrator/internal/conf"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Manager defines the interface for ledger database lifecycle operations.
type Manager interface {
	// Initialize creates the ledger schema.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location (file path for SQLite, host:port/db for MySQL).
	Path() string
	// Close closes the database connection.
	Close() error
	// Delete removes the ledger database (file for SQLite, tables for MySQL).
	Delete() error
	// Exists checks if the ledger database exists.
	Exists() bool
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// NewManager creates the configured ledger database manager.
func NewManager(settings *conf.Settings) (Manager, error) {
	switch {
	case settings.Ledger.SQLite.Enabled:
		return NewSQLiteManager(SQLiteConfig{
			Path:  settings.Ledger.SQLite.Path,
			Debug: settings.Debug,
		})
	case settings.Ledger.MySQL.Enabled:
		return NewMySQLManager(&MySQLConfig{
			Host:        settings.Ledger.MySQL.Host,
			Port:        settings.Ledger.MySQL.Port,
			Username:    settings.Ledger.MySQL.Username,
			Password:    settings.Ledger.MySQL.Password,
			Database:    settings.Ledger.MySQL.Database,
			TablePrefix: settings.Ledger.TablePrefix,
			Debug:       settings.Debug,
		})
	default:
		return nil, fmt.Errorf("no ledger database enabled")
	}
}

// SQLiteConfig holds SQLite-specific configuration for the ledger manager.
type SQLiteConfig struct {
	// Path is the database file location.
	Path string
	// Debug enables verbose query logging.
	Debug bool
}

// SQLiteManager handles the ledger database for SQLite.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
}

// NewSQLiteManager creates a new SQLite ledger database manager.
func NewSQLiteManager(cfg SQLiteConfig) (*SQLiteManager, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	// Build DSN with recommended SQLite pragmas
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", cfg.Path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	return &SQLiteManager{
		db:     db,
		dbPath: cfg.Path,
	}, nil
}

// Initialize creates the ledger schema.
func (m *SQLiteManager) Initialize() error {
	err := m.db.AutoMigrate(
		&entities.LedgerEntry{},
		&entities.MigrationRun{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return nil
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// Delete removes the ledger database file.
// This should only be called during an explicit full reset.
func (m *SQLiteManager) Delete() error {
	if err := m.Close(); err != nil {
		return fmt.Errorf("failed to close database before deletion: %w", err)
	}

	if err := os.Remove(m.dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete database file: %w", err)
	}

	// Also remove WAL and SHM files if they exist. Cleanup failures for
	// auxiliary files should not block database deletion.
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(m.dbPath + suffix)
	}

	return nil
}

// Exists checks if the ledger database file exists.
func (m *SQLiteManager) Exists() bool {
	_, err := os.Stat(m.dbPath)
	return err == nil
}

// IsMySQL returns false for SQLite manager.
func (m *SQLiteManager) IsMySQL() bool {
	return false
}

// TablePrefix returns the table prefix for ledger tables.
// For SQLite this is empty since the ledger has its own database file.
func (m *SQLiteManager) TablePrefix() string {
	return ""
}

// ExistsFromPath checks if a ledger database exists at the given path without
// opening a connection.
func ExistsFromPath(path string) bool {
	if path == ":memory:" {
		return false
	}
	_, err := os.Stat(filepath.Clean(path))
	return err == nil
}

// MySQLConfig holds MySQL-specific configuration for the ledger manager.
type MySQLConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Debug    bool
	// TablePrefix namespaces the ledger tables when they coexist with
	// another schema in the same database. Empty for a dedicated database.
	TablePrefix string
}

// MySQLManager handles the ledger database for MySQL.
// Unlike SQLite which uses a separate file, MySQL uses table prefixes
// to coexist with other tables in a shared database.
type MySQLManager struct {
	db          *gorm.DB
	config      MySQLConfig
	location    string // host:port/database for display
	tablePrefix string
}

// NewMySQLManager creates a new MySQL ledger database manager.
func NewMySQLManager(cfg *MySQLConfig) (*MySQLManager, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: cfg.TablePrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL ledger database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &MySQLManager{
		db:          db,
		config:      *cfg,
		location:    fmt.Sprintf("%s:%s/%s", cfg.Host, cfg.Port, cfg.Database),
		tablePrefix: cfg.TablePrefix,
	}, nil
}

// Initialize creates the ledger tables, applying the configured prefix.
func (m *MySQLManager) Initialize() error {
	err := m.db.AutoMigrate(
		&entities.LedgerEntry{},
		&entities.MigrationRun{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return nil
}

// DB returns the underlying GORM database.
func (m *MySQLManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database location (host:port/database).
func (m *MySQLManager) Path() string {
	return m.location
}

// Close closes the database connection.
func (m *MySQLManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// Delete removes the ledger tables from the MySQL database.
// This should only be called during an explicit full reset.
func (m *MySQLManager) Delete() error {
	tables := []string{
		m.tablePrefix + "migration_runs",
		m.tablePrefix + "ledger_entries",
	}

	for _, table := range tables {
		// Raw SQL to bypass GORM's safety checks
		if err := m.db.Exec("DROP TABLE IF EXISTS " + table).Error; err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	return nil
}

// Exists checks if the ledger tables exist in the MySQL database.
func (m *MySQLManager) Exists() bool {
	return m.db.Migrator().HasTable(m.tablePrefix + "ledger_entries")
}

// IsMySQL returns true for MySQL manager.
func (m *MySQLManager) IsMySQL() bool {
	return true
}

// TablePrefix returns the configured table prefix.
func (m *MySQLManager) TablePrefix() string {
	return m.tablePrefix
}
