// Package source reads the legacy engine database. All entity queries are
// read-only; the only write is the run marker, committed through the
// transaction coordinator alongside the ledger's audit row.
package source

import (
	"fmt"

	"github.com/camunda-community-hub/c7-data-migrator/internal/conf"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured legacy engine database.
func Open(settings *conf.Settings) (*gorm.DB, error) {
	logLevel := logger.Silent
	if settings.Debug {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	switch {
	case settings.Source.SQLite.Enabled:
		dsn := fmt.Sprintf("%s?_busy_timeout=5000", settings.Source.SQLite.Path)
		db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open source database: %w", err)
		}
		return db, nil

	case settings.Source.MySQL.Enabled:
		s := settings.Source.MySQL
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			s.Username, s.Password, s.Host, s.Port, s.Database)
		db, err := gorm.Open(mysql.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open source database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		// The source is read-mostly; keep the pool small.
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(10)
		return db, nil

	default:
		return nil, fmt.Errorf("no source database enabled")
	}
}
