// config.go: settings for the data migrator. Defines the settings struct and functions to load the settings.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled     bool         // true to enable this log
	Path        string       // Path to the log file
	Rotation    RotationType // Type of log rotation
	MaxSize     int64        // Max size in bytes for RotationSize
	RotationDay time.Weekday // Day of the week for RotationWeekly
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// MainSettings contains top level settings for the migrator.
type MainSettings struct {
	Name string    // name of this migrator instance, used in log identification
	Log  LogConfig // main log configuration
}

// SQLiteSettings contains settings for a SQLite database.
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite
	Path    string // path to the database file
}

// MySQLSettings contains settings for a MySQL database.
type MySQLSettings struct {
	Enabled  bool   // true to enable MySQL
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// LedgerSettings controls the migration ledger database and its behavior.
type LedgerSettings struct {
	SQLite SQLiteSettings // SQLite ledger settings
	MySQL  MySQLSettings  // MySQL ledger settings

	TablePrefix string // prefix for ledger tables when co-located with other schemas

	// SaveSkipReason controls whether skip reasons are persisted. When false
	// a NULL is stored in place of the supplied reason.
	SaveSkipReason bool

	// ListSkippedRequiresReason controls the skipped-entry predicate: when
	// true only rows with a recorded skip reason qualify, when false any row
	// without a target key qualifies.
	ListSkippedRequiresReason bool
}

// SourceSettings describes the legacy engine database the migrator reads from.
type SourceSettings struct {
	SQLite SQLiteSettings // SQLite source, used for local runs and tests
	MySQL  MySQLSettings  // MySQL source
}

// TargetSettings describes the target engine API the migrator writes to.
type TargetSettings struct {
	BaseURL   string        // base URL of the target engine REST API
	AuthToken string        // bearer token, empty to disable auth header
	Timeout   time.Duration // per-request timeout
}

// MigrationSettings tunes the migration run itself.
type MigrationSettings struct {
	BatchSize          int      // ledger insert buffer flush threshold
	PageSize           int      // source pagination page size
	EntityTypes        []string // entity types to migrate, empty means all
	SkipValidation     bool     // bypass converter validation checks
	CompensationPolicy string   // "cancel", "delete" or "leave"
}

// Settings contains all configuration settings, loaded from config.yaml
type Settings struct {
	Debug bool // true to enable debug logging

	Main      MainSettings
	Ledger    LedgerSettings
	Source    SourceSettings
	Target    TargetSettings
	Migration MigrationSettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into the global settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the config search paths, current directory first.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error getting user home directory: %w", err)
	}

	return []string{
		".",
		filepath.Join(homeDir, ".config", "c7-data-migrator"),
	}, nil
}

// Setting returns the current settings instance.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetTestSettings replaces the settings instance, for use in tests only.
func SetTestSettings(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = settings
}
