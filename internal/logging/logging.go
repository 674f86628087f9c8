// Package logging configures the structured and human-readable loggers for the migrator.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/camunda-community-hub/c7-data-migrator/internal/conf"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	structuredLogger    *slog.Logger
	humanReadableLogger *slog.Logger

	structuredOutput    io.Writer = os.Stdout
	humanReadableOutput io.Writer = os.Stderr
	structuredLevel               = slog.LevelDebug
)

// rebuild reconstructs both loggers from the current output and level state
// and installs the structured logger as the process default.
func rebuild() {
	structuredLogger = slog.New(slog.NewJSONHandler(structuredOutput, &slog.HandlerOptions{Level: structuredLevel}))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadableOutput, &slog.HandlerOptions{Level: slog.LevelInfo}))

	slog.SetDefault(structuredLogger)
}

// Init initializes the logging system with structured and human-readable loggers.
// JSON output goes to stdout for structured logs, text output to stderr for operators.
func Init() {
	structuredOutput = os.Stdout
	humanReadableOutput = os.Stderr
	structuredLevel = slog.LevelDebug
	rebuild()
}

// SetLevel sets the minimum logging level for the structured logger.
func SetLevel(level slog.Level) {
	structuredLevel = level
	rebuild()
}

// SetOutput redirects logger output, e.g. to a buffer in tests.
func SetOutput(structured, humanReadable io.Writer) {
	structuredOutput = structured
	humanReadableOutput = humanReadable
	rebuild()
}

// InitFileOutput routes structured log output to a rotated log file in
// addition to stdout, using lumberjack rotation driven by the log config.
// It returns a function that closes the underlying log writer.
func InitFileOutput(logConf conf.LogConfig) (func() error, error) {
	// lumberjack does not create directories
	logDir := filepath.Dir(logConf.Path)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename: logConf.Path,
	}

	// Default values, overridden by config below
	maxSizeMB := 100
	maxBackups := 3
	maxAge := 28 // days

	configMaxSizeMB := int(logConf.MaxSize / (1024 * 1024))
	if configMaxSizeMB > 0 {
		maxSizeMB = configMaxSizeMB
	}

	switch logConf.Rotation {
	case conf.RotationDaily:
		maxAge = 1
		maxBackups = 30
	case conf.RotationWeekly:
		maxAge = 7
		maxBackups = 4
	case conf.RotationSize:
		// maxSizeMB already derived from config
	default:
		slog.Warn("Unknown log rotation type in config, using size-based defaults", "configuredType", logConf.Rotation)
	}

	logWriter.MaxSize = maxSizeMB
	logWriter.MaxBackups = maxBackups
	logWriter.MaxAge = maxAge

	structuredOutput = io.MultiWriter(os.Stdout, logWriter)
	rebuild()

	return logWriter.Close, nil
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable (Text) logger.
// Returns nil if Init() has not been called.
func HumanReadable() *slog.Logger {
	return humanReadableLogger
}

// ForService creates a new logger instance with the 'service' attribute added.
// It uses the global structured logger as the base.
// Returns nil if Init() has not been called.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		return nil
	}
	return structuredLogger.With("service", serviceName)
}
