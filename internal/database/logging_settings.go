package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/sydlexius/artbrowser/internal/logging"
)

// Settings keys for runtime logging overrides.
const (
	keyLogLevel      = "logging.level"
	keyLogFormat     = "logging.format"
	keyLogFilePath   = "logging.file_path"
	keyLogMaxSizeMB  = "logging.file_max_size_mb"
	keyLogMaxFiles   = "logging.file_max_files"
	keyLogMaxAgeDays = "logging.file_max_age_days"
)

// LoggingOverrides applies logging settings saved at runtime on top of cfg.
// Invalid stored values are ignored.
func LoggingOverrides(ctx context.Context, db *sql.DB, cfg logging.Config) logging.Config {
	if v, ok, err := GetSetting(ctx, db, keyLogLevel); err == nil && ok && logging.ValidLevel(v) {
		cfg.Level = v
	}
	if v, ok, err := GetSetting(ctx, db, keyLogFormat); err == nil && ok && logging.ValidFormat(v) {
		cfg.Format = v
	}
	if v, ok, err := GetSetting(ctx, db, keyLogFilePath); err == nil && ok {
		cfg.FilePath = v
	}
	if v := GetIntSetting(ctx, db, keyLogMaxSizeMB, 0); v > 0 {
		cfg.FileMaxSizeMB = v
	}
	if v := GetIntSetting(ctx, db, keyLogMaxFiles, 0); v > 0 {
		cfg.FileMaxFiles = v
	}
	if v := GetIntSetting(ctx, db, keyLogMaxAgeDays, 0); v > 0 {
		cfg.FileMaxAgeDays = v
	}
	return cfg
}

// SaveLogging persists cfg as the runtime logging override.
func SaveLogging(ctx context.Context, db *sql.DB, cfg logging.Config) error {
	for _, kv := range [][2]string{
		{keyLogLevel, cfg.Level},
		{keyLogFormat, cfg.Format},
		{keyLogFilePath, cfg.FilePath},
		{keyLogMaxSizeMB, strconv.Itoa(cfg.FileMaxSizeMB)},
		{keyLogMaxFiles, strconv.Itoa(cfg.FileMaxFiles)},
		{keyLogMaxAgeDays, strconv.Itoa(cfg.FileMaxAgeDays)},
	} {
		if err := SetSetting(ctx, db, kv[0], kv[1]); err != nil {
			return fmt.Errorf("saving logging settings: %w", err)
		}
	}
	return nil
}
