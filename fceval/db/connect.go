// Package db opens the embedded libsql database that holds evaluation results.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"
)

// LibSQLEmbeddedConfig holds configuration for embedded libsql connections
type LibSQLEmbeddedConfig struct {
	DatabasePath string // Path to .db file, or :memory:
	Logger       zerolog.Logger
}

// ConnectToDB opens (creating if needed) the database at path.
func ConnectToDB(path string, logger zerolog.Logger) (*sql.DB, error) {
	cfg := &LibSQLEmbeddedConfig{DatabasePath: strings.TrimPrefix(path, "file:"), Logger: logger}
	return ConnectToDBWithConfig(cfg)
}

func ConnectToDBWithConfig(config *LibSQLEmbeddedConfig) (*sql.DB, error) {
	logger := config.Logger
	var dsn string

	if isMemory(config.DatabasePath) {
		dsn = "file::memory:?cache=shared"
	} else {
		// Ensure database directory exists for embedded mode
		dir := filepath.Dir(config.DatabasePath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create database directory %s: %w", dir, err)
		}

		if _, err := os.Stat(config.DatabasePath); os.IsNotExist(err) {
			logger.Info().Str("path", config.DatabasePath).Msg("Database not found, creating a new one")
			file, err := os.Create(config.DatabasePath)
			if err != nil {
				return nil, fmt.Errorf("could not create db at path %s: %w", config.DatabasePath, err)
			}
			file.Close()
		}
		dsn = "file:" + config.DatabasePath
	}

	logger.Debug().Str("dsn", dsn).Msg("Connecting to embedded libsql")

	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql connection: %w", err)
	}
	// Result writes come from many workers; serialise them on one connection.
	db.SetMaxOpenConns(1)

	if err := verifyEmbeddedLibSQL(db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func isMemory(path string) bool {
	return strings.HasPrefix(path, ":memory:")
}

// verifyEmbeddedLibSQL checks connectivity and applies the pragmas the store relies on.
func verifyEmbeddedLibSQL(db *sql.DB, logger zerolog.Logger) error {
	ctx := context.Background()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("basic connectivity test failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("basic connectivity test failed: unexpected result %d", result)
	}

	// PRAGMA statements return rows under libsql, so they go through QueryRow.
	var busy int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout = 5000").Scan(&busy); err != nil {
		logger.Warn().Err(err).Msg("Failed to set busy_timeout")
	}

	// JSON1 backs the summary queries
	var jsonResult string
	if err := db.QueryRowContext(ctx, "SELECT json_extract('{\"test\":\"value\"}', '$.test')").Scan(&jsonResult); err != nil {
		logger.Warn().Err(err).Msg("JSON1 test failed")
	} else if jsonResult != "value" {
		logger.Warn().Str("result", jsonResult).Msg("JSON1 test returned unexpected result")
	}

	return nil
}
