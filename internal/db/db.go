package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"surfsup-server/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the climate store and pings it. A missing store file is an
// error: the dataset is loaded elsewhere and this process never creates it.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.SQLiteLogStatements {
		connector, err := NewLoggingConnector(dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("db connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open(cfg.SQLiteDriver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	if cfg.SQLiteMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.SQLiteMaxOpenConns)
	}
	if cfg.SQLiteMaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.SQLiteMaxIdleConns)
	}
	if cfg.SQLiteConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.SQLiteConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// readOnlyParams are appended to every file DSN:
//   - mode=ro: open the file read-only, fail if it does not exist
//   - _query_only: reject writes on the connection as well
//   - _busy_timeout: wait instead of failing if an external loader holds a lock
var readOnlyParams = []string{
	"mode=ro",
	"_query_only=true",
	"_busy_timeout=5000",
}

func buildDSN(cfg config.Config) (string, error) {
	if cfg.SQLiteDSN != "" {
		return cfg.SQLiteDSN, nil
	}

	path := cfg.SQLitePath
	if path == "" {
		return "", fmt.Errorf("sqlite path is empty")
	}

	// Caller supplied a URI ("file:/data/hawaii.sqlite?cache=shared"): keep it, add params.
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(readOnlyParams, "&"), nil
	}

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("sqlite store %s: %w", path, err)
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(readOnlyParams, "&")), nil
}
