package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"sitescout/internal/config"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
  id TEXT PRIMARY KEY,
  url TEXT NOT NULL,
  goal TEXT NOT NULL,
  status TEXT NOT NULL,
  owner TEXT NOT NULL DEFAULT '',
  result TEXT,
  error TEXT NOT NULL DEFAULT '',
  last_ran TEXT,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner, created_at);`,
}

func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	dsn, err := buildDSN(cfg.DatabaseURL, cfg.DatabaseAuthToken)
	if err != nil {
		return nil, err
	}

	driver := driverFor(dsn)
	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	if driver == "sqlite" {
		// One writer keeps a local file from returning SQLITE_BUSY under concurrent task runs.
		database.SetMaxOpenConns(1)
	}

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return database, nil
}

// Migrate creates the tables the task store needs. It is safe to run on every start.
func Migrate(ctx context.Context, database *sql.DB) error {
	for _, statement := range schema {
		if _, err := database.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func driverFor(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return "sqlite"
	}
	return "libsql"
}

func buildDSN(rawURL, authToken string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("empty database url")
	}

	if rawURL == ":memory:" || strings.HasPrefix(rawURL, "file:") {
		return rawURL, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}

	switch parsed.Scheme {
	case "libsql", "http", "https", "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported database url scheme %q", parsed.Scheme)
	}

	if token := strings.TrimSpace(authToken); token != "" {
		query := parsed.Query()
		if query.Get("authToken") == "" {
			query.Set("authToken", token)
			parsed.RawQuery = query.Encode()
		}
	}

	return parsed.String(), nil
}
