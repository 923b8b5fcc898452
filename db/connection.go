package db

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// busyTimeoutMS is how long a statement waits on a locked database.
const busyTimeoutMS = 5000

// sqlitePragmas run on the single pooled connection right after it opens.
// NORMAL sync is durable enough for a run log under WAL.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMS),
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// openSQLite opens path with one connection and WAL journaling. It fails
// if SQLite refuses WAL, which happens for some network filesystems.
func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Pragmas are per connection, so the pool must never grow past one.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, pragma := range sqlitePragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if mode != "wal" {
		conn.Close()
		return nil, fmt.Errorf("WAL mode not enabled, got: %s", mode)
	}
	return conn, nil
}
