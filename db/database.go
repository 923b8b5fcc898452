// Package db records inpaint runs in SQLite.
//
// The schema lives in embedded migrations applied by golang-migrate; the
// connection uses modernc.org/sqlite in WAL mode so history reads from the
// web UI never block the single writer.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrClosed is returned by operations on a closed Database.
var ErrClosed = errors.New("db: database is closed")

// Database owns the SQLite connection and its schema.
//
// Usage:
//
//	d, err := db.Open("inpaint.db")
//	if err != nil {
//	    return err
//	}
//	defer d.Close()
type Database struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open creates parent directories, applies pending migrations and opens a
// WAL connection to path.
func Open(path string) (*Database, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// golang-migrate closes the connection it is given, so migrations run on
	// their own connection before the long-lived one is opened.
	if err := MigrateUp(path); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	conn, err := openSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	return &Database{db: conn, path: path}, nil
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Close closes the connection. It is safe to call more than once.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return ErrClosed
	}
	return d.db.PingContext(ctx)
}

func (d *Database) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, ErrClosed
	}
	return d.db.ExecContext(ctx, query, args...)
}

func (d *Database) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, ErrClosed
	}
	return d.db.QueryContext(ctx, query, args...)
}

func (d *Database) queryRow(ctx context.Context, dest []interface{}, query string, args ...interface{}) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return ErrClosed
	}
	return d.db.QueryRowContext(ctx, query, args...).Scan(dest...)
}
