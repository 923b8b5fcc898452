package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// sqliteTimeLayout is CURRENT_TIMESTAMP's format.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// RunRecord is one row of inpaint_runs.
type RunRecord struct {
	ID           string    `json:"id"`
	Mode         string    `json:"mode"`
	SRRate       int       `json:"sr_rate,omitempty"`
	ImageSide    int       `json:"image_side"`
	KnownPixels  int       `json:"known_pixels"`
	StrokePoints int       `json:"stroke_points,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	OutputPath   string    `json:"output_path,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository reads and writes inpaint_runs. With an AsyncWriter attached,
// RecordRun queues inserts instead of blocking.
type Repository struct {
	db          *Database
	asyncWriter *AsyncWriter
}

// NewRepository creates a new Repository. asyncWriter may be nil.
func NewRepository(db *Database, asyncWriter *AsyncWriter) *Repository {
	return &Repository{db: db, asyncWriter: asyncWriter}
}

const insertRunQuery = `
	INSERT INTO inpaint_runs (
		id, mode, sr_rate, image_side, known_pixels, stroke_points,
		duration_ms, output_path, status, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func runArgs(rec RunRecord) []interface{} {
	return []interface{}{
		rec.ID,
		rec.Mode,
		rec.SRRate,
		rec.ImageSide,
		rec.KnownPixels,
		rec.StrokePoints,
		rec.DurationMS,
		nullString(rec.OutputPath),
		rec.Status,
		nullString(rec.ErrorMessage),
	}
}

// InsertRun writes rec synchronously.
func (r *Repository) InsertRun(ctx context.Context, rec RunRecord) error {
	if r.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if _, err := r.db.exec(ctx, insertRunQuery, runArgs(rec)...); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rec.ID, err)
	}
	return nil
}

// RecordRun queues rec on the async writer when one is running and falls
// back to InsertRun when it is absent or full.
func (r *Repository) RecordRun(ctx context.Context, rec RunRecord) error {
	if r.asyncWriter != nil && r.asyncWriter.IsStarted() {
		if r.asyncWriter.Write(rec) {
			return nil
		}
	}
	return r.InsertRun(ctx, rec)
}

// AsyncWriteHandler returns the handler that drains queued RunRecords.
func (r *Repository) AsyncWriteHandler() WriteHandler {
	return func(op WriteOperation) error {
		rec, ok := op.Data.(RunRecord)
		if !ok {
			return fmt.Errorf("invalid operation type %T: expected RunRecord", op.Data)
		}
		return r.InsertRun(context.Background(), rec)
	}
}

// ListRuns returns the newest runs first. limit <= 0 means 10.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.query(ctx, `
		SELECT id, mode, sr_rate, image_side, known_pixels, stroke_points,
			   duration_ms, COALESCE(output_path, ''), status,
			   COALESCE(error_message, ''), created_at
		FROM inpaint_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var createdAt string
		if err := rows.Scan(
			&rec.ID,
			&rec.Mode,
			&rec.SRRate,
			&rec.ImageSide,
			&rec.KnownPixels,
			&rec.StrokePoints,
			&rec.DurationMS,
			&rec.OutputPath,
			&rec.Status,
			&rec.ErrorMessage,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		rec.CreatedAt = parseTimestamp(createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return records, nil
}

// CountRuns returns the number of recorded runs.
func (r *Repository) CountRuns(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	var count int64
	if err := r.db.queryRow(ctx, []interface{}{&count}, "SELECT COUNT(*) FROM inpaint_runs"); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return sql.NullString{}
	}
	return s
}

// parseTimestamp accepts SQLite's text format and RFC 3339, which the driver
// returns for DATETIME columns depending on how the value was written.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
