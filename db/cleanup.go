package db

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult reports a retention pass.
type CleanupResult struct {
	RunsDeleted int64
	Duration    time.Duration
}

// Cleanup deletes runs older than retentionDays and vacuums the file.
// retentionDays must be positive.
func (d *Database) Cleanup(ctx context.Context, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	if retentionDays <= 0 {
		return CleanupResult{}, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(sqliteTimeLayout)
	res, err := d.exec(ctx, "DELETE FROM inpaint_runs WHERE created_at < ?", cutoff)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("failed to delete old runs: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return CleanupResult{}, fmt.Errorf("failed to count deleted runs: %w", err)
	}

	if deleted > 0 {
		if _, err := d.exec(ctx, "VACUUM"); err != nil {
			return CleanupResult{RunsDeleted: deleted}, fmt.Errorf("failed to vacuum: %w", err)
		}
	}
	return CleanupResult{RunsDeleted: deleted, Duration: time.Since(start)}, nil
}
