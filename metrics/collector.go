package metrics

import (
	"context"

	"inpaint_backend/db"
)

// Collector gathers run statistics. Implementations are safe for
// concurrent use.
type Collector interface {
	// RecordRun adds a finished run. It has the signature of
	// inpaint.RunRecorder so a collector can sit beside the history store.
	RecordRun(ctx context.Context, rec db.RunRecord) error

	RunMetrics() RunMetrics

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(limit int) []RunSample

	SystemStatus() SystemStatus
}
