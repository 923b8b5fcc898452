// Package metrics keeps in-memory statistics about inpaint runs for the
// status endpoints.
package metrics

import "time"

// RunSample is one finished inpaint cycle.
type RunSample struct {
	ID           string        `json:"id"`
	Mode         string        `json:"mode"`
	Status       string        `json:"status"`
	KnownPixels  int           `json:"known_pixels"`
	StrokePoints int           `json:"stroke_points,omitempty"`
	Duration     time.Duration `json:"duration"`
	FinishedAt   time.Time     `json:"finished_at"`
	ErrorMsg     string        `json:"error_msg,omitempty"`
}

// RunMetrics aggregates every recorded run.
type RunMetrics struct {
	TotalRuns    int64                   `json:"total_runs"`
	TotalSuccess int64                   `json:"total_success"`
	TotalErrors  int64                   `json:"total_errors"`
	ByMode       map[string]*ModeMetrics `json:"by_mode"`
}

// ModeMetrics aggregates the runs of one mask mode.
type ModeMetrics struct {
	Count       int64         `json:"count"`
	SuccessRate float64       `json:"success_rate"` // 0-100
	AvgDuration time.Duration `json:"avg_duration"`
	MaxDuration time.Duration `json:"max_duration"`
}

// SystemStatus is the process health summary.
type SystemStatus struct {
	Health    string        `json:"health"`
	Version   string        `json:"version"`
	Uptime    time.Duration `json:"uptime"`
	LastRun   time.Time     `json:"last_run,omitempty"`
	LastCheck time.Time     `json:"last_check"`
}

// Run status values, matching the history store.
const (
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// Health values for SystemStatus.
const (
	SystemHealthRunning  = "running"
	SystemHealthDegraded = "degraded"
)
