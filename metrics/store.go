package metrics

import (
	"context"
	"sync"
	"time"

	"inpaint_backend/db"
)

// DegradedAfter is the number of consecutive failed runs that marks the
// system degraded.
const DegradedAfter = 3

// Store is the in-memory Collector. Recent runs live in a ring buffer.
type Store struct {
	mu sync.RWMutex

	history []RunSample
	cap     int
	head    int
	size    int

	total        int64
	success      int64
	errors       int64
	failStreak   int
	byMode       map[string]*modeStats
	lastFinished time.Time

	startTime time.Time
	version   string
	now       func() time.Time
}

type modeStats struct {
	count         int64
	successCount  int64
	totalDuration time.Duration
	maxDuration   time.Duration
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// HistoryCapacity is the number of recent runs kept.
	HistoryCapacity int
	Version         string
}

// DefaultStoreConfig returns a 100-run history.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		HistoryCapacity: 100,
		Version:         "dev",
	}
}

// NewStore creates a Store. Uptime is measured from startTime.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	capacity := config.HistoryCapacity
	if capacity < 1 {
		capacity = DefaultStoreConfig().HistoryCapacity
	}
	return &Store{
		history:   make([]RunSample, capacity),
		cap:       capacity,
		byMode:    make(map[string]*modeStats),
		startTime: startTime,
		version:   config.Version,
		now:       time.Now,
	}
}

// RecordRun converts rec to a sample and records it. It never fails.
func (s *Store) RecordRun(_ context.Context, rec db.RunRecord) error {
	finished := rec.CreatedAt
	if finished.IsZero() {
		finished = s.now()
	}
	s.Record(RunSample{
		ID:           rec.ID,
		Mode:         rec.Mode,
		Status:       rec.Status,
		KnownPixels:  rec.KnownPixels,
		StrokePoints: rec.StrokePoints,
		Duration:     time.Duration(rec.DurationMS) * time.Millisecond,
		FinishedAt:   finished,
		ErrorMsg:     rec.ErrorMessage,
	})
	return nil
}

// Record adds a sample.
func (s *Store) Record(run RunSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = run
	s.head = (s.head + 1) % s.cap
	if s.size < s.cap {
		s.size++
	}

	s.total++
	if run.Status == RunStatusSuccess {
		s.success++
		s.failStreak = 0
	} else {
		s.errors++
		s.failStreak++
	}
	if run.FinishedAt.After(s.lastFinished) {
		s.lastFinished = run.FinishedAt
	}

	stats, ok := s.byMode[run.Mode]
	if !ok {
		stats = &modeStats{}
		s.byMode[run.Mode] = stats
	}
	stats.count++
	if run.Status == RunStatusSuccess {
		stats.successCount++
	}
	stats.totalDuration += run.Duration
	stats.maxDuration = max(stats.maxDuration, run.Duration)
}

// RunMetrics returns the aggregates.
func (s *Store) RunMetrics() RunMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := RunMetrics{
		TotalRuns:    s.total,
		TotalSuccess: s.success,
		TotalErrors:  s.errors,
		ByMode:       make(map[string]*ModeMetrics, len(s.byMode)),
	}
	for mode, stats := range s.byMode {
		m.ByMode[mode] = &ModeMetrics{
			Count:       stats.count,
			SuccessRate: float64(stats.successCount) / float64(stats.count) * 100,
			AvgDuration: stats.totalDuration / time.Duration(stats.count),
			MaxDuration: stats.maxDuration,
		}
	}
	return m
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) []RunSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.size == 0 {
		return []RunSample{}
	}
	limit = min(limit, s.size)

	out := make([]RunSample, limit)
	for i := range out {
		out[i] = s.history[(s.head-1-i+s.cap)%s.cap]
	}
	return out
}

// SystemStatus reports degraded after DegradedAfter consecutive failures.
func (s *Store) SystemStatus() SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	health := SystemHealthRunning
	if s.failStreak >= DegradedAfter {
		health = SystemHealthDegraded
	}
	now := s.now()
	return SystemStatus{
		Health:    health,
		Version:   s.version,
		Uptime:    now.Sub(s.startTime),
		LastRun:   s.lastFinished,
		LastCheck: now,
	}
}

var _ Collector = (*Store)(nil)
