package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InpaintMetrics summarizes one inpaint cycle. It implements
// zapcore.ObjectMarshaler so a whole cycle logs as one nested object.
//
// Example:
//
//	logger.Info("inpaint complete", InpaintFields(metrics))
type InpaintMetrics struct {
	RunID string `json:"run_id"`

	// Mode is the mask strategy, "grid" or "stroke".
	Mode string `json:"mode"`

	// Side is the square image side in pixels.
	Side int `json:"side"`

	// KnownPixels and UnknownPixels count spatial positions of the mask.
	KnownPixels   int `json:"known_pixels"`
	UnknownPixels int `json:"unknown_pixels"`

	// StrokePoints is the accumulated path length in stroke mode.
	StrokePoints int `json:"stroke_points"`

	MaskDuration      time.Duration `json:"mask_duration"`
	InferenceDuration time.Duration `json:"inference_duration"`
	CompositeDuration time.Duration `json:"composite_duration"`
	Total             time.Duration `json:"total"`
}

// KnownRatio returns the fraction of known pixels, 0 for an empty image.
func (m InpaintMetrics) KnownRatio() float64 {
	total := m.KnownPixels + m.UnknownPixels
	if total == 0 {
		return 0
	}
	return float64(m.KnownPixels) / float64(total)
}

// MarshalLogObject implements zapcore.ObjectMarshaler. Durations are encoded
// in milliseconds.
func (m InpaintMetrics) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("run_id", m.RunID)
	enc.AddString("mode", m.Mode)
	enc.AddInt("side", m.Side)
	enc.AddInt("known_pixels", m.KnownPixels)
	enc.AddInt("unknown_pixels", m.UnknownPixels)
	enc.AddFloat64("known_ratio", m.KnownRatio())
	if m.StrokePoints > 0 {
		enc.AddInt("stroke_points", m.StrokePoints)
	}
	enc.AddInt64("mask_ms", m.MaskDuration.Milliseconds())
	enc.AddInt64("inference_ms", m.InferenceDuration.Milliseconds())
	enc.AddInt64("composite_ms", m.CompositeDuration.Milliseconds())
	enc.AddInt64("total_ms", m.Total.Milliseconds())
	return nil
}

// InpaintFields wraps metrics in a single "inpaint" field.
func InpaintFields(m InpaintMetrics) zap.Field {
	return zap.Object("inpaint", m)
}

// RunFields returns the identifying fields attached to every log line of a
// cycle.
func RunFields(runID, mode string) []zap.Field {
	return []zap.Field{
		zap.String("run_id", runID),
		zap.String("mode", mode),
	}
}

// CycleTimer measures the stages of one inpaint cycle.
//
// Example:
//
//	timer := StartCycle()
//	// ... generate mask ...
//	timer.Mark(StageMask)
//	// ... inference ...
//	timer.Mark(StageInference)
type CycleTimer struct {
	start  time.Time
	last   time.Time
	stages map[Stage]time.Duration
}

// Stage names a timed pipeline step.
type Stage string

// Pipeline stages.
const (
	StageMask      Stage = "mask"
	StageInference Stage = "inference"
	StageComposite Stage = "composite"
)

// StartCycle starts a timer.
func StartCycle() *CycleTimer {
	now := time.Now()
	return &CycleTimer{start: now, last: now, stages: make(map[Stage]time.Duration)}
}

// Mark attributes the time since the previous mark to stage.
func (t *CycleTimer) Mark(stage Stage) time.Duration {
	now := time.Now()
	d := now.Sub(t.last)
	t.stages[stage] += d
	t.last = now
	return d
}

// Stage returns the accumulated duration of stage.
func (t *CycleTimer) Stage(stage Stage) time.Duration { return t.stages[stage] }

// Elapsed returns the time since StartCycle.
func (t *CycleTimer) Elapsed() time.Duration { return time.Since(t.start) }

// Fill copies the stage durations and total into m.
func (t *CycleTimer) Fill(m *InpaintMetrics) {
	m.MaskDuration = t.stages[StageMask]
	m.InferenceDuration = t.stages[StageInference]
	m.CompositeDuration = t.stages[StageComposite]
	m.Total = t.Elapsed()
}
