package logging

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInpaintFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	m := InpaintMetrics{
		RunID:             "abc",
		Mode:              "grid",
		Side:              8,
		KnownPixels:       16,
		UnknownPixels:     48,
		MaskDuration:      2 * time.Millisecond,
		InferenceDuration: 40 * time.Millisecond,
		CompositeDuration: time.Millisecond,
		Total:             45 * time.Millisecond,
	}
	field := InpaintFields(m)
	if field.Key != "inpaint" || field.Type != zapcore.ObjectMarshalerType {
		t.Fatalf("InpaintFields() = %s/%v", field.Key, field.Type)
	}

	logger.Info("inpaint complete", field)
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	obj, ok := entries[0].ContextMap()["inpaint"].(map[string]interface{})
	if !ok {
		t.Fatalf("inpaint field is %T", entries[0].ContextMap()["inpaint"])
	}
	checks := map[string]interface{}{
		"run_id":       "abc",
		"mode":         "grid",
		"side":         8,
		"known_pixels": 16,
		"known_ratio":  0.25,
		"inference_ms": int64(40),
		"total_ms":     int64(45),
	}
	for k, want := range checks {
		if obj[k] != want {
			t.Errorf("%s = %v (%T), want %v (%T)", k, obj[k], obj[k], want, want)
		}
	}
	if _, ok := obj["stroke_points"]; ok {
		t.Error("stroke_points should be omitted when zero")
	}
}

func TestInpaintMetrics_KnownRatioEmpty(t *testing.T) {
	if r := (InpaintMetrics{}).KnownRatio(); r != 0 {
		t.Errorf("KnownRatio() = %v, want 0", r)
	}
}

func TestRunFields(t *testing.T) {
	fields := RunFields("r1", "stroke")
	if len(fields) != 2 || fields[0].String != "r1" || fields[1].String != "stroke" {
		t.Errorf("RunFields() = %v", fields)
	}
}

func TestCycleTimer(t *testing.T) {
	timer := StartCycle()
	time.Sleep(2 * time.Millisecond)
	timer.Mark(StageMask)
	time.Sleep(2 * time.Millisecond)
	timer.Mark(StageInference)

	if timer.Stage(StageMask) <= 0 || timer.Stage(StageInference) <= 0 {
		t.Error("stage durations not recorded")
	}
	if timer.Stage(StageComposite) != 0 {
		t.Error("unmarked stage has a duration")
	}

	var m InpaintMetrics
	timer.Fill(&m)
	if m.Total < m.MaskDuration+m.InferenceDuration {
		t.Errorf("Total %v shorter than its stages", m.Total)
	}
}
