package inpaint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"inpaint_backend/db"
	"inpaint_backend/logging"
	"inpaint_backend/mask"
	"inpaint_backend/vision"
)

type sessionFixture struct {
	session  *Session
	model    *fakeModel
	recorder *memRecorder
	output   string
	maskPath string
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T, cfg mask.Config, model *fakeModel) *sessionFixture {
	t.Helper()
	dir := t.TempDir()
	core, logs := observer.New(zapcore.InfoLevel)
	f := &sessionFixture{
		model:    model,
		recorder: &memRecorder{},
		output:   filepath.Join(dir, "test.png"),
		maskPath: filepath.Join(dir, "mask.png"),
		logs:     logs,
	}
	opts := Options{
		Mask:           cfg,
		OutputPath:     f.output,
		MaskPath:       f.maskPath,
		DownsamplePath: filepath.Join(dir, "downsample.png"),
	}
	s, err := NewSession(gradient(16), model, opts, logging.NewLoggerFromCore(core), f.recorder)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	f.session = s
	return f
}

func strokeConfig() mask.Config {
	return mask.Config{Mode: mask.ModeStroke, StrokeWidth: 4}
}

func TestNewSession_WritesWorkingImage(t *testing.T) {
	f := newFixture(t, strokeConfig(), &fakeModel{})

	img, err := vision.LoadImage(f.output)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if got, want := vision.ConvertToRGB(img).RGBAAt(3, 5), gradient(16).RGBAAt(3, 5); got != want {
		t.Errorf("working pixel = %v, want %v", got, want)
	}
	if f.session.State() != StateIdle || f.session.Side() != 16 || f.session.Mode() != mask.ModeStroke {
		t.Errorf("state=%v side=%d mode=%v", f.session.State(), f.session.Side(), f.session.Mode())
	}
}

func TestSession_StrokeCycle(t *testing.T) {
	f := newFixture(t, strokeConfig(), &fakeModel{fill: blackPrediction})
	s := f.session

	if ok, err := s.Press(mask.Point{X: 2, Y: 8}); !ok || err != nil {
		t.Fatalf("Press() = %v, %v", ok, err)
	}
	if ok, _ := s.Move(mask.Point{X: 14, Y: 8}); !ok {
		t.Fatal("Move() rejected")
	}
	if s.State() != StateDrawing || s.StrokeLen() != 2 {
		t.Fatalf("state=%v len=%d", s.State(), s.StrokeLen())
	}

	res, err := s.Inpaint(context.Background())
	if err != nil {
		t.Fatalf("Inpaint() error = %v", err)
	}

	if s.StrokeLen() != 0 || s.State() != StateIdle {
		t.Errorf("after cycle: len=%d state=%v, want empty idle", s.StrokeLen(), s.State())
	}
	if s.Cycles() != 1 || s.LastRunID() == "" || res.Metrics.RunID != s.LastRunID() {
		t.Errorf("cycles=%d last=%q metrics=%q", s.Cycles(), s.LastRunID(), res.Metrics.RunID)
	}

	src := gradient(16)
	if got := res.Image.RGBAAt(8, 8); got.R != 0 || got.G != 0 || got.B != 0 {
		t.Errorf("stroked pixel = %v, want black", got)
	}
	for _, p := range [][2]int{{8, 0}, {8, 15}, {0, 0}} {
		if got, want := res.Image.RGBAAt(p[0], p[1]), src.RGBAAt(p[0], p[1]); got != want {
			t.Errorf("known pixel %v = %v, want %v", p, got, want)
		}
	}

	written, err := vision.LoadImage(f.output)
	if err != nil {
		t.Fatal(err)
	}
	if got := vision.ConvertToRGB(written).RGBAAt(8, 8); got.R != 0 {
		t.Errorf("output file not overwritten, pixel = %v", got)
	}
	working, _ := s.WorkingImage()
	if working.RGBAAt(8, 8).R != 0 {
		t.Error("working image not updated")
	}

	dumped, err := vision.LoadImage(f.maskPath)
	if err != nil {
		t.Fatalf("mask not dumped: %v", err)
	}
	if r, _, _, _ := dumped.At(8, 8).RGBA(); r != 0 {
		t.Error("mask dump should be black under the stroke")
	}

	runs := f.recorder.all()
	if len(runs) != 1 {
		t.Fatalf("recorded %d runs", len(runs))
	}
	if runs[0].Status != db.StatusSuccess || runs[0].StrokePoints != 2 || runs[0].ImageSide != 16 || runs[0].ID != s.LastRunID() {
		t.Errorf("record = %+v", runs[0])
	}
	if f.logs.FilterMessage("inpaint complete").Len() != 1 {
		t.Error("completion not logged")
	}
}

func TestSession_OutOfBoundStrokesIgnored(t *testing.T) {
	f := newFixture(t, strokeConfig(), &fakeModel{})
	s := f.session

	s.Press(mask.Point{X: 3, Y: 3})
	before := s.StrokeLen()
	for _, pt := range []mask.Point{{X: 3, Y: 250}, {X: 3, Y: 400}} {
		if ok, err := s.Move(pt); ok || err != nil {
			t.Errorf("Move(%v) = %v, %v", pt, ok, err)
		}
		if ok, _ := s.Press(pt); ok {
			t.Errorf("Press(%v) accepted", pt)
		}
	}
	if s.StrokeLen() != before {
		t.Errorf("StrokeLen() = %d, want %d", s.StrokeLen(), before)
	}
}

func TestSession_EmptyPathKeepsImage(t *testing.T) {
	f := newFixture(t, strokeConfig(), &fakeModel{fill: blackPrediction})
	res, err := f.session.Inpaint(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	src := gradient(16)
	for i := range src.Pix {
		if res.Image.Pix[i] != src.Pix[i] {
			t.Fatalf("byte %d changed with an empty path", i)
		}
	}
}

func TestSession_Reset(t *testing.T) {
	s := newFixture(t, strokeConfig(), &fakeModel{}).session
	s.Press(mask.Point{X: 1, Y: 1})
	s.Move(mask.Point{X: 5, Y: 5})
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	if s.StrokeLen() != 0 || s.State() != StateIdle {
		t.Errorf("after Reset: len=%d state=%v", s.StrokeLen(), s.State())
	}
}

func TestSession_BusyDuringInpaint(t *testing.T) {
	model := &fakeModel{fill: blackPrediction, started: make(chan struct{}), release: make(chan struct{})}
	s := newFixture(t, strokeConfig(), model).session
	s.Press(mask.Point{X: 2, Y: 2})

	done := make(chan error, 1)
	go func() {
		_, err := s.Inpaint(context.Background())
		done <- err
	}()
	<-model.started

	if s.State() != StateInpainting {
		t.Errorf("State() = %v, want inpainting", s.State())
	}
	if _, err := s.Press(mask.Point{X: 4, Y: 4}); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("Press() during cycle = %v, want ErrSessionBusy", err)
	}
	if _, err := s.Move(mask.Point{X: 4, Y: 4}); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("Move() during cycle = %v, want ErrSessionBusy", err)
	}
	if err := s.Reset(); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("Reset() during cycle = %v, want ErrSessionBusy", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Inpaint(ctx); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("queued Inpaint() = %v, want ErrSessionBusy", err)
	}

	close(model.release)
	if err := <-done; err != nil {
		t.Fatalf("first Inpaint() error = %v", err)
	}
	if model.calls != 1 {
		t.Errorf("model called %d times, want 1", model.calls)
	}
	if s.State() != StateIdle || s.StrokeLen() != 0 {
		t.Errorf("after cycle: state=%v len=%d", s.State(), s.StrokeLen())
	}
}

func TestSession_FailedCycleKeepsPath(t *testing.T) {
	f := newFixture(t, strokeConfig(), &fakeModel{err: errors.New("boom")})
	s := f.session
	s.Press(mask.Point{X: 2, Y: 2})
	s.Move(mask.Point{X: 9, Y: 2})

	if _, err := s.Inpaint(context.Background()); err == nil {
		t.Fatal("Inpaint() should fail")
	}
	if s.StrokeLen() != 2 || s.State() != StateDrawing {
		t.Errorf("after failure: len=%d state=%v", s.StrokeLen(), s.State())
	}
	if s.Cycles() != 0 {
		t.Errorf("Cycles() = %d", s.Cycles())
	}
	runs := f.recorder.all()
	if len(runs) != 1 || runs[0].Status != db.StatusError || runs[0].ErrorMessage != "boom" {
		t.Errorf("records = %+v", runs)
	}
}

func TestSession_GridMode(t *testing.T) {
	f := newFixture(t, mask.Config{Mode: mask.ModeGrid, Rate: 4}, &fakeModel{fill: blackPrediction})
	s := f.session

	if ok, err := s.Press(mask.Point{X: 1, Y: 1}); ok || err != nil {
		t.Errorf("Press() in grid mode = %v, %v", ok, err)
	}
	if s.State() != StateIdle {
		t.Errorf("State() = %v", s.State())
	}

	down, err := vision.LoadImage(filepath.Join(filepath.Dir(f.output), "downsample.png"))
	if err != nil {
		t.Fatalf("downsample not written: %v", err)
	}
	if down.Bounds().Dx() != 16 {
		t.Errorf("downsample width = %d", down.Bounds().Dx())
	}

	res, err := s.Inpaint(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Metrics.KnownPixels != 16 {
		t.Errorf("KnownPixels = %d, want 16", res.Metrics.KnownPixels)
	}
	if runs := f.recorder.all(); runs[0].SRRate != 4 || runs[0].Mode != "grid" {
		t.Errorf("record = %+v", runs[0])
	}
}

func TestSession_GridRateBeyondSide(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		Mask:       mask.Config{Mode: mask.ModeGrid, Rate: 9},
		OutputPath: filepath.Join(dir, "test.png"),
	}
	s, err := NewSession(gradient(8), &fakeModel{fill: blackPrediction}, opts, nil, nil)
	if err != nil {
		t.Fatalf("NewSession() rate 9 on side 8 error = %v", err)
	}

	res, err := s.Inpaint(context.Background())
	if err != nil {
		t.Fatalf("Inpaint() error = %v", err)
	}
	if res.Metrics.KnownPixels != 1 {
		t.Errorf("KnownPixels = %d, want 1", res.Metrics.KnownPixels)
	}
}

func TestSession_MaskPreview(t *testing.T) {
	s := newFixture(t, strokeConfig(), &fakeModel{}).session
	s.Press(mask.Point{X: 0, Y: 8})
	s.Move(mask.Point{X: 15, Y: 8})

	preview, err := s.MaskPreview()
	if err != nil {
		t.Fatal(err)
	}
	if preview.RGBAAt(8, 8).R != 0 || preview.RGBAAt(8, 0).R != 255 {
		t.Errorf("preview (8,8)=%v (8,0)=%v", preview.RGBAAt(8, 8), preview.RGBAAt(8, 0))
	}
}

func TestNewSession_Errors(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Mask: strokeConfig(), OutputPath: filepath.Join(dir, "out.png")}
	if _, err := NewSession(gradient(8), nil, opts, nil, nil); err == nil {
		t.Error("nil model accepted")
	}
	if _, err := NewSession(gradient(8), &fakeModel{}, Options{Mask: strokeConfig()}, nil, nil); err == nil {
		t.Error("empty output path accepted")
	}
	bad := opts
	bad.Mask = mask.Config{Mode: mask.ModeGrid, Rate: 0}
	if _, err := NewSession(gradient(8), &fakeModel{}, bad, nil, nil); !errors.Is(err, mask.ErrInvalidRate) {
		t.Errorf("rate 0: err = %v", err)
	}
}

type failingRecorder struct{ err error }

func (f failingRecorder) RecordRun(context.Context, db.RunRecord) error { return f.err }

func TestMultiRecorder(t *testing.T) {
	if MultiRecorder() != nil || MultiRecorder(nil, nil) != nil {
		t.Error("MultiRecorder of nothing is not nil")
	}
	single := &memRecorder{}
	if MultiRecorder(nil, single) != RunRecorder(single) {
		t.Error("single recorder was wrapped")
	}

	a, b := &memRecorder{}, &memRecorder{}
	boom := errors.New("boom")
	r := MultiRecorder(a, failingRecorder{boom}, b)
	if err := r.RecordRun(context.Background(), db.RunRecord{ID: "x"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if len(a.all()) != 1 || len(b.all()) != 1 {
		t.Errorf("recorded a=%d b=%d, want 1 each", len(a.all()), len(b.all()))
	}
}
