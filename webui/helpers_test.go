package webui

import (
	"context"
	"image"
	"sync"

	"inpaint_backend/db"
	"inpaint_backend/inpaint"
	"inpaint_backend/logging"
	"inpaint_backend/mask"
)

// fakeSession accepts points with Y below 250 and counts cycles.
type fakeSession struct {
	mu        sync.Mutex
	points    int
	cycles    int
	busy      bool
	inpainted chan struct{}
	err       error
}

func (f *fakeSession) add(pt mask.Point) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return false, inpaint.ErrSessionBusy
	}
	if pt.Y >= mask.LegacyCanvasBound {
		return false, nil
	}
	f.points++
	return true, nil
}

func (f *fakeSession) Press(pt mask.Point) (bool, error) { return f.add(pt) }
func (f *fakeSession) Move(pt mask.Point) (bool, error)  { return f.add(pt) }

func (f *fakeSession) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return inpaint.ErrSessionBusy
	}
	f.points = 0
	return nil
}

func (f *fakeSession) Inpaint(ctx context.Context) (*inpaint.Result, error) {
	if f.inpainted != nil {
		<-f.inpainted
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.cycles++
	points := f.points
	f.points = 0
	return &inpaint.Result{Metrics: logging.InpaintMetrics{
		RunID:         "run-1",
		Mode:          "stroke",
		Side:          8,
		KnownPixels:   60,
		UnknownPixels: 4,
		StrokePoints:  points,
	}}, nil
}

func (f *fakeSession) State() inpaint.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.points > 0 {
		return inpaint.StateDrawing
	}
	return inpaint.StateIdle
}

func (f *fakeSession) Mode() mask.Mode { return mask.ModeStroke }
func (f *fakeSession) Side() int       { return 8 }

func (f *fakeSession) StrokeLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.points
}

func (f *fakeSession) Cycles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cycles
}

func (f *fakeSession) LastRunID() string { return "" }

func (f *fakeSession) WorkingImage() (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func (f *fakeSession) MaskPreview() (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

type fakeHistory struct {
	runs  []db.RunRecord
	limit int
}

func (h *fakeHistory) ListRuns(ctx context.Context, limit int) ([]db.RunRecord, error) {
	h.limit = limit
	if limit < len(h.runs) {
		return h.runs[:limit], nil
	}
	return h.runs, nil
}

func (h *fakeHistory) CountRuns(ctx context.Context) (int64, error) {
	return int64(len(h.runs)), nil
}
