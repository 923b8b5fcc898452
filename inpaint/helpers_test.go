package inpaint

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"inpaint_backend/db"
	"inpaint_backend/tensor"
)

// fakeModel predicts a constant normalized value. With started/release set
// it signals entry and blocks until released.
type fakeModel struct {
	fill    float32
	err     error
	started chan struct{}
	release chan struct{}
	calls   int32
}

func (f *fakeModel) Infer(ctx context.Context, masked, m *tensor.Tensor) (*tensor.Tensor, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return tensor.Full(masked.Shape(), f.fill), nil
}

// blackPrediction denormalizes below zero in every channel, so predicted
// pixels come out black.
const blackPrediction = -10

type memRecorder struct {
	mu   sync.Mutex
	runs []db.RunRecord
}

func (r *memRecorder) RecordRun(ctx context.Context, rec db.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, rec)
	return nil
}

func (r *memRecorder) all() []db.RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]db.RunRecord(nil), r.runs...)
}

// gradient returns a side x side image with no black pixels.
func gradient(side int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: uint8(60 + 8*x), B: uint8(40 + 8*y), A: 255})
		}
	}
	return img
}
