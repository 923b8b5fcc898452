package inpaint

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inpaint_backend/db"
	"inpaint_backend/logging"
	"inpaint_backend/mask"
	"inpaint_backend/tensor"
	"inpaint_backend/vision"
)

// ErrSessionBusy is returned for strokes and resets that arrive while a
// cycle is running, and for cycles whose context ends while queued.
var ErrSessionBusy = errors.New("inpaint: an inpaint cycle is in progress")

// State is the session's position in the drawing cycle.
type State int

const (
	StateIdle State = iota
	StateDrawing
	StateInpainting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrawing:
		return "drawing"
	case StateInpainting:
		return "inpainting"
	default:
		return "unknown"
	}
}

// RunRecorder stores a finished cycle. db.Repository satisfies it.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec db.RunRecord) error
}

type multiRecorder []RunRecorder

// MultiRecorder records to every non-nil recorder in order and returns the
// first error. It returns nil when none are given.
func MultiRecorder(recorders ...RunRecorder) RunRecorder {
	var m multiRecorder
	for _, r := range recorders {
		if r != nil {
			m = append(m, r)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

func (m multiRecorder) RecordRun(ctx context.Context, rec db.RunRecord) error {
	var first error
	for _, r := range m {
		if err := r.RecordRun(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Options configures a Session.
type Options struct {
	// Mask selects the strategy. Side is taken from the source image.
	Mask mask.Config

	// OutputPath receives the working image at start and after every cycle.
	OutputPath string

	// MaskPath, when set, receives each cycle's mask as a PNG.
	MaskPath string

	// DownsamplePath, when set in grid mode, receives the sub-sampled source.
	DownsamplePath string
}

// Session holds one interactive inpainting session: the working image, the
// stroke accumulator and the cycle state.
type Session struct {
	mu       sync.Mutex
	state    State
	working  *tensor.Tensor
	side     int
	cycles   int
	lastRun  string
	opts     Options
	gen      mask.Generator
	path     *mask.StrokePath
	pipeline *Pipeline
	logger   *logging.Logger
	recorder RunRecorder

	// cycle admits one inpaint at a time; later callers queue on it.
	cycle chan struct{}
}

// NewSession prepares source and writes it to opts.OutputPath as the first
// working image. In grid mode the source is sub-sampled at the mask rate
// first. logger and recorder may be nil.
func NewSession(source image.Image, model Inferer, opts Options, logger *logging.Logger, recorder RunRecorder) (*Session, error) {
	if model == nil {
		return nil, fmt.Errorf("inpaint: model is required")
	}
	if opts.OutputPath == "" {
		return nil, fmt.Errorf("inpaint: output path is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	side, err := vision.SquareSide(source)
	if err != nil {
		return nil, err
	}
	cfg := opts.Mask
	cfg.Side = side
	cfg.IncludeBatch = false
	gen, err := mask.New(cfg)
	if err != nil {
		return nil, err
	}

	prepared := vision.ConvertToRGB(source)
	if cfg.Mode == mask.ModeGrid {
		if prepared, err = vision.Subsample(prepared, cfg.Rate); err != nil {
			return nil, err
		}
		if opts.DownsamplePath != "" {
			if err := vision.WritePNG(opts.DownsamplePath, prepared); err != nil {
				return nil, err
			}
		}
	}
	if err := vision.WritePNG(opts.OutputPath, prepared); err != nil {
		return nil, err
	}

	logger.Info("session started",
		zap.String("mode", gen.Mode().String()),
		zap.Int("side", side),
		zap.String("output", opts.OutputPath))

	return &Session{
		state:    StateIdle,
		working:  vision.ToTensor(prepared),
		side:     side,
		opts:     opts,
		gen:      gen,
		path:     mask.StrokePathOf(gen),
		pipeline: NewPipeline(nil, model),
		logger:   logger,
		recorder: recorder,
		cycle:    make(chan struct{}, 1),
	}, nil
}

// Press starts a new sub-path at pt. It reports whether the point was
// accepted: points outside the canvas bound, and every point in grid mode,
// are ignored without error.
func (s *Session) Press(pt mask.Point) (bool, error) {
	return s.stroke(pt, (*mask.StrokePath).Press)
}

// Move extends the current sub-path to pt, with the same rules as Press.
func (s *Session) Move(pt mask.Point) (bool, error) {
	return s.stroke(pt, (*mask.StrokePath).Move)
}

func (s *Session) stroke(pt mask.Point, add func(*mask.StrokePath, mask.Point) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateInpainting {
		return false, ErrSessionBusy
	}
	if s.path == nil || !add(s.path, pt) {
		return false, nil
	}
	s.state = StateDrawing
	return true, nil
}

// Reset discards the accumulated strokes.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateInpainting {
		return ErrSessionBusy
	}
	if s.path != nil {
		s.path.Reset()
	}
	s.state = StateIdle
	return nil
}

// Inpaint runs one cycle on the working image and overwrites the output
// file with the result. Cycles are serialized; ctx bounds only the wait for
// a previous cycle and for the model. On success the stroke path is
// cleared; on failure it is kept so the cycle can be retried.
func (s *Session) Inpaint(ctx context.Context) (*Result, error) {
	select {
	case s.cycle <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrSessionBusy, ctx.Err())
	}
	defer func() { <-s.cycle }()

	s.mu.Lock()
	s.state = StateInpainting
	working := s.working
	s.mu.Unlock()

	runID := uuid.NewString()
	start := time.Now()
	log := s.logger.With(logging.RunFields(runID, s.gen.Mode().String())...)

	// Strokes are rejected while the state is Inpainting, so the generator
	// reads a path nobody writes.
	result, err := s.pipeline.Run(ctx, working, s.gen)
	if err == nil {
		err = s.writeOutputs(result)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := db.RunRecord{
		ID:         runID,
		Mode:       s.gen.Mode().String(),
		ImageSide:  s.side,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if s.gen.Mode() == mask.ModeGrid {
		rec.SRRate = s.opts.Mask.Rate
	}

	if err != nil {
		if s.path != nil && !s.path.Empty() {
			s.state = StateDrawing
		} else {
			s.state = StateIdle
		}
		if s.path != nil {
			rec.StrokePoints = s.path.Len()
		}
		rec.Status = db.StatusError
		rec.ErrorMessage = err.Error()
		s.record(ctx, log, rec)
		log.Error("inpaint failed", zap.Error(err))
		return nil, err
	}

	result.Metrics.RunID = runID
	s.working = vision.ToTensor(result.Image)
	s.cycles++
	s.lastRun = runID
	if s.path != nil {
		s.path.Reset()
	}
	s.state = StateIdle

	rec.KnownPixels = result.Metrics.KnownPixels
	rec.StrokePoints = result.Metrics.StrokePoints
	rec.OutputPath = s.opts.OutputPath
	rec.Status = db.StatusSuccess
	s.record(ctx, log, rec)
	log.Info("inpaint complete", logging.InpaintFields(result.Metrics))

	return result, nil
}

func (s *Session) writeOutputs(result *Result) error {
	if err := vision.WritePNG(s.opts.OutputPath, result.Image); err != nil {
		return err
	}
	if s.opts.MaskPath == "" {
		return nil
	}
	maskImage, err := vision.ToImage(result.Mask)
	if err != nil {
		return err
	}
	return vision.WritePNG(s.opts.MaskPath, maskImage)
}

func (s *Session) record(ctx context.Context, log *logging.Logger, rec db.RunRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("failed to record run", zap.Error(err))
	}
}

// State returns the current cycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode returns the mask strategy.
func (s *Session) Mode() mask.Mode { return s.gen.Mode() }

// Side returns the working image side.
func (s *Session) Side() int { return s.side }

// StrokeLen returns the number of accumulated points, 0 in grid mode.
func (s *Session) StrokeLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == nil {
		return 0
	}
	return s.path.Len()
}

// Cycles returns the number of completed cycles.
func (s *Session) Cycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

// LastRunID returns the id of the last completed cycle, or "".
func (s *Session) LastRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// WorkingImage returns the current working image.
func (s *Session) WorkingImage() (*image.RGBA, error) {
	s.mu.Lock()
	working := s.working
	s.mu.Unlock()
	return vision.ToImage(working)
}

// MaskPreview rasterizes the mask the next cycle would use.
func (s *Session) MaskPreview() (*image.RGBA, error) {
	s.mu.Lock()
	m, err := s.gen.Generate()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return vision.ToImage(m)
}
