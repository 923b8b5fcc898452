// Package mask builds the binary occlusion masks fed to the inpainting model.
//
// A mask is a (3, H, H) tensor whose entries are exactly 0 or 1, identical
// across channels: 1 marks a known pixel that must be kept, 0 marks a pixel
// the model has to fill in. Two strategies produce masks:
//
//   - Grid: a deterministic sub-sampling pattern with stride R. Only pixels
//     whose row and column are multiples of R are known.
//   - Stroke: freehand strokes accumulated in a StrokePath and rasterized
//     with a fixed pen width. Painted pixels are unknown.
//
// The strategy is chosen once with New and used through the Generator
// interface, so the rest of the pipeline never branches on the mode.
package mask

import (
	"errors"
	"fmt"

	"inpaint_backend/tensor"
)

// Mask errors
var (
	ErrInvalidRate  = errors.New("mask: stride rate must be at least 1")
	ErrInvalidSide  = errors.New("mask: image side must be positive")
	ErrInvalidWidth = errors.New("mask: stroke width must be positive")
	ErrUnknownMode  = errors.New("mask: unknown mode")
)

// Channels is the number of channels in a generated mask.
const Channels = 3

// Mode selects the mask strategy.
type Mode int

const (
	// ModeStroke rasterizes freehand strokes.
	ModeStroke Mode = iota
	// ModeGrid keeps a regular sub-sampling grid (super-resolution).
	ModeGrid
)

// String returns the mode name used in config, logs and the run history.
func (m Mode) String() string {
	switch m {
	case ModeStroke:
		return "stroke"
	case ModeGrid:
		return "grid"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Generator produces a mask tensor.
type Generator interface {
	Generate() (*tensor.Tensor, error)
	Mode() Mode
}

// Config selects and parameterizes a Generator.
type Config struct {
	Mode Mode

	// Side is the height and width of the square image.
	Side int

	// Rate is the grid stride. Ignored in stroke mode.
	Rate int

	// StrokeWidth is the pen width in pixels. Zero means DefaultStrokeWidth.
	StrokeWidth float64

	// StrokeBound is the vertical coordinate at which stroke points are
	// rejected. Zero means LegacyCanvasBound; BoundToImage uses Side.
	StrokeBound float64

	// IncludeBatch adds a leading batch axis of size 1 to every mask.
	IncludeBatch bool
}

// New returns the Generator for cfg.Mode. For ModeStroke the returned
// generator is a *StrokeGenerator (or wraps one when IncludeBatch is set);
// use StrokePathOf to reach its accumulator.
func New(cfg Config) (Generator, error) {
	var g Generator
	switch cfg.Mode {
	case ModeGrid:
		grid, err := NewGridGenerator(cfg.Side, cfg.Rate)
		if err != nil {
			return nil, err
		}
		g = grid
	case ModeStroke:
		width := cfg.StrokeWidth
		if width == 0 {
			width = DefaultStrokeWidth
		}
		bound := cfg.StrokeBound
		switch {
		case bound == 0:
			bound = LegacyCanvasBound
		case bound == BoundToImage:
			bound = float64(cfg.Side)
		}
		stroke, err := NewStrokeGenerator(cfg.Side, width, NewStrokePath(bound))
		if err != nil {
			return nil, err
		}
		g = stroke
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, cfg.Mode)
	}

	if cfg.IncludeBatch {
		g = Batched(g)
	}
	return g, nil
}

// StrokePathOf returns the stroke accumulator behind g, or nil when g is not
// a stroke generator.
func StrokePathOf(g Generator) *StrokePath {
	switch v := g.(type) {
	case *StrokeGenerator:
		return v.Path()
	case *batched:
		return StrokePathOf(v.Generator)
	default:
		return nil
	}
}

// Batched wraps g so every mask carries a leading batch axis of size 1.
func Batched(g Generator) Generator {
	return &batched{Generator: g}
}

type batched struct {
	Generator
}

func (b *batched) Generate() (*tensor.Tensor, error) {
	m, err := b.Generator.Generate()
	if err != nil {
		return nil, err
	}
	return m.Unsqueeze(), nil
}
