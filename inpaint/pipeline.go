package inpaint

import (
	"context"
	"fmt"
	"image"

	"inpaint_backend/logging"
	"inpaint_backend/mask"
	"inpaint_backend/tensor"
	"inpaint_backend/vision"
)

// Inferer predicts a full image from a masked one. pconv.Runner satisfies
// it.
type Inferer interface {
	Infer(ctx context.Context, masked, mask *tensor.Tensor) (*tensor.Tensor, error)
}

// Pipeline is one stateless pass from pixel-space image to composited
// output.
type Pipeline struct {
	codec *vision.Codec
	model Inferer
}

// NewPipeline returns a pipeline using codec, or vision.DefaultCodec when
// codec is nil.
func NewPipeline(codec *vision.Codec, model Inferer) *Pipeline {
	if codec == nil {
		codec = vision.DefaultCodec()
	}
	return &Pipeline{codec: codec, model: model}
}

// Result is the output of one pass.
type Result struct {
	// Mask is the (3, H, H) mask the pass used.
	Mask *tensor.Tensor

	// Composite is the denormalized (3, H, H) result in [0, 1].
	Composite *tensor.Tensor

	// Image is Composite laid out as a single-image grid and quantized.
	Image *image.RGBA

	Metrics logging.InpaintMetrics
}

// Run inpaints img, a (3, H, H) pixel-space tensor, with a mask from gen.
func (p *Pipeline) Run(ctx context.Context, img *tensor.Tensor, gen mask.Generator) (*Result, error) {
	timer := logging.StartCycle()

	m, err := gen.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate mask: %w", err)
	}
	if m.Rank() == 4 {
		if m, err = m.Squeeze(); err != nil {
			return nil, fmt.Errorf("generate mask: %w", err)
		}
	}
	timer.Mark(logging.StageMask)

	normalized, err := p.codec.Normalize(img)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	masked, err := tensor.Mul(normalized, m)
	if err != nil {
		return nil, fmt.Errorf("apply mask: %w", err)
	}

	prediction, err := p.model.Infer(ctx, masked, m)
	if err != nil {
		return nil, err
	}
	timer.Mark(logging.StageInference)

	composed, err := Composite(masked, m, prediction)
	if err != nil {
		return nil, err
	}
	pixels, err := p.codec.Denormalize(composed)
	if err != nil {
		return nil, fmt.Errorf("denormalize: %w", err)
	}
	grid, err := vision.MakeGrid([]*tensor.Tensor{pixels}, vision.DefaultGridRow, vision.DefaultGridPadding, 0)
	if err != nil {
		return nil, err
	}
	out, err := vision.ToImage(grid)
	if err != nil {
		return nil, err
	}
	timer.Mark(logging.StageComposite)

	side := m.Shape()[1]
	known := m.Count(1) / mask.Channels
	metrics := logging.InpaintMetrics{
		Mode:          gen.Mode().String(),
		Side:          side,
		KnownPixels:   known,
		UnknownPixels: side*side - known,
	}
	if path := mask.StrokePathOf(gen); path != nil {
		metrics.StrokePoints = path.Len()
	}
	timer.Fill(&metrics)

	return &Result{Mask: m, Composite: pixels, Image: out, Metrics: metrics}, nil
}
