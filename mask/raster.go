package mask

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"inpaint_backend/tensor"
)

// DefaultStrokeWidth is the pen width, in pixels, of the drawing tool.
const DefaultStrokeWidth = 12

// coverageThreshold is the 8-bit level below which an antialiased canvas
// pixel counts as painted (at least half covered by the pen). This
// approximates an aliased pen, so edge pixels of diagonal strokes can be
// off by one from a hard-edged rasterizer.
const coverageThreshold = 128

// StrokeGenerator rasterizes a StrokePath into a mask.
type StrokeGenerator struct {
	side  int
	width float64
	path  *StrokePath
}

// NewStrokeGenerator returns a generator drawing path with the given pen
// width onto a side x side canvas.
func NewStrokeGenerator(side int, width float64, path *StrokePath) (*StrokeGenerator, error) {
	if side <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, side)
	}
	if width <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWidth, width)
	}
	if path == nil {
		path = NewStrokePath(LegacyCanvasBound)
	}
	return &StrokeGenerator{side: side, width: width, path: path}, nil
}

// Mode returns ModeStroke.
func (g *StrokeGenerator) Mode() Mode { return ModeStroke }

// Path returns the accumulator the generator rasterizes.
func (g *StrokeGenerator) Path() *StrokePath { return g.path }

// Generate rasterizes the current path. An empty path yields an all-ones
// mask.
func (g *StrokeGenerator) Generate() (*tensor.Tensor, error) {
	return Rasterize(g.path, g.side, g.width)
}

// Rasterize strokes path in black with a square cap and bevel join on a white
// side x side canvas and converts the result to a (3, side, side) mask:
// painted pixels become 0 and the background stays 1.
func Rasterize(path *StrokePath, side int, width float64) (*tensor.Tensor, error) {
	if side <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, side)
	}
	if width <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWidth, width)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, side, side))
	dc := gg.NewContextForRGBA(canvas)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	if !path.Empty() {
		dc.SetRGB(0, 0, 0)
		dc.SetLineWidth(width)
		dc.SetLineCapSquare()
		dc.SetLineJoinBevel()
		for _, sp := range path.SubPaths() {
			dc.MoveTo(sp[0].X, sp[0].Y)
			for _, pt := range sp[1:] {
				dc.LineTo(pt.X, pt.Y)
			}
		}
		dc.Stroke()
	}

	plane := tensor.Zeros(tensor.Shape{1, side, side})
	data := plane.Data()
	for i := range data {
		if canvas.Pix[i*4] >= coverageThreshold {
			data[i] = 1
		}
	}
	return plane.Repeat(Channels)
}
