package mask

import (
	"fmt"

	"inpaint_backend/tensor"
)

// GridGenerator keeps pixel (v, h) for every v, h that is a multiple of the
// stride rate and masks everything else.
type GridGenerator struct {
	side int
	rate int
}

// NewGridGenerator validates side and rate. A rate of 1 keeps every pixel; a
// rate larger than side keeps only (0, 0).
func NewGridGenerator(side, rate int) (*GridGenerator, error) {
	if side <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, side)
	}
	if rate < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRate, rate)
	}
	return &GridGenerator{side: side, rate: rate}, nil
}

// Mode returns ModeGrid.
func (g *GridGenerator) Mode() Mode { return ModeGrid }

// Rate returns the stride.
func (g *GridGenerator) Rate() int { return g.rate }

// Generate returns a fresh (3, side, side) mask.
func (g *GridGenerator) Generate() (*tensor.Tensor, error) {
	plane := tensor.Zeros(tensor.Shape{1, g.side, g.side})
	data := plane.Data()
	for v := 0; v < g.side; v += g.rate {
		for h := 0; h < g.side; h += g.rate {
			data[v*g.side+h] = 1
		}
	}
	return plane.Repeat(Channels)
}

// KnownPerChannel returns how many pixels a grid mask keeps in each channel:
// ceil(side/rate) squared.
func KnownPerChannel(side, rate int) int {
	n := (side + rate - 1) / rate
	return n * n
}
