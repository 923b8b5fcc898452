package pconv

import (
	"fmt"

	"inpaint_backend/tensor"
)

// PartialConvFillName is the architecture name of the reference backend.
const PartialConvFillName = "partialconv-fill"

// Parameter names of PartialConvFill under the model entry.
const (
	ParamKernel     = "kernel"
	ParamIterations = "iterations"
)

// DefaultIterations caps the number of fill passes in DefaultBundle.
const DefaultIterations = 64

// DefaultKernel is a 3x3 binomial kernel.
var DefaultKernel = [9]float32{
	1, 2, 1,
	2, 4, 2,
	1, 2, 1,
}

// PartialConvFillArchitecture describes the reference backend.
var PartialConvFillArchitecture = Architecture{
	Name:     PartialConvFillName,
	Channels: 3,
	Params: map[string]tensor.Shape{
		ParamKernel:     {3, 3},
		ParamIterations: {1},
	},
}

func init() {
	Register(PartialConvFillArchitecture, func(params map[string]*tensor.Tensor) (Model, error) {
		return NewPartialConvFill(params)
	})
}

// PartialConvFill fills unknown pixels by repeated partial convolution. In
// every pass an unknown pixel with at least one known neighbour takes the
// mask-weighted average of its 3x3 window and becomes known. Pixels still
// unknown after the last pass are 0, the dataset mean in normalized space.
type PartialConvFill struct {
	kernel     [9]float32
	iterations int
}

// NewPartialConvFill builds the model from checked parameters. Kernel
// weights must be non-negative with a positive sum, and the iteration count
// must be at least 1.
func NewPartialConvFill(params map[string]*tensor.Tensor) (*PartialConvFill, error) {
	if err := PartialConvFillArchitecture.CheckParams(params); err != nil {
		return nil, err
	}

	m := &PartialConvFill{}
	var sum float32
	for i, w := range params[ParamKernel].Data() {
		if w < 0 {
			return nil, fmt.Errorf("%w: negative kernel weight %v", ErrBundleMismatch, w)
		}
		m.kernel[i] = w
		sum += w
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: kernel sums to zero", ErrBundleMismatch)
	}

	m.iterations = int(params[ParamIterations].Data()[0])
	if m.iterations < 1 {
		return nil, fmt.Errorf("%w: iterations must be >= 1, got %d", ErrBundleMismatch, m.iterations)
	}
	return m, nil
}

// Architecture returns PartialConvFillArchitecture.
func (m *PartialConvFill) Architecture() Architecture { return PartialConvFillArchitecture }

// Iterations returns the pass cap.
func (m *PartialConvFill) Iterations() int { return m.iterations }

// Forward fills the masked regions of a (1, C, H, W) batch.
func (m *PartialConvFill) Forward(masked, mask *tensor.Tensor) (*tensor.Tensor, error) {
	shape := masked.Shape()
	if len(shape) != 4 || shape[0] != 1 {
		return nil, fmt.Errorf("%w: want (1, C, H, W), got %v", ErrShapeMismatch, shape)
	}
	if !mask.Shape().Equal(shape) {
		return nil, fmt.Errorf("%w: mask %v vs image %v", ErrShapeMismatch, mask.Shape(), shape)
	}

	channels, h, w := shape[1], shape[2], shape[3]
	plane := h * w
	out := masked.Clone()
	known := mask.Clone()
	src, msk := out.Data(), known.Data()

	for c := 0; c < channels; c++ {
		x := src[c*plane : (c+1)*plane]
		k := msk[c*plane : (c+1)*plane]
		m.fillPlane(x, k, h, w)
	}

	// Anything left unknown has no known pixel within reach.
	for i, v := range msk {
		if v == 0 {
			src[i] = 0
		}
	}
	return out, nil
}

// fillPlane runs the fill passes on one channel in place. x holds image
// values and k the 0/1 mask; both are updated.
func (m *PartialConvFill) fillPlane(x, k []float32, h, w int) {
	var unknown []int
	for i, v := range k {
		if v == 0 {
			unknown = append(unknown, i)
		}
	}

	type update struct {
		idx int
		val float32
	}
	updates := make([]update, 0, len(unknown))

	for pass := 0; pass < m.iterations && len(unknown) > 0; pass++ {
		updates = updates[:0]
		var remaining []int

		for _, idx := range unknown {
			py, px := idx/w, idx%w
			var num, den float32
			for dy := -1; dy <= 1; dy++ {
				y := py + dy
				if y < 0 || y >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					xx := px + dx
					if xx < 0 || xx >= w {
						continue
					}
					q := y*w + xx
					if k[q] == 0 {
						continue
					}
					wt := m.kernel[(dy+1)*3+(dx+1)]
					num += wt * x[q]
					den += wt
				}
			}
			if den > 0 {
				updates = append(updates, update{idx: idx, val: num / den})
			} else {
				remaining = append(remaining, idx)
			}
		}

		if len(updates) == 0 {
			break
		}
		// Apply after the sweep so each pass only sees the previous mask.
		for _, u := range updates {
			x[u.idx] = u.val
			k[u.idx] = 1
		}
		unknown = remaining
	}
}

// DefaultBundle returns a PartialConvFill bundle with DefaultKernel and the
// given iteration cap.
func DefaultBundle(iterations int) (*Bundle, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("%w: iterations must be >= 1, got %d", ErrInvalidParams, iterations)
	}
	kernel, err := tensor.New(tensor.Shape{3, 3}, append([]float32(nil), DefaultKernel[:]...))
	if err != nil {
		return nil, err
	}
	b := NewBundle()
	b.Metadata[MetadataArchitecture] = PartialConvFillName
	b.SetModelParam(ParamKernel, kernel)
	b.SetModelParam(ParamIterations, tensor.Full(tensor.Shape{1}, float32(iterations)))
	return b, nil
}
