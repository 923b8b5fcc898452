package vision

import (
	"fmt"

	"inpaint_backend/tensor"
)

// Per-channel statistics the inpainting models were trained with.
var (
	DefaultMean   = [Channels]float32{0.485, 0.456, 0.406}
	DefaultStdDev = [Channels]float32{0.229, 0.224, 0.225}
)

// Codec converts image tensors between pixel space ([0, 1]) and the
// normalized space the network consumes.
type Codec struct {
	mean [Channels]float32
	std  [Channels]float32
}

// NewCodec returns a codec for the given per-channel statistics.
func NewCodec(mean, std [Channels]float32) (*Codec, error) {
	for c, s := range std {
		if s <= 0 {
			return nil, fmt.Errorf("%w: stddev[%d] = %v", ErrInvalidDimensions, c, s)
		}
	}
	return &Codec{mean: mean, std: std}, nil
}

// DefaultCodec returns the codec for DefaultMean and DefaultStdDev.
func DefaultCodec() *Codec {
	return &Codec{mean: DefaultMean, std: DefaultStdDev}
}

// Mean returns the per-channel mean.
func (c *Codec) Mean() [Channels]float32 { return c.mean }

// StdDev returns the per-channel standard deviation.
func (c *Codec) StdDev() [Channels]float32 { return c.std }

// Normalize returns (x - mean) / std per channel. It accepts (3, H, W) and
// (N, 3, H, W) tensors and leaves its input untouched.
func (c *Codec) Normalize(t *tensor.Tensor) (*tensor.Tensor, error) {
	out := t.Clone()
	err := c.apply(out, func(v float32, ch int) float32 {
		return (v - c.mean[ch]) / c.std[ch]
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Denormalize returns x*std + mean per channel, clamped to [0, 1].
func (c *Codec) Denormalize(t *tensor.Tensor) (*tensor.Tensor, error) {
	out := t.Clone()
	err := c.apply(out, func(v float32, ch int) float32 {
		return clamp01(v*c.std[ch] + c.mean[ch])
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Codec) apply(t *tensor.Tensor, fn func(v float32, ch int) float32) error {
	shape := t.Shape()
	var chAxis int
	switch len(shape) {
	case 3:
		chAxis = 0
	case 4:
		chAxis = 1
	default:
		return fmt.Errorf("%w: want (3, H, W) or (N, 3, H, W), got %v", ErrInvalidDimensions, shape)
	}
	if shape[chAxis] != Channels {
		return fmt.Errorf("%w: want %d channels, got %v", ErrInvalidDimensions, Channels, shape)
	}

	plane := shape[len(shape)-2] * shape[len(shape)-1]
	data := t.Data()
	for i, v := range data {
		ch := (i / plane) % Channels
		data[i] = fn(v, ch)
	}
	return nil
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
