package tensor

import "fmt"

// SameShape returns ErrShapeMismatch unless a and b have equal shapes.
func SameShape(a, b *Tensor) error {
	if !a.shape.Equal(b.shape) {
		return fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, a.shape, b.shape)
	}
	return nil
}

// Mul returns the elementwise product of two tensors of equal shape.
func Mul(a, b *Tensor) (*Tensor, error) {
	if err := SameShape(a, b); err != nil {
		return nil, err
	}
	out := make([]float32, len(a.data))
	for i := range out {
		out[i] = a.data[i] * b.data[i]
	}
	return &Tensor{shape: a.shape.clone(), data: out}, nil
}

// Unsqueeze returns a view with a leading axis of size 1. The data is shared.
func (t *Tensor) Unsqueeze() *Tensor {
	shape := make(Shape, 0, len(t.shape)+1)
	shape = append(shape, 1)
	shape = append(shape, t.shape...)
	return &Tensor{shape: shape, data: t.data}
}

// Squeeze drops a leading axis of size 1. The data is shared.
func (t *Tensor) Squeeze() (*Tensor, error) {
	if len(t.shape) < 2 || t.shape[0] != 1 {
		return nil, fmt.Errorf("%w: cannot squeeze leading axis of %v", ErrInvalidShape, t.shape)
	}
	return &Tensor{shape: t.shape[1:].clone(), data: t.data}, nil
}

// Repeat tiles the tensor n times along its first axis, like
// torch.Tensor.repeat(n, 1, ...). A (1, H, W) plane becomes (n, H, W).
func (t *Tensor) Repeat(n int) (*Tensor, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: repeat count %d", ErrInvalidShape, n)
	}
	shape := t.shape.clone()
	shape[0] *= n
	out := make([]float32, 0, len(t.data)*n)
	for i := 0; i < n; i++ {
		out = append(out, t.data...)
	}
	return &Tensor{shape: shape, data: out}, nil
}
