// Package tensor provides the small dense float32 tensor used by the
// inpainting pipeline. Data is row-major with no striding; images use CHW
// order and batched images NCHW.
package tensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Tensor errors
var (
	ErrInvalidShape  = errors.New("tensor: invalid shape")
	ErrDataLength    = errors.New("tensor: data length does not match shape")
	ErrShapeMismatch = errors.New("tensor: shape mismatch")
	ErrIndexRange    = errors.New("tensor: index out of range")
)

// Shape lists the size of each axis, outermost first.
type Shape []int

// NumElements returns the product of all dimensions.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether both shapes have the same rank and dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Validate checks the shape is non-empty with positive dimensions.
func (s Shape) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: rank 0", ErrInvalidShape)
	}
	for i, d := range s {
		if d <= 0 {
			return fmt.Errorf("%w: dimension %d must be > 0, got %d", ErrInvalidShape, i, d)
		}
	}
	return nil
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (s Shape) clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// Tensor is a dense float32 tensor.
type Tensor struct {
	shape Shape
	data  []float32
}

// New wraps data in a tensor of the given shape. The slice is not copied.
func New(shape Shape, data []float32) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("%w: got %d elements, want %d for shape %v",
			ErrDataLength, len(data), shape.NumElements(), shape)
	}
	return &Tensor{shape: shape.clone(), data: data}, nil
}

// Zeros returns a zero-filled tensor. It panics on an invalid shape, which
// is always a programming error at the call sites in this module.
func Zeros(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(err)
	}
	return &Tensor{shape: shape.clone(), data: make([]float32, shape.NumElements())}
}

// Full returns a tensor with every element set to v.
func Full(shape Shape, v float32) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.clone()
}

// Data returns the backing slice. Writes are visible to the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Rank returns the number of axes.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.clone(), data: data}
}

// Offset converts a multi-dimensional index into a flat offset.
func (t *Tensor) Offset(idx ...int) (int, error) {
	if len(idx) != len(t.shape) {
		return 0, fmt.Errorf("%w: got %d indices for rank %d", ErrIndexRange, len(idx), len(t.shape))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			return 0, fmt.Errorf("%w: index %d on axis %d of size %d", ErrIndexRange, v, i, t.shape[i])
		}
		off = off*t.shape[i] + v
	}
	return off, nil
}

// At returns the element at idx. It panics on a bad index.
func (t *Tensor) At(idx ...int) float32 {
	off, err := t.Offset(idx...)
	if err != nil {
		panic(err)
	}
	return t.data[off]
}

// Set stores v at idx. It panics on a bad index.
func (t *Tensor) Set(v float32, idx ...int) {
	off, err := t.Offset(idx...)
	if err != nil {
		panic(err)
	}
	t.data[off] = v
}

// Count returns how many elements equal v exactly.
func (t *Tensor) Count(v float32) int {
	n := 0
	for _, x := range t.data {
		if x == v {
			n++
		}
	}
	return n
}
