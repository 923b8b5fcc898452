package pconv

import (
	"fmt"
	"sort"
	"strings"

	"inpaint_backend/tensor"
)

// Model is an image-to-image inpainting network. Forward receives a batch of
// one masked image and its mask, both (1, C, H, W), and returns a full
// (1, C, H, W) prediction. Forward must not modify its inputs.
type Model interface {
	Architecture() Architecture
	Forward(masked, mask *tensor.Tensor) (*tensor.Tensor, error)
}

// Architecture describes the parameters and input a Model expects.
type Architecture struct {
	// Name identifies the architecture in bundle metadata.
	Name string

	// Channels is the number of image channels.
	Channels int

	// Side is the required square input side. Zero accepts any side.
	Side int

	// Params maps each parameter name under the model entry to its shape.
	Params map[string]tensor.Shape
}

// CheckInput returns ErrShapeMismatch unless masked and mask are both
// (C, H, W) with H == W and match the architecture.
func (a Architecture) CheckInput(masked, mask *tensor.Tensor) error {
	shape := masked.Shape()
	if len(shape) != 3 {
		return fmt.Errorf("%w: want (C, H, W) image, got %v", ErrShapeMismatch, shape)
	}
	if !mask.Shape().Equal(shape) {
		return fmt.Errorf("%w: mask %v vs image %v", ErrShapeMismatch, mask.Shape(), shape)
	}
	if shape[0] != a.Channels {
		return fmt.Errorf("%w: %s expects %d channels, got %v", ErrShapeMismatch, a.Name, a.Channels, shape)
	}
	if shape[1] != shape[2] {
		return fmt.Errorf("%w: image is not square: %v", ErrShapeMismatch, shape)
	}
	if a.Side != 0 && shape[1] != a.Side {
		return fmt.Errorf("%w: %s expects side %d, got %v", ErrShapeMismatch, a.Name, a.Side, shape)
	}
	return nil
}

// CheckParams verifies params holds exactly the architecture's parameters
// with the declared shapes. Every problem is reported in one error.
func (a Architecture) CheckParams(params map[string]*tensor.Tensor) error {
	var problems []string
	for name, want := range a.Params {
		t, ok := params[name]
		if !ok {
			problems = append(problems, "missing "+name)
			continue
		}
		if !t.Shape().Equal(want) {
			problems = append(problems, fmt.Sprintf("%s has shape %v, want %v", name, t.Shape(), want))
		}
	}
	for name := range params {
		if _, ok := a.Params[name]; !ok {
			problems = append(problems, "unexpected "+name)
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s: %s", ErrBundleMismatch, a.Name, strings.Join(problems, "; "))
	}
	return nil
}

// Builder constructs a Model from checked parameters.
type Builder func(params map[string]*tensor.Tensor) (Model, error)

type registration struct {
	arch  Architecture
	build Builder
}

var registry = map[string]registration{}

// Register makes an architecture loadable by name. It is meant to be called
// from init functions and panics on duplicates.
func Register(arch Architecture, build Builder) {
	if _, dup := registry[arch.Name]; dup {
		panic("pconv: duplicate architecture " + arch.Name)
	}
	registry[arch.Name] = registration{arch: arch, build: build}
}

// Architectures returns the registered architecture names, sorted.
func Architectures() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewModel checks the bundle against its declared architecture (the
// reference PartialConvFill when the metadata names none) and builds the
// model.
func NewModel(b *Bundle) (Model, error) {
	name := b.Metadata[MetadataArchitecture]
	if name == "" {
		name = PartialConvFillName
	}
	reg, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownArchitecture, name, strings.Join(Architectures(), ", "))
	}

	params, err := b.ModelParams()
	if err != nil {
		return nil, err
	}
	if err := reg.arch.CheckParams(params); err != nil {
		return nil, err
	}
	return reg.build(params)
}

// LoadModel reads the bundle at path and builds its model.
func LoadModel(path string) (Model, error) {
	b, err := LoadBundle(path)
	if err != nil {
		return nil, err
	}
	m, err := NewModel(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
