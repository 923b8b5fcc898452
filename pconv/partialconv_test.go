package pconv

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"inpaint_backend/tensor"
)

func TestNewModel_ChecksArchitecture(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(b *Bundle)
		errType error
		errText string
	}{
		{
			name:   "valid",
			mutate: func(b *Bundle) {},
		},
		{
			name:    "missing param",
			mutate:  func(b *Bundle) { delete(b.Tensors, "model."+ParamIterations) },
			errType: ErrBundleMismatch,
			errText: "missing iterations",
		},
		{
			name:    "unexpected param",
			mutate:  func(b *Bundle) { b.SetModelParam("bias", tensor.Zeros(tensor.Shape{3})) },
			errType: ErrBundleMismatch,
			errText: "unexpected bias",
		},
		{
			name:    "wrong shape",
			mutate:  func(b *Bundle) { b.SetModelParam(ParamKernel, tensor.Zeros(tensor.Shape{5, 5})) },
			errType: ErrBundleMismatch,
			errText: "kernel has shape (5, 5)",
		},
		{
			name:    "unknown architecture",
			mutate:  func(b *Bundle) { b.Metadata[MetadataArchitecture] = "unet-7" },
			errType: ErrUnknownArchitecture,
		},
		{
			name: "negative weight",
			mutate: func(b *Bundle) {
				k := tensor.Full(tensor.Shape{3, 3}, 1)
				k.Set(-1, 0, 0)
				b.SetModelParam(ParamKernel, k)
			},
			errType: ErrBundleMismatch,
		},
		{
			name:    "zero iterations",
			mutate:  func(b *Bundle) { b.SetModelParam(ParamIterations, tensor.Zeros(tensor.Shape{1})) },
			errType: ErrBundleMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mustDefaultBundle(t)
			tt.mutate(b)

			m, err := NewModel(b)
			if tt.errType == nil {
				if err != nil {
					t.Fatalf("NewModel() unexpected error: %v", err)
				}
				if m.Architecture().Name != PartialConvFillName {
					t.Errorf("architecture = %q", m.Architecture().Name)
				}
				return
			}
			if !errors.Is(err, tt.errType) {
				t.Fatalf("NewModel() error = %v, want %v", err, tt.errType)
			}
			if tt.errText != "" && !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("NewModel() error = %q, want it to mention %q", err, tt.errText)
			}
		})
	}
}

func TestNewModel_DefaultsToReferenceBackend(t *testing.T) {
	b := mustDefaultBundle(t)
	delete(b.Metadata, MetadataArchitecture)
	if _, err := NewModel(b); err != nil {
		t.Errorf("NewModel() without metadata error: %v", err)
	}
}

func TestLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irr.safetensors")
	if err := WriteBundle(path, mustDefaultBundle(t)); err != nil {
		t.Fatalf("WriteBundle() error: %v", err)
	}
	m, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel() error: %v", err)
	}
	if pc, ok := m.(*PartialConvFill); !ok || pc.Iterations() != DefaultIterations {
		t.Errorf("LoadModel() = %T", m)
	}
}

func newFill(t *testing.T, iterations int) *PartialConvFill {
	t.Helper()
	b, err := DefaultBundle(iterations)
	if err != nil {
		t.Fatalf("DefaultBundle() error: %v", err)
	}
	params, _ := b.ModelParams()
	m, err := NewPartialConvFill(params)
	if err != nil {
		t.Fatalf("NewPartialConvFill() error: %v", err)
	}
	return m
}

func TestPartialConvFill_FillsFromNeighbours(t *testing.T) {
	m := newFill(t, DefaultIterations)

	img := tensor.Full(tensor.Shape{1, 3, 5, 5}, 0.5)
	mask := tensor.Full(tensor.Shape{1, 3, 5, 5}, 1)
	for c := 0; c < 3; c++ {
		img.Set(0, 0, c, 2, 2)
		mask.Set(0, 0, c, 2, 2)
	}

	out, err := m.Forward(img, mask)
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	for c := 0; c < 3; c++ {
		if got := out.At(0, c, 2, 2); math.Abs(float64(got-0.5)) > 1e-6 {
			t.Errorf("filled value = %v, want 0.5", got)
		}
	}
	if img.At(0, 0, 2, 2) != 0 || mask.At(0, 0, 2, 2) != 0 {
		t.Error("Forward() modified its inputs")
	}
}

func TestPartialConvFill_PropagatesAcrossPasses(t *testing.T) {
	img := tensor.Zeros(tensor.Shape{1, 3, 1, 6})
	mask := tensor.Zeros(tensor.Shape{1, 3, 1, 6})
	for c := 0; c < 3; c++ {
		img.Set(0.8, 0, c, 0, 0)
		mask.Set(1, 0, c, 0, 0)
	}

	// Two passes reach two pixels to the right of the known one.
	out, err := newFill(t, 2).Forward(img, mask)
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	for x := 0; x < 3; x++ {
		if got := out.At(0, 1, 0, x); math.Abs(float64(got-0.8)) > 1e-6 {
			t.Errorf("pixel %d = %v, want 0.8", x, got)
		}
	}
	for x := 3; x < 6; x++ {
		if got := out.At(0, 1, 0, x); got != 0 {
			t.Errorf("unreached pixel %d = %v, want 0", x, got)
		}
	}

	out, err = newFill(t, 10).Forward(img, mask)
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	if got := out.At(0, 2, 0, 5); math.Abs(float64(got-0.8)) > 1e-6 {
		t.Errorf("far pixel with enough passes = %v, want 0.8", got)
	}
}

func TestPartialConvFill_AllUnknownIsZero(t *testing.T) {
	img := tensor.Full(tensor.Shape{1, 3, 4, 4}, 0.3)
	mask := tensor.Zeros(tensor.Shape{1, 3, 4, 4})

	out, err := newFill(t, 4).Forward(img, mask)
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	if out.Count(0) != out.Len() {
		t.Errorf("Forward() with no known pixels produced non-zero output")
	}
}

func TestPartialConvFill_ShapeErrors(t *testing.T) {
	m := newFill(t, 1)
	img := tensor.Zeros(tensor.Shape{3, 4, 4})
	if _, err := m.Forward(img, img); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("unbatched Forward() error = %v", err)
	}
	a := tensor.Zeros(tensor.Shape{1, 3, 4, 4})
	b := tensor.Zeros(tensor.Shape{1, 3, 2, 2})
	if _, err := m.Forward(a, b); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("mismatched Forward() error = %v", err)
	}
}
