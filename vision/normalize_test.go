package vision

import (
	"errors"
	"math"
	"testing"

	"inpaint_backend/tensor"
)

func TestNewCodec_RejectsNonPositiveStdDev(t *testing.T) {
	_, err := NewCodec(DefaultMean, [Channels]float32{0.2, 0, 0.2})
	if !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("NewCodec() error = %v, want ErrInvalidDimensions", err)
	}
}

func TestNormalize_PerChannel(t *testing.T) {
	codec := DefaultCodec()
	x := tensor.Full(tensor.Shape{3, 2, 2}, 0.5)

	got, err := codec.Normalize(x)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	for c := 0; c < Channels; c++ {
		want := (0.5 - DefaultMean[c]) / DefaultStdDev[c]
		for y := 0; y < 2; y++ {
			for xx := 0; xx < 2; xx++ {
				if v := got.At(c, y, xx); v != want {
					t.Errorf("channel %d = %v, want %v", c, v, want)
				}
			}
		}
	}
	if x.At(0, 0, 0) != 0.5 {
		t.Error("Normalize() modified its input")
	}
}

func TestNormalize_Batched(t *testing.T) {
	codec := DefaultCodec()
	x := tensor.Full(tensor.Shape{2, 3, 1, 1}, DefaultMean[1])

	got, err := codec.Normalize(x)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if got.At(0, 1, 0, 0) != 0 || got.At(1, 1, 0, 0) != 0 {
		t.Errorf("green channel of the mean should normalize to 0, got %v and %v",
			got.At(0, 1, 0, 0), got.At(1, 1, 0, 0))
	}
}

func TestNormalize_RejectsBadShape(t *testing.T) {
	codec := DefaultCodec()
	tests := []tensor.Shape{
		{4, 2, 2},
		{2, 2},
		{1, 1, 2, 2},
	}
	for _, shape := range tests {
		if _, err := codec.Normalize(tensor.Zeros(shape)); !errors.Is(err, ErrInvalidDimensions) {
			t.Errorf("Normalize(%v) error = %v, want ErrInvalidDimensions", shape, err)
		}
	}
}

func TestDenormalize_RoundTrip(t *testing.T) {
	codec := DefaultCodec()
	x := ToTensor(createTestImage(16, 16))

	norm, err := codec.Normalize(x)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	back, err := codec.Denormalize(norm)
	if err != nil {
		t.Fatalf("Denormalize() error: %v", err)
	}

	for i, v := range back.Data() {
		if diff := math.Abs(float64(v - x.Data()[i])); diff > 1e-6 {
			t.Fatalf("round trip differs at %d: %v vs %v", i, v, x.Data()[i])
		}
	}
}

func TestDenormalize_Clamps(t *testing.T) {
	codec := DefaultCodec()
	x := tensor.Zeros(tensor.Shape{3, 1, 2})
	x.Set(100, 0, 0, 0)
	x.Set(-100, 0, 0, 1)

	got, err := codec.Denormalize(x)
	if err != nil {
		t.Fatalf("Denormalize() error: %v", err)
	}
	if got.At(0, 0, 0) != 1 {
		t.Errorf("large value = %v, want 1", got.At(0, 0, 0))
	}
	if got.At(0, 0, 1) != 0 {
		t.Errorf("small value = %v, want 0", got.At(0, 0, 1))
	}
}
