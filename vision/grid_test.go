package vision

import (
	"errors"
	"testing"

	"inpaint_backend/tensor"
)

func TestMakeGrid_SingleImage(t *testing.T) {
	img := ToTensor(createTestImage(4, 4))

	grid, err := MakeGrid([]*tensor.Tensor{img}, DefaultGridRow, DefaultGridPadding, 0)
	if err != nil {
		t.Fatalf("MakeGrid() error: %v", err)
	}
	if !grid.Shape().Equal(img.Shape()) {
		t.Fatalf("MakeGrid() shape = %v, want %v", grid.Shape(), img.Shape())
	}
	for i, v := range grid.Data() {
		if v != img.Data()[i] {
			t.Fatalf("MakeGrid() single image differs at %d", i)
		}
	}
}

func TestMakeGrid_Layout(t *testing.T) {
	a := tensor.Full(tensor.Shape{3, 2, 2}, 0.25)
	b := tensor.Full(tensor.Shape{3, 2, 2}, 0.75)
	c := tensor.Full(tensor.Shape{3, 2, 2}, 1)

	grid, err := MakeGrid([]*tensor.Tensor{a, b, c}, 2, 1, 0)
	if err != nil {
		t.Fatalf("MakeGrid() error: %v", err)
	}

	// Two columns and two rows: (2+1)*2+1 = 7 in each direction.
	if !grid.Shape().Equal(tensor.Shape{3, 7, 7}) {
		t.Fatalf("MakeGrid() shape = %v, want (3, 7, 7)", grid.Shape())
	}

	checks := []struct {
		y, x int
		want float32
	}{
		{0, 0, 0},
		{1, 1, 0.25},
		{2, 2, 0.25},
		{1, 4, 0.75},
		{4, 1, 1},
		{4, 4, 0},
		{3, 1, 0},
	}
	for _, c := range checks {
		for ch := 0; ch < Channels; ch++ {
			if got := grid.At(ch, c.y, c.x); got != c.want {
				t.Errorf("grid[%d][%d][%d] = %v, want %v", ch, c.y, c.x, got, c.want)
			}
		}
	}
}

func TestMakeGrid_Errors(t *testing.T) {
	a := tensor.Zeros(tensor.Shape{3, 2, 2})
	b := tensor.Zeros(tensor.Shape{3, 4, 4})

	if _, err := MakeGrid(nil, 8, 2, 0); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("MakeGrid(nil) error = %v", err)
	}
	if _, err := MakeGrid([]*tensor.Tensor{a, b}, 8, 2, 0); !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("MakeGrid(mixed) error = %v, want ErrShapeMismatch", err)
	}
	if _, err := MakeGrid([]*tensor.Tensor{a}, 0, 2, 0); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("MakeGrid(nrow=0) error = %v", err)
	}
}
