package mask

import (
	"errors"
	"testing"

	"inpaint_backend/tensor"
)

// assertBinaryAndChannelEqual checks the two structural mask invariants.
func assertBinaryAndChannelEqual(t *testing.T, m *tensor.Tensor) {
	t.Helper()
	shape := m.Shape()
	if len(shape) != 3 || shape[0] != Channels {
		t.Fatalf("mask shape = %v, want (3, H, W)", shape)
	}
	plane := shape[1] * shape[2]
	data := m.Data()
	for i := 0; i < plane; i++ {
		v := data[i]
		if v != 0 && v != 1 {
			t.Fatalf("mask value %v at %d is not binary", v, i)
		}
		if data[plane+i] != v || data[2*plane+i] != v {
			t.Fatalf("mask channels differ at %d", i)
		}
	}
}

func TestGridGenerator_KnownCount(t *testing.T) {
	tests := []struct {
		side, rate int
	}{
		{8, 1},
		{8, 2},
		{8, 3},
		{8, 4},
		{9, 4},
		{256, 2},
		{256, 7},
		{5, 10},
	}

	for _, tt := range tests {
		g, err := NewGridGenerator(tt.side, tt.rate)
		if err != nil {
			t.Fatalf("NewGridGenerator(%d, %d) error: %v", tt.side, tt.rate, err)
		}
		m, err := g.Generate()
		if err != nil {
			t.Fatalf("Generate() error: %v", err)
		}
		assertBinaryAndChannelEqual(t, m)

		want := KnownPerChannel(tt.side, tt.rate) * Channels
		if got := m.Count(1); got != want {
			t.Errorf("side=%d rate=%d: %d known entries, want %d", tt.side, tt.rate, got, want)
		}
	}
}

func TestGridGenerator_Positions(t *testing.T) {
	g, err := NewGridGenerator(8, 4)
	if err != nil {
		t.Fatalf("NewGridGenerator() error: %v", err)
	}
	m, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	known := map[[2]int]bool{{0, 0}: true, {0, 4}: true, {4, 0}: true, {4, 4}: true}
	for v := 0; v < 8; v++ {
		for h := 0; h < 8; h++ {
			want := float32(0)
			if known[[2]int{v, h}] {
				want = 1
			}
			if got := m.At(0, v, h); got != want {
				t.Errorf("mask[%d][%d] = %v, want %v", v, h, got, want)
			}
		}
	}
}

func TestGridGenerator_RateOneKeepsEverything(t *testing.T) {
	g, _ := NewGridGenerator(6, 1)
	m, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if m.Count(1) != m.Len() {
		t.Errorf("rate 1 mask has %d of %d entries set", m.Count(1), m.Len())
	}
}

func TestGridGenerator_RateLargerThanSide(t *testing.T) {
	g, _ := NewGridGenerator(4, 9)
	m, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if m.At(1, 0, 0) != 1 || m.Count(1) != Channels {
		t.Errorf("expected only (0, 0) known, got %d known entries", m.Count(1))
	}
}

func TestNewGridGenerator_Errors(t *testing.T) {
	if _, err := NewGridGenerator(8, 0); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("rate 0 error = %v, want ErrInvalidRate", err)
	}
	if _, err := NewGridGenerator(0, 2); !errors.Is(err, ErrInvalidSide) {
		t.Errorf("side 0 error = %v, want ErrInvalidSide", err)
	}
}

func TestStrokePath_BoundRejectsPoints(t *testing.T) {
	p := NewStrokePath(LegacyCanvasBound)

	if !p.Press(Point{X: 10, Y: 10}) {
		t.Fatal("Press() inside the bound was rejected")
	}
	before := p.Len()

	for _, pt := range []Point{{X: 10, Y: 250}, {X: 10, Y: 251}, {X: 0, Y: 1000}} {
		if p.Move(pt) {
			t.Errorf("Move(%v) accepted a point at or beyond the bound", pt)
		}
		if p.Press(pt) {
			t.Errorf("Press(%v) accepted a point at or beyond the bound", pt)
		}
		if p.Len() != before {
			t.Errorf("Len() = %d after out-of-bounds input, want %d", p.Len(), before)
		}
	}

	if !p.Move(Point{X: 20, Y: 249.5}) {
		t.Error("Move() just inside the bound was rejected")
	}
	if p.Len() != before+1 {
		t.Errorf("Len() = %d, want %d", p.Len(), before+1)
	}
}

func TestStrokePath_MoveWithoutPressStartsSubPath(t *testing.T) {
	p := NewStrokePath(100)
	p.Move(Point{X: 1, Y: 1})
	p.Move(Point{X: 2, Y: 2})
	p.Press(Point{X: 5, Y: 5})

	sub := p.SubPaths()
	if len(sub) != 2 || len(sub[0]) != 2 || len(sub[1]) != 1 {
		t.Errorf("SubPaths() = %v, want [[2 points] [1 point]]", sub)
	}

	p.Reset()
	if !p.Empty() || p.Len() != 0 || len(p.SubPaths()) != 0 {
		t.Error("Reset() did not clear the path")
	}
}

func TestRasterize_EmptyPathKeepsEverything(t *testing.T) {
	m, err := Rasterize(NewStrokePath(LegacyCanvasBound), 16, DefaultStrokeWidth)
	if err != nil {
		t.Fatalf("Rasterize() error: %v", err)
	}
	if m.Count(1) != m.Len() {
		t.Errorf("empty path masked %d entries", m.Len()-m.Count(1))
	}
}

func TestRasterize_Stroke(t *testing.T) {
	p := NewStrokePath(LegacyCanvasBound)
	p.Press(Point{X: 10, Y: 20})
	p.Move(Point{X: 50, Y: 20})

	m, err := Rasterize(p, 64, DefaultStrokeWidth)
	if err != nil {
		t.Fatalf("Rasterize() error: %v", err)
	}
	assertBinaryAndChannelEqual(t, m)

	if m.At(0, 20, 30) != 0 {
		t.Error("pixel on the stroke should be masked")
	}
	if m.At(0, 17, 30) != 0 || m.At(0, 23, 30) != 0 {
		t.Error("pixels within half the pen width should be masked")
	}
	if m.At(0, 40, 30) != 1 || m.At(0, 2, 30) != 1 {
		t.Error("pixels away from the stroke should be known")
	}
	// Square caps extend the stroke by half the width past each end.
	if m.At(0, 20, 7) != 0 || m.At(0, 20, 53) != 0 {
		t.Error("square cap not applied")
	}
	if m.At(0, 20, 60) != 1 {
		t.Error("pixel beyond the cap should be known")
	}
}

func TestRasterize_Errors(t *testing.T) {
	p := NewStrokePath(LegacyCanvasBound)
	if _, err := Rasterize(p, 0, 12); !errors.Is(err, ErrInvalidSide) {
		t.Errorf("side 0 error = %v", err)
	}
	if _, err := Rasterize(p, 8, 0); !errors.Is(err, ErrInvalidWidth) {
		t.Errorf("width 0 error = %v", err)
	}
}

func TestNew_SelectsVariant(t *testing.T) {
	grid, err := New(Config{Mode: ModeGrid, Side: 8, Rate: 2})
	if err != nil {
		t.Fatalf("New(grid) error: %v", err)
	}
	if grid.Mode() != ModeGrid || StrokePathOf(grid) != nil {
		t.Errorf("New(grid) = %T", grid)
	}

	stroke, err := New(Config{Mode: ModeStroke, Side: 8})
	if err != nil {
		t.Fatalf("New(stroke) error: %v", err)
	}
	path := StrokePathOf(stroke)
	if stroke.Mode() != ModeStroke || path == nil {
		t.Fatalf("New(stroke) = %T", stroke)
	}
	if path.Bound() != LegacyCanvasBound {
		t.Errorf("default bound = %v, want %d", path.Bound(), LegacyCanvasBound)
	}

	bounded, _ := New(Config{Mode: ModeStroke, Side: 64, StrokeBound: BoundToImage})
	if got := StrokePathOf(bounded).Bound(); got != 64 {
		t.Errorf("image bound = %v, want 64", got)
	}

	if _, err := New(Config{Mode: Mode(7), Side: 8}); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("New(unknown) error = %v", err)
	}
}

func TestNew_IncludeBatch(t *testing.T) {
	g, err := New(Config{Mode: ModeStroke, Side: 4, IncludeBatch: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if StrokePathOf(g) == nil {
		t.Error("StrokePathOf() lost the path behind the batch adapter")
	}
	m, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !m.Shape().Equal(tensor.Shape{1, 3, 4, 4}) {
		t.Errorf("batched mask shape = %v, want (1, 3, 4, 4)", m.Shape())
	}
}
