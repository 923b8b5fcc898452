package mask

// LegacyCanvasBound is the vertical coordinate of the drawing canvas edge the
// stroke input has always been clipped to, regardless of the image size.
const LegacyCanvasBound = 250

// BoundToImage makes the stroke bound follow the image side instead of
// LegacyCanvasBound.
const BoundToImage = -1

// Point is a stroke coordinate in image pixels.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// StrokePath accumulates freehand input as a list of sub-paths. A press
// starts a new sub-path and each move extends the current one.
//
// StrokePath is not safe for concurrent use; the session serializes access.
type StrokePath struct {
	bound    float64
	subpaths [][]Point
	elements int
}

// NewStrokePath returns an empty path that rejects points with Y >= bound.
func NewStrokePath(bound float64) *StrokePath {
	return &StrokePath{bound: bound}
}

// Bound returns the rejection bound.
func (p *StrokePath) Bound() float64 { return p.bound }

// InBounds reports whether pt would be accepted.
func (p *StrokePath) InBounds(pt Point) bool {
	return pt.Y < p.bound
}

// Press starts a new sub-path at pt. It returns false and leaves the path
// untouched when pt is out of bounds.
func (p *StrokePath) Press(pt Point) bool {
	if !p.InBounds(pt) {
		return false
	}
	p.subpaths = append(p.subpaths, []Point{pt})
	p.elements++
	return true
}

// Move extends the current sub-path to pt. Without a preceding press it
// starts a sub-path at pt rather than drawing a segment in from the
// origin. Out-of-bounds points are ignored.
func (p *StrokePath) Move(pt Point) bool {
	if !p.InBounds(pt) {
		return false
	}
	if len(p.subpaths) == 0 {
		return p.Press(pt)
	}
	last := len(p.subpaths) - 1
	p.subpaths[last] = append(p.subpaths[last], pt)
	p.elements++
	return true
}

// Len returns the number of accepted points.
func (p *StrokePath) Len() int { return p.elements }

// Empty reports whether no point has been accepted since the last reset.
func (p *StrokePath) Empty() bool { return p.elements == 0 }

// Reset clears the path.
func (p *StrokePath) Reset() {
	p.subpaths = nil
	p.elements = 0
}

// SubPaths returns a copy of the accumulated sub-paths.
func (p *StrokePath) SubPaths() [][]Point {
	out := make([][]Point, len(p.subpaths))
	for i, sp := range p.subpaths {
		out[i] = append([]Point(nil), sp...)
	}
	return out
}
