package selection

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// CellShift is log2 of the number of blocks spanned by one cell.
const CellShift = 4

// MaxRadius is the largest supported radius. Its cell count fits in an
// int64.
const MaxRadius = 1<<30 - 1

// maxSkipDiameter is the largest diameter whose square fits in an int64.
const maxSkipDiameter = 3037000499

// Common errors returned when constructing a Selection
var (
	ErrNegativeRadius = errors.New("radius must not be negative")
	ErrRadiusTooLarge = errors.New("radius is too large")
	ErrNegativeOffset = errors.New("offset must not be negative")
)

// Coordinate identifies a single cell.
type Coordinate struct {
	X int64 `json:"x" yaml:"x"`
	Z int64 `json:"z" yaml:"z"`
}

// String renders the coordinate as "x, z".
func (c Coordinate) String() string {
	return fmt.Sprintf("%d, %d", c.X, c.Z)
}

// Total returns the number of cells in the square of the given radius.
// Radii above MaxRadius are treated as MaxRadius.
func Total(radius int) int64 {
	if radius < 0 {
		return 0
	}
	radius = min(radius, MaxRadius)
	side := 2*int64(radius) + 1
	return side * side
}

// SkipCount converts a linear block distance into the number of leading
// cells of the spiral that it covers. The distance spans a diameter of
// distance>>(CellShift-1) cells and the first d*d positions of the spiral
// always form a d by d square, so the result lines up with Total.
// Distances too large to count saturate at math.MaxInt64.
func SkipCount(distance int64) int64 {
	if distance <= 0 {
		return 0
	}
	diameter := distance >> (CellShift - 1)
	if diameter > maxSkipDiameter {
		return math.MaxInt64
	}
	return diameter * diameter
}

// Spiral returns the position, relative to the center, of the cell at
// the given offset. Offset 0 is the center; the walk then moves +X, +Z,
// -X, -Z with leg lengths 1, 1, 2, 2, 3, 3, ...
func Spiral(offset int64) Coordinate {
	n := offset + 1
	if n <= 1 {
		return Coordinate{}
	}

	s := isqrt(n)
	if s*s < n {
		s++
	}
	k := s / 2

	// m is the 1-based index of the last cell of ring k, which sits at (k, -k)
	t := 2*k + 1
	m := t * t
	t--

	if n >= m-t {
		return Coordinate{X: k - (m - n), Z: -k}
	}
	m -= t
	if n >= m-t {
		return Coordinate{X: -k, Z: -k + (m - n)}
	}
	m -= t
	if n >= m-t {
		return Coordinate{X: -k + (m - n), Z: k}
	}
	return Coordinate{X: k, Z: k - (m - n - t)}
}

// isqrt returns floor(sqrt(n)) for n >= 0.
func isqrt(n int64) int64 {
	r := int64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}

// Selection is a lazy enumerator over the cells within radius of center.
//
// Next and Skip must only be called by the goroutine that owns the
// Selection. Offset, Remaining and Progress may be read from anywhere.
type Selection struct {
	center Coordinate
	radius int
	total  int64
	offset atomic.Int64
}

// New creates a Selection positioned at offset. Offsets past the end are
// clamped to the total cell count.
func New(center Coordinate, radius int, offset int64) (*Selection, error) {
	if radius < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeRadius, radius)
	}
	if radius > MaxRadius {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrRadiusTooLarge, radius, MaxRadius)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeOffset, offset)
	}

	s := &Selection{
		center: center,
		radius: radius,
		total:  Total(radius),
	}
	s.offset.Store(min(offset, s.total))
	return s, nil
}

// Center returns the center cell.
func (s *Selection) Center() Coordinate {
	return s.center
}

// Radius returns the radius in cells.
func (s *Selection) Radius() int {
	return s.radius
}

// Total returns the number of cells in the selection.
func (s *Selection) Total() int64 {
	return s.total
}

// Offset returns the number of cells already produced or skipped.
func (s *Selection) Offset() int64 {
	return s.offset.Load()
}

// Remaining returns the number of cells not yet produced.
func (s *Selection) Remaining() int64 {
	return s.total - s.offset.Load()
}

// Progress returns the completed share of the selection as a percentage.
func (s *Selection) Progress() float64 {
	return float64(s.offset.Load()) * 100 / float64(s.total)
}

// At returns the absolute cell at the given offset.
func (s *Selection) At(offset int64) Coordinate {
	rel := Spiral(offset)
	return Coordinate{X: s.center.X + rel.X, Z: s.center.Z + rel.Z}
}

// Next returns the cell at the current offset and advances by one. The
// second result is false once the selection is exhausted.
func (s *Selection) Next() (Coordinate, bool) {
	i := s.offset.Load()
	if i >= s.total {
		return Coordinate{}, false
	}
	s.offset.Store(i + 1)
	return s.At(i), true
}

// Skip advances the offset by n without producing cells, clamped to the
// total. Non-positive n leaves the offset unchanged. It returns the new
// offset.
func (s *Selection) Skip(n int64) int64 {
	i := s.offset.Load()
	if n <= 0 {
		return i
	}
	if n >= s.total-i {
		i = s.total
	} else {
		i += n
	}
	s.offset.Store(i)
	return i
}
