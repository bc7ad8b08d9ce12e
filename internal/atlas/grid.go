// Package atlas provides the slice grid layout and the packed reflection atlas image.
package atlas

import (
	"errors"
	"fmt"
)

// Level bounds for both layout exponents.
const (
	MinLevel = 1
	MaxLevel = 10
)

// ImportLimit is the largest atlas axis most engines import without downscaling.
const ImportLimit = 8192

// ErrLevelOutOfRange is returned when a layout level is outside [MinLevel, MaxLevel].
var ErrLevelOutOfRange = errors.New("atlas level out of range")

// Levels are the exponents that describe an atlas layout.
// Exponents rather than raw counts keep every derived size a power of two.
type Levels struct {
	SliceCountLevel int // 4^level slices, 2^level per axis
	ResolutionLevel int // 2^level texels per slice axis
}

// Grid is the square slice grid of an atlas. One cell maps to one sample
// by linear index i = y*SlicesPerAxis + x.
type Grid struct {
	SliceCount      int // Total number of slices (= samples)
	SlicesPerAxis   int // Slices along one atlas axis
	SliceResolution int // Texels along one slice axis
	AxisSize        int // Texels along one atlas axis
}

// Rect is a pixel rectangle inside the atlas.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// NewGrid validates the levels and derives the grid layout.
func NewGrid(l Levels) (Grid, error) {
	if l.SliceCountLevel < MinLevel || l.SliceCountLevel > MaxLevel {
		return Grid{}, fmt.Errorf("%w: slice count level %d not in [%d, %d]",
			ErrLevelOutOfRange, l.SliceCountLevel, MinLevel, MaxLevel)
	}
	if l.ResolutionLevel < MinLevel || l.ResolutionLevel > MaxLevel {
		return Grid{}, fmt.Errorf("%w: resolution level %d not in [%d, %d]",
			ErrLevelOutOfRange, l.ResolutionLevel, MinLevel, MaxLevel)
	}

	// 4^level slices form a 2^level square.
	perAxis := 1 << l.SliceCountLevel
	res := 1 << l.ResolutionLevel

	return Grid{
		SliceCount:      perAxis * perAxis,
		SlicesPerAxis:   perAxis,
		SliceResolution: res,
		AxisSize:        perAxis * res,
	}, nil
}

// IndexToCoordinate maps a linear sample index to its grid cell.
func (g Grid) IndexToCoordinate(index int) (x, y int) {
	return index % g.SlicesPerAxis, index / g.SlicesPerAxis
}

// CoordinateToIndex maps a grid cell to its linear sample index.
// The coordinate is not validated; check InBounds first for neighbour offsets.
func (g Grid) CoordinateToIndex(x, y int) int {
	return y*g.SlicesPerAxis + x
}

// InBounds reports whether (x, y) is a cell of the grid.
func (g Grid) InBounds(x, y int) bool {
	return 0 <= x && x < g.SlicesPerAxis && 0 <= y && y < g.SlicesPerAxis
}

// SliceRect returns the pixel rectangle of the slice for index.
func (g Grid) SliceRect(index int) Rect {
	x, y := g.IndexToCoordinate(index)
	return Rect{
		X:      x * g.SliceResolution,
		Y:      y * g.SliceResolution,
		Width:  g.SliceResolution,
		Height: g.SliceResolution,
	}
}

// UVRect returns the slice rectangle in normalized atlas coordinates as
// (size, size, offsetX, offsetY), the vertex transform a blit shader expects.
func (g Grid) UVRect(index int) [4]float32 {
	r := g.SliceRect(index)
	axis := float32(g.AxisSize)
	size := float32(g.SliceResolution) / axis
	return [4]float32{size, size, float32(r.X) / axis, float32(r.Y) / axis}
}

// ExceedsImportLimit reports whether the atlas is larger than ImportLimit per axis.
func (g Grid) ExceedsImportLimit() bool {
	return g.AxisSize > ImportLimit
}
