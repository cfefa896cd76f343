// Package coord holds the integer grid primitives shared by the tile map,
// the pathfinder and the world.
package coord

import "fmt"

// Cell is an integer grid coordinate.
type Cell struct {
	X int32 `json:"x" yaml:"x"`
	Y int32 `json:"y" yaml:"y"`
}

// InvalidCell marks "no cell".
var InvalidCell = Cell{X: -1, Y: -1}

func NewCell(x, y int32) Cell { return Cell{X: x, Y: y} }

func (c Cell) IsValid() bool { return c.X >= 0 && c.Y >= 0 }

func (c Cell) Add(dx, dy int32) Cell { return Cell{X: c.X + dx, Y: c.Y + dy} }

// Less orders cells lexicographically by (x, y).
func (c Cell) Less(o Cell) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	return c.Y < o.Y
}

func (c Cell) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

// Chebyshev returns the 8-connected grid distance between two cells.
func Chebyshev(a, b Cell) int32 {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

// Manhattan returns the 4-connected grid distance between two cells.
func Manhattan(a, b Cell) int32 {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Size is a width/height pair in cells.
type Size struct {
	W int32 `json:"w" yaml:"w"`
	H int32 `json:"h" yaml:"h"`
}

func NewSize(w, h int32) Size { return Size{W: w, H: h} }

func (s Size) IsValid() bool { return s.W > 0 && s.H > 0 }

func (s Size) Area() int { return int(s.W) * int(s.H) }

// Contains reports whether c lies inside a grid of this size rooted at (0,0).
func (s Size) Contains(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < s.W && c.Y < s.H
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.W, s.H) }

// CellRange is an inclusive rectangle of cells.
type CellRange struct {
	Start Cell `json:"start"`
	End   Cell `json:"end"`
}

// NewRange returns the inclusive range covering a footprint anchored at base.
func NewRange(base Cell, size Size) CellRange {
	return CellRange{Start: base, End: Cell{X: base.X + size.W - 1, Y: base.Y + size.H - 1}}
}

// SingleCell is the 1x1 range covering c.
func SingleCell(c Cell) CellRange { return CellRange{Start: c, End: c} }

func (r CellRange) Contains(c Cell) bool {
	return c.X >= r.Start.X && c.X <= r.End.X && c.Y >= r.Start.Y && c.Y <= r.End.Y
}

func (r CellRange) Width() int32  { return r.End.X - r.Start.X + 1 }
func (r CellRange) Height() int32 { return r.End.Y - r.Start.Y + 1 }

func (r CellRange) IsValid() bool { return r.End.X >= r.Start.X && r.End.Y >= r.Start.Y }

// Union returns the smallest range covering both ranges.
func (r CellRange) Union(o CellRange) CellRange {
	return CellRange{
		Start: Cell{X: min(r.Start.X, o.Start.X), Y: min(r.Start.Y, o.Start.Y)},
		End:   Cell{X: max(r.End.X, o.End.X), Y: max(r.End.Y, o.End.Y)},
	}
}

// Clamp restricts the range to a grid of the given size.
func (r CellRange) Clamp(s Size) CellRange {
	return CellRange{
		Start: Cell{X: max(r.Start.X, 0), Y: max(r.Start.Y, 0)},
		End:   Cell{X: min(r.End.X, s.W-1), Y: min(r.End.Y, s.H-1)},
	}
}

// DistanceTo returns the Chebyshev distance from c to the nearest cell of r.
func (r CellRange) DistanceTo(c Cell) int32 {
	return max(gap(c.X, r.Start.X, r.End.X), gap(c.Y, r.Start.Y, r.End.Y))
}

// DistanceToRange returns the Chebyshev gap between two ranges; 0 when
// they overlap.
func (r CellRange) DistanceToRange(o CellRange) int32 {
	return max(spanGap(r.Start.X, r.End.X, o.Start.X, o.End.X), spanGap(r.Start.Y, r.End.Y, o.Start.Y, o.End.Y))
}

// ManhattanTo returns the Manhattan distance from c to the nearest cell of r.
func (r CellRange) ManhattanTo(c Cell) int32 {
	return gap(c.X, r.Start.X, r.End.X) + gap(c.Y, r.Start.Y, r.End.Y)
}

// Each visits every cell in x-major order (for x, then y).
func (r CellRange) Each(fn func(Cell)) {
	for x := r.Start.X; x <= r.End.X; x++ {
		for y := r.Start.Y; y <= r.End.Y; y++ {
			fn(Cell{X: x, Y: y})
		}
	}
}

func (r CellRange) String() string { return fmt.Sprintf("[%s..%s]", r.Start, r.End) }

// Vec2 is a float position used for interpolated unit movement.
type Vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func CellCenter(c Cell) Vec2 { return Vec2{X: float32(c.X), Y: float32(c.Y)} }

// Lerp interpolates between a and b by t in [0,1].
func Lerp(a, b Vec2, t float32) Vec2 {
	return Vec2{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

func gap(v, lo, hi int32) int32 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	}
	return 0
}

func spanGap(aLo, aHi, bLo, bHi int32) int32 {
	switch {
	case bLo > aHi:
		return bLo - aHi
	case aLo > bHi:
		return aLo - bHi
	}
	return 0
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
