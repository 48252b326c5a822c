package entity

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// Coord is a discrete arena cell coordinate.
type Coord struct {
	X, Y int
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

// Vec returns the continuous position of the cell centre.
func (c Coord) Vec() r2.Vec {
	return r2.Vec{X: float64(c.X) + 0.5, Y: float64(c.Y) + 0.5}
}

// Dist is the Euclidean distance between two cell centres.
func Dist(a, b Coord) float64 {
	return r2.Norm(r2.Sub(a.Vec(), b.Vec()))
}

// Chebyshev is the king-move distance between two cells, i.e. the number of
// single-cell steps needed to get from a to b.
func Chebyshev(a, b Coord) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return max(dx, dy)
}

// StepToward returns the cell one king-move from c in the direction of dst.
func StepToward(c, dst Coord) Coord {
	return Coord{X: c.X + sign(dst.X-c.X), Y: c.Y + sign(dst.Y-c.Y)}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Rect is an axis-aligned block of cells. Both corners are inclusive.
type Rect struct {
	Min, Max Coord
}

// RectAround returns the square of the given radius centred on c.
func RectAround(c Coord, radius int) Rect {
	return Rect{
		Min: Coord{X: c.X - radius, Y: c.Y - radius},
		Max: Coord{X: c.X + radius, Y: c.Y + radius},
	}
}

// Contains reports whether c lies inside r.
func (r Rect) Contains(c Coord) bool {
	return c.X >= r.Min.X && c.X <= r.Max.X && c.Y >= r.Min.Y && c.Y <= r.Max.Y
}

// Overlaps reports whether r and o share at least one cell.
func (r Rect) Overlaps(o Rect) bool {
	return r.Min.X <= o.Max.X && o.Min.X <= r.Max.X && r.Min.Y <= o.Max.Y && o.Min.Y <= r.Max.Y
}

// Center returns the (rounded down) centre cell.
func (r Rect) Center() Coord {
	return Coord{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

// Width and Height count cells, not distances.
func (r Rect) Width() int  { return r.Max.X - r.Min.X + 1 }
func (r Rect) Height() int { return r.Max.Y - r.Min.Y + 1 }

// Area is the number of cells in r.
func (r Rect) Area() int { return r.Width() * r.Height() }

// Clamp intersects r with the [0,xdim) x [0,ydim) arena.
func (r Rect) Clamp(xdim, ydim int) Rect {
	return Rect{
		Min: Coord{X: max(r.Min.X, 0), Y: max(r.Min.Y, 0)},
		Max: Coord{X: min(r.Max.X, xdim-1), Y: min(r.Max.Y, ydim-1)},
	}
}

// DistToRect is the distance from c to the closest cell of r (0 inside r).
func DistToRect(c Coord, r Rect) float64 {
	closest := Coord{
		X: min(max(c.X, r.Min.X), r.Max.X),
		Y: min(max(c.Y, r.Min.Y), r.Max.Y),
	}
	return Dist(c, closest)
}
