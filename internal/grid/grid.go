package grid

import (
	"iter"

	"github.com/banshee-data/swarm.forage/internal/entity"
)

// Grid is a dense XDim x YDim array of cells, row-major by Y.
type Grid struct {
	XDim, YDim int
	Cells      []Cell // len = XDim * YDim
}

// New returns a grid of empty cells with their locations filled in.
func New(xdim, ydim int) *Grid {
	g := &Grid{XDim: xdim, YDim: ydim, Cells: make([]Cell, xdim*ydim)}
	for y := 0; y < ydim; y++ {
		for x := 0; x < xdim; x++ {
			g.Cells[g.Idx(x, y)].Loc = entity.Coord{X: x, Y: y}
		}
	}
	return g
}

// Helper to index Cells: idx = y*XDim + x
func (g *Grid) Idx(x, y int) int { return y*g.XDim + x }

// Contains reports whether c is inside the grid.
func (g *Grid) Contains(c entity.Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.XDim && c.Y < g.YDim
}

// At returns the cell at c, or nil when c is outside the grid.
func (g *Grid) At(c entity.Coord) *Cell {
	if !g.Contains(c) {
		return nil
	}
	return &g.Cells[g.Idx(c.X, c.Y)]
}

// Bounds is the rectangle covering the whole grid.
func (g *Grid) Bounds() entity.Rect {
	return entity.Rect{Max: entity.Coord{X: g.XDim - 1, Y: g.YDim - 1}}
}

// Window returns the radius-r square around c, clipped to the grid.
func (g *Grid) Window(c entity.Coord, r int) entity.Rect {
	return entity.RectAround(c, r).Clamp(g.XDim, g.YDim)
}

// Each yields every cell inside r (clipped to the grid) in row-major order.
func (g *Grid) Each(r entity.Rect) iter.Seq[*Cell] {
	r = r.Clamp(g.XDim, g.YDim)
	return func(yield func(*Cell) bool) {
		for y := r.Min.Y; y <= r.Max.Y; y++ {
			for x := r.Min.X; x <= r.Max.X; x++ {
				if !yield(&g.Cells[g.Idx(x, y)]) {
					return
				}
			}
		}
	}
}
