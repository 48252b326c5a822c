// Package cluster groups free blocks into spatial clusters with DBSCAN so
// the dynamic cache manager can find places where blocks have piled up.
package cluster

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/swarm.forage/internal/entity"
)

// Params configures DBSCAN.
type Params struct {
	Eps    float64 // neighbourhood radius in cells
	MinPts int     // neighbours (including the point itself) needed for a core point
}

// SpatialIndex buckets points into square cells of side CellSize so that
// neighbourhood queries only look at the 3x3 cells around a point.
type SpatialIndex struct {
	CellSize float64
	Grid     map[int64][]int // cell id → point indices
}

// NewSpatialIndex creates a spatial index with the specified cell size.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{
		CellSize: cellSize,
		Grid:     make(map[int64][]int),
	}
}

// Build indexes points.
func (si *SpatialIndex) Build(points []r2.Vec) {
	si.Grid = make(map[int64][]int, len(points))
	for i, p := range points {
		id := cellID(si.cell(p.X), si.cell(p.Y))
		si.Grid[id] = append(si.Grid[id], i)
	}
}

func (si *SpatialIndex) cell(v float64) int64 {
	return int64(math.Floor(v / si.CellSize))
}

// cellID pairs two signed cell coordinates into one key: zigzag to make
// them non-negative, then Szudzik's pairing.
func cellID(x, y int64) int64 {
	a, b := zigzag(x), zigzag(y)
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

func zigzag(v int64) int64 {
	if v >= 0 {
		return 2 * v
	}
	return -2*v - 1
}

// RegionQuery returns indices of all points within eps of points[idx],
// including idx itself.
func (si *SpatialIndex) RegionQuery(points []r2.Vec, idx int, eps float64) []int {
	p := points[idx]
	eps2 := eps * eps
	cx, cy := si.cell(p.X), si.cell(p.Y)

	var out []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, j := range si.Grid[cellID(cx+dx, cy+dy)] {
				d := r2.Sub(points[j], p)
				if d.X*d.X+d.Y*d.Y <= eps2 {
					out = append(out, j)
				}
			}
		}
	}
	return out
}

// Cluster is a group of blocks.
type Cluster struct {
	ID       int
	Blocks   []*entity.Block
	Centroid r2.Vec
	Bounds   entity.Rect
}

// Center is the cell containing the centroid.
func (c Cluster) Center() entity.Coord {
	return entity.Coord{X: int(math.Floor(c.Centroid.X)), Y: int(math.Floor(c.Centroid.Y))}
}

// Blocks clusters blocks by location. Noise points are dropped; clusters are
// returned in discovery order, which follows the input order.
func Blocks(blocks []*entity.Block, p Params) []Cluster {
	if len(blocks) == 0 || p.Eps <= 0 {
		return nil
	}
	points := make([]r2.Vec, len(blocks))
	for i, b := range blocks {
		points[i] = b.Loc.Vec()
	}

	labels := make([]int, len(points)) // 0=unvisited, -1=noise, >0=cluster id
	si := NewSpatialIndex(p.Eps)
	si.Build(points)

	id := 0
	for i := range points {
		if labels[i] != 0 {
			continue
		}
		neighbors := si.RegionQuery(points, i, p.Eps)
		if len(neighbors) < p.MinPts {
			labels[i] = -1
			continue
		}
		id++
		expand(points, si, labels, i, neighbors, id, p)
	}
	return build(blocks, points, labels, id)
}

func expand(points []r2.Vec, si *SpatialIndex, labels []int, seed int, neighbors []int, id int, p Params) {
	labels[seed] = id
	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]
		if labels[idx] == -1 {
			labels[idx] = id // noise becomes border point
		}
		if labels[idx] != 0 {
			continue
		}
		labels[idx] = id
		if more := si.RegionQuery(points, idx, p.Eps); len(more) >= p.MinPts {
			neighbors = append(neighbors, more...)
		}
	}
}

func build(blocks []*entity.Block, points []r2.Vec, labels []int, maxID int) []Cluster {
	out := make([]Cluster, 0, maxID)
	for id := 1; id <= maxID; id++ {
		c := Cluster{ID: id}
		var sum r2.Vec
		for i, l := range labels {
			if l != id {
				continue
			}
			b := blocks[i]
			if len(c.Blocks) == 0 {
				c.Bounds = entity.Rect{Min: b.Loc, Max: b.Loc}
			}
			c.Blocks = append(c.Blocks, b)
			sum = r2.Add(sum, points[i])
			c.Bounds.Min.X = min(c.Bounds.Min.X, b.Loc.X)
			c.Bounds.Min.Y = min(c.Bounds.Min.Y, b.Loc.Y)
			c.Bounds.Max.X = max(c.Bounds.Max.X, b.Loc.X)
			c.Bounds.Max.Y = max(c.Bounds.Max.Y, b.Loc.Y)
		}
		if len(c.Blocks) == 0 {
			continue
		}
		c.Centroid = r2.Scale(1/float64(len(c.Blocks)), sum)
		out = append(out, c)
	}
	return out
}

// AtLeast keeps clusters with at least n blocks.
func AtLeast(cs []Cluster, n int) []Cluster {
	var out []Cluster
	for _, c := range cs {
		if len(c.Blocks) >= n {
			out = append(out, c)
		}
	}
	return out
}
