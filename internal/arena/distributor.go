package arena

import (
	"math/rand/v2"

	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/grid"
)

// maxPlaceAttempts bounds random probing before falling back to a scan.
const maxPlaceAttempts = 64

// Distributor places blocks uniformly at random inside rectangular
// clusters.
type Distributor struct {
	rng      *rand.Rand
	clusters []entity.Rect
}

// NewDistributor returns a distributor over clusters seeded with seed.
func NewDistributor(clusters []entity.Rect, seed uint64) *Distributor {
	return &Distributor{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		clusters: clusters,
	}
}

// Place picks an empty cell of g inside one of the clusters for which
// allowed returns true. The caller holds the arena lock.
func (d *Distributor) Place(g *grid.Grid, allowed func(entity.Coord) bool) (entity.Coord, bool) {
	if len(d.clusters) == 0 {
		return entity.Coord{}, false
	}
	ok := func(c entity.Coord) bool {
		cell := g.At(c)
		return cell != nil && cell.IsEmpty() && (allowed == nil || allowed(c))
	}
	for i := 0; i < maxPlaceAttempts; i++ {
		r := d.clusters[d.rng.IntN(len(d.clusters))]
		c := entity.Coord{
			X: r.Min.X + d.rng.IntN(r.Width()),
			Y: r.Min.Y + d.rng.IntN(r.Height()),
		}
		if ok(c) {
			return c, true
		}
	}
	// Dense clusters: scan from a random cluster so placement still succeeds
	// while any free cell remains.
	start := d.rng.IntN(len(d.clusters))
	for i := range d.clusters {
		r := d.clusters[(start+i)%len(d.clusters)]
		for cell := range g.Each(r) {
			if ok(cell.Loc) {
				return cell.Loc, true
			}
		}
	}
	return entity.Coord{}, false
}

// Pick returns n distinct values from [0, total) in random order, or all
// of them when n >= total.
func (d *Distributor) Pick(n, total int) []int {
	perm := d.rng.Perm(total)
	if n < total {
		perm = perm[:n]
	}
	return perm
}
