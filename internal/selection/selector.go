package selection

import (
	"iter"

	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/perception/dpo"
)

// utility favours fresh objects that are cheap to reach and then cheap to
// bring home. The +1 keeps an object under the robot finite.
func utility(relevance float64, robot, obj entity.Coord, nest entity.Rect) float64 {
	return relevance / (entity.Dist(robot, obj) + entity.DistToRect(obj, nest) + 1)
}

// BlockSelector chooses which remembered free block to fetch.
type BlockSelector struct {
	Nest entity.Rect
}

// Select returns the highest-utility block that is not excepted and still
// relevant. Ties go to the lower id.
func (s BlockSelector) Select(robot entity.Coord, blocks iter.Seq[*dpo.BlockRec], exc *Exceptions) (*dpo.BlockRec, bool) {
	var best *dpo.BlockRec
	bestU := 0.0
	for rec := range blocks {
		if rec.Relevance() <= 0 || exc.Contains(rec.ID(), Pickup) {
			continue
		}
		// Blocks sitting in the nest are already delivered.
		if s.Nest.Contains(rec.Ent().Loc) {
			continue
		}
		if u := utility(rec.Relevance(), robot, rec.Ent().Loc, s.Nest); best == nil || u > bestU {
			best, bestU = rec, u
		}
	}
	return best, best != nil
}

// CacheSelector chooses which remembered cache to pick up from or drop
// into.
type CacheSelector struct {
	Nest entity.Rect
}

// SelectPickup returns the best non-excepted cache still believed to hold
// blocks. Fuller caches score higher.
func (s CacheSelector) SelectPickup(robot entity.Coord, caches iter.Seq[*dpo.CacheRec], exc *Exceptions) (*dpo.CacheRec, bool) {
	var best *dpo.CacheRec
	bestU := 0.0
	for rec := range caches {
		n := rec.Ent().NBlocks()
		if n == 0 || rec.Relevance() <= 0 || exc.Contains(rec.ID(), Pickup) {
			continue
		}
		if u := utility(rec.Relevance()*float64(n), robot, rec.Ent().Loc, s.Nest); best == nil || u > bestU {
			best, bestU = rec, u
		}
	}
	return best, best != nil
}

// SelectDrop returns the best non-excepted cache to drop a block into.
func (s CacheSelector) SelectDrop(robot entity.Coord, caches iter.Seq[*dpo.CacheRec], exc *Exceptions) (*dpo.CacheRec, bool) {
	var best *dpo.CacheRec
	bestU := 0.0
	for rec := range caches {
		if rec.Relevance() <= 0 || exc.Contains(rec.ID(), Drop) {
			continue
		}
		if u := utility(rec.Relevance(), robot, rec.Ent().Loc, s.Nest); best == nil || u > bestU {
			best, bestU = rec, u
		}
	}
	return best, best != nil
}
