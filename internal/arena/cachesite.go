package arena

import (
	"fmt"

	"github.com/banshee-data/swarm.forage/internal/entity"
)

// Constraints restrict where a cache may be installed.
type Constraints struct {
	// MinDist is the minimum distance from the site to the nest and to
	// every live cache. Only strict placement enforces it.
	MinDist float64
	// Strict rejects a site closer than MinDist to the nest or a live cache,
	// and a site whose footprint holds a free block that is not part of the
	// cache being built. Otherwise the distance is logged and stray blocks
	// are absorbed. Footprint overlap is rejected in both modes.
	Strict bool
}

// InstallCache builds a cache at site from the free blocks blockIDs. The
// placement checks and the mutation happen under one lock acquisition.
// A violated constraint returns an error wrapping ErrRejected and leaves
// the arena untouched.
func (a *Arena) InstallCache(site entity.Coord, blockIDs []entity.ID, ts uint64, cons Constraints) (*entity.Cache, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	blocks, err := a.checkSiteLocked(site, blockIDs, cons)
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		a.grid.At(b.Loc).Reset()
	}
	cache := entity.NewCache(a.nextCache, site, a.params.CacheExtent, blocks, ts)
	a.nextCache++
	a.caches[cache.ID] = cache
	a.mustCell(a.grid.At(site).EnterCache(cache))
	a.publishLocked()
	return cache.Clone(), nil
}

func (a *Arena) checkSiteLocked(site entity.Coord, blockIDs []entity.ID, cons Constraints) ([]*entity.Block, error) {
	reject := func(format string, args ...any) error {
		return fmt.Errorf("site %s: %s: %w", site, fmt.Sprintf(format, args...), ErrRejected)
	}
	foot := entity.RectAround(site, a.params.CacheExtent)
	if !a.grid.Contains(foot.Min) || !a.grid.Contains(foot.Max) {
		return nil, reject("footprint %v leaves the arena", foot)
	}
	if foot.Overlaps(a.params.Nest) {
		return nil, reject("footprint overlaps nest")
	}
	if d := entity.DistToRect(site, a.params.Nest); d < cons.MinDist {
		if cons.Strict {
			return nil, reject("%.1f from nest", d)
		}
		logf("site %s: %.1f from nest, below %.1f", site, d, cons.MinDist)
	}
	for _, c := range a.caches {
		if c.Footprint().Overlaps(foot) {
			return nil, reject("overlaps cache %d", c.ID)
		}
		if d := entity.Dist(site, c.Loc); d < cons.MinDist {
			if cons.Strict {
				return nil, reject("%.1f from cache %d", d, c.ID)
			}
			logf("site %s: %.1f from cache %d, below %.1f", site, d, c.ID, cons.MinDist)
		}
	}

	want := make(map[entity.ID]bool, len(blockIDs))
	blocks := make([]*entity.Block, 0, len(blockIDs))
	for _, id := range blockIDs {
		b, ok := a.blocks[id]
		if !ok || b.Carried() || a.grid.At(b.Loc).Block() != b {
			return nil, fmt.Errorf("site %s: block %d is not free: %w", site, id, ErrNoBlock)
		}
		if !want[id] {
			want[id] = true
			blocks = append(blocks, b)
		}
	}
	for cell := range a.grid.Each(foot) {
		if !cell.HasBlock() || want[cell.Block().ID] {
			continue
		}
		if cons.Strict {
			return nil, reject("stray block %d at %s", cell.Block().ID, cell.Loc)
		}
		want[cell.Block().ID] = true
		blocks = append(blocks, cell.Block())
	}
	if len(blocks) < entity.MinCacheBlocks {
		return nil, reject("%d blocks, need %d", len(blocks), entity.MinCacheBlocks)
	}
	return blocks, nil
}

// FlagCacheCreation requests a dynamic cache creation pass after the
// current robot pass.
func (a *Arena) FlagCacheCreation() {
	a.mu.Lock()
	a.createFlag = true
	a.mu.Unlock()
}

// TakeCacheCreationFlag reports and clears the creation request.
func (a *Arena) TakeCacheCreationFlag() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	f := a.createFlag
	a.createFlag = false
	return f
}

// TakeDepletions returns and clears the caches that collapsed since the
// last call.
func (a *Arena) TakeDepletions() []Depletion {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.depletions
	a.depletions = nil
	return d
}
