package arena

import (
	"fmt"

	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/monitoring"
)

// carried returns the block robot is holding. Caller holds mu.
func (a *Arena) carried(robot, blockID entity.ID) (*entity.Block, error) {
	b, ok := a.blocks[blockID]
	if !ok || b.Robot != robot {
		return nil, fmt.Errorf("robot %d does not carry block %d: %w", robot, blockID, ErrNoBlock)
	}
	return b, nil
}

// PickupFreeBlock hands the free block blockID to robot and returns a copy.
func (a *Arena) PickupFreeBlock(robot, blockID entity.ID) (*entity.Block, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.blocks[blockID]
	if !ok || b.Carried() {
		return nil, fmt.Errorf("pickup of block %d: %w", blockID, ErrNoBlock)
	}
	cell := a.grid.At(b.Loc)
	if !cell.HasBlock() || cell.Block() != b {
		return nil, fmt.Errorf("pickup of block %d: not free at %s: %w", blockID, b.Loc, ErrNoBlock)
	}
	a.mustCell(cell.PickupBlock())
	b.Robot = robot
	return b.Clone(), nil
}

// DropFreeBlock puts the block robot carries down at loc. The cell must be
// empty, outside the nest and outside every cache footprint.
func (a *Arena) DropFreeBlock(robot, blockID entity.ID, loc entity.Coord) (*entity.Block, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, err := a.carried(robot, blockID)
	if err != nil {
		return nil, err
	}
	cell := a.grid.At(loc)
	if cell == nil || !cell.IsEmpty() || !a.placeable(loc) {
		return nil, fmt.Errorf("drop of block %d at %s: %w", blockID, loc, ErrOccupied)
	}
	b.Robot = entity.NoID
	b.Loc = loc
	a.mustCell(cell.EnterBlock(b))
	return b.Clone(), nil
}

// CachePickup is the outcome of taking a block from a cache.
type CachePickup struct {
	Block *entity.Block
	// Cache is a copy of the cache as it was before the pickup.
	Cache *entity.Cache
	// Depleted is set when the pickup collapsed the cache.
	Depleted bool
}

// PickupFromCache hands one block of cacheID to robot. When fewer than
// entity.MinCacheBlocks remain the cache collapses: a lone leftover block
// stays in the cell as a free block and the depletion is queued for the
// cache managers.
func (a *Arena) PickupFromCache(robot, cacheID entity.ID, ts uint64) (CachePickup, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cache, ok := a.caches[cacheID]
	if !ok {
		return CachePickup{}, fmt.Errorf("pickup from cache %d: %w", cacheID, ErrNotCache)
	}
	cell := a.grid.At(cache.Loc)
	if cell.Cache() != cache || cell.BlockCount() != cache.NBlocks() {
		monitoring.Invariantf("arena", "cache %d disagrees with cell %s (%d vs %d blocks)",
			cacheID, cell.Loc, cache.NBlocks(), cell.BlockCount())
	}
	before := cache.Clone()
	b := cache.TakeBlock()
	if b == nil {
		return CachePickup{}, fmt.Errorf("pickup from empty cache %d: %w", cacheID, ErrNoBlock)
	}
	a.mustCell(cell.CacheBlockPickup())
	b.Robot = robot

	out := CachePickup{Block: b.Clone(), Cache: before}
	if cache.NBlocks() < entity.MinCacheBlocks {
		delete(a.caches, cacheID)
		if left := cache.TakeBlock(); left != nil {
			a.mustCell(cell.Collapse(left))
		} else {
			cell.Reset()
		}
		a.depletions = append(a.depletions, Depletion{Cache: before, Timestep: ts})
		out.Depleted = true
		logf("cache %d depleted at t=%d after %d timesteps", cacheID, ts, ts-cache.CreatedAt)
	}
	a.publishLocked()
	return out, nil
}

// DropInCache adds the block robot carries to cacheID and returns a copy of
// the cache after the drop.
func (a *Arena) DropInCache(robot, blockID, cacheID entity.ID) (*entity.Cache, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cache, ok := a.caches[cacheID]
	if !ok {
		return nil, fmt.Errorf("drop in cache %d: %w", cacheID, ErrNotCache)
	}
	b, err := a.carried(robot, blockID)
	if err != nil {
		return nil, err
	}
	cache.AddBlock(b)
	a.mustCell(a.grid.At(cache.Loc).CacheBlockDrop())
	a.publishLocked()
	return cache.Clone(), nil
}

// DeliverToNest removes the block robot carries from play. While
// redistribution is on, the block is put back at a random cluster cell
// under the same id.
func (a *Arena) DeliverToNest(robot, blockID entity.ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, err := a.carried(robot, blockID)
	if err != nil {
		return err
	}
	a.collected++
	b.Robot = entity.NoID
	if !a.redistribute.Load() {
		delete(a.blocks, blockID)
		return nil
	}
	loc, ok := a.dist.Place(a.grid, a.placeable)
	if !ok {
		logf("no free cluster cell for block %d; withdrawn", blockID)
		delete(a.blocks, blockID)
		return nil
	}
	b.Loc = loc
	a.mustCell(a.grid.At(loc).EnterBlock(b))
	return nil
}
