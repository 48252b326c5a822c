// Package arena is the authoritative world every robot shares: the
// ground-truth grid, the block and cache registries, the nest and the block
// clusters.
//
// Structural mutations take the arena lock for the check-and-mutate
// sequence only. Robots read their line of sight under the read lock and
// get deep copies back. Cache and free-block lists are published as
// lock-free snapshots for the serial end-of-timestep pass.
package arena

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/grid"
	"github.com/banshee-data/swarm.forage/internal/monitoring"
	"github.com/banshee-data/swarm.forage/internal/perception/los"
)

var (
	// ErrNoBlock is returned when a block is not where the caller expects.
	ErrNoBlock = errors.New("no such block")
	// ErrNotCache is returned when a cache id is not live.
	ErrNotCache = errors.New("no such cache")
	// ErrOccupied is returned when a drop targets a cell that cannot take it.
	ErrOccupied = errors.New("cell occupied")
	// ErrRejected is returned when a cache site violates a placement
	// constraint.
	ErrRejected = errors.New("cache site rejected")
)

var logf = monitoring.Component("arena")

// Params describes the arena layout.
type Params struct {
	XDim, YDim  int
	Nest        entity.Rect
	Clusters    []entity.Rect
	NBlocks     int
	Seed        uint64
	CacheExtent int // footprint radius of every cache
}

// Validate checks the layout is internally consistent.
func (p Params) Validate() error {
	if p.XDim <= 0 || p.YDim <= 0 {
		return fmt.Errorf("arena dimensions must be positive, got %dx%d", p.XDim, p.YDim)
	}
	bounds := entity.Rect{Max: entity.Coord{X: p.XDim - 1, Y: p.YDim - 1}}
	inside := func(r entity.Rect) bool {
		return bounds.Contains(r.Min) && bounds.Contains(r.Max) && r.Min.X <= r.Max.X && r.Min.Y <= r.Max.Y
	}
	if !inside(p.Nest) {
		return fmt.Errorf("nest %v outside arena", p.Nest)
	}
	if len(p.Clusters) == 0 {
		return errors.New("arena needs at least one block cluster")
	}
	capacity := 0
	for i, c := range p.Clusters {
		if !inside(c) {
			return fmt.Errorf("cluster %d %v outside arena", i, c)
		}
		if c.Overlaps(p.Nest) {
			return fmt.Errorf("cluster %d %v overlaps nest", i, c)
		}
		capacity += c.Area()
	}
	if p.NBlocks < 0 || p.NBlocks > capacity {
		return fmt.Errorf("%d blocks do not fit in %d cluster cells", p.NBlocks, capacity)
	}
	if p.CacheExtent < 0 {
		return fmt.Errorf("cache extent must be non-negative, got %d", p.CacheExtent)
	}
	return nil
}

// Depletion records a cache that collapsed.
type Depletion struct {
	Cache    *entity.Cache
	Timestep uint64
}

// Arena is safe for concurrent use.
type Arena struct {
	params Params
	dist   *Distributor

	mu         sync.RWMutex
	grid       *grid.Grid
	blocks     map[entity.ID]*entity.Block // every block not yet delivered
	caches     map[entity.ID]*entity.Cache
	nextBlock  entity.ID
	nextCache  entity.ID
	createFlag bool
	depletions []Depletion
	collected  uint64

	redistribute atomic.Bool
	cacheSnap    atomic.Pointer[[]*entity.Cache]
	freeSnap     atomic.Pointer[[]*entity.Block]
}

// New lays out the arena and distributes the initial blocks.
func New(p Params) (*Arena, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid arena params: %w", err)
	}
	a := &Arena{
		params: p,
		dist:   NewDistributor(p.Clusters, p.Seed),
		grid:   grid.New(p.XDim, p.YDim),
		blocks: make(map[entity.ID]*entity.Block, p.NBlocks),
		caches: make(map[entity.ID]*entity.Cache),
	}
	a.redistribute.Store(true)

	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < p.NBlocks; i++ {
		loc, ok := a.dist.Place(a.grid, a.placeable)
		if !ok {
			return nil, fmt.Errorf("placing block %d of %d: clusters full", i+1, p.NBlocks)
		}
		b := entity.NewBlock(a.nextBlock, loc)
		a.nextBlock++
		a.blocks[b.ID] = b
		a.mustCell(a.grid.At(loc).EnterBlock(b))
	}
	a.publishLocked()
	logf("%dx%d arena, nest %v, %d clusters, %d blocks", p.XDim, p.YDim, p.Nest, len(p.Clusters), p.NBlocks)
	return a, nil
}

func (a *Arena) Params() Params      { return a.params }
func (a *Arena) Nest() entity.Rect   { return a.params.Nest }
func (a *Arena) Bounds() entity.Rect { return a.grid.Bounds() }

// placeable reports whether a free block may sit at c: outside the nest and
// every cache footprint. Caller holds mu.
func (a *Arena) placeable(c entity.Coord) bool {
	if a.params.Nest.Contains(c) {
		return false
	}
	for _, cache := range a.caches {
		if cache.Covers(c) {
			return false
		}
	}
	return true
}

func (a *Arena) mustCell(err error) {
	if err != nil {
		monitoring.Invariantf("arena", "%v", err)
	}
}

// LOS captures the window of the given radius around center.
func (a *Arena) LOS(center entity.Coord, radius int, ts uint64) los.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return los.Capture(a.grid, center, a.grid.Window(center, radius), ts)
}

// Oracle captures the whole arena.
func (a *Arena) Oracle(ts uint64) los.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return los.Capture(a.grid, entity.Coord{}, a.grid.Bounds(), ts)
}

// Publish refreshes the lock-free cache and free-block snapshots.
func (a *Arena) Publish() {
	a.mu.RLock()
	defer a.mu.RUnlock()
	a.publishLocked()
}

// publishLocked needs at least the read lock.
func (a *Arena) publishLocked() {
	caches := make([]*entity.Cache, 0, len(a.caches))
	for _, c := range a.caches {
		caches = append(caches, c.Clone())
	}
	slices.SortFunc(caches, func(x, y *entity.Cache) int { return int(x.ID - y.ID) })
	a.cacheSnap.Store(&caches)

	var free []*entity.Block
	for _, b := range a.blocks {
		if c := a.grid.At(b.Loc); !b.Carried() && c.HasBlock() && c.Block() == b {
			free = append(free, b.Clone())
		}
	}
	slices.SortFunc(free, func(x, y *entity.Block) int { return int(x.ID - y.ID) })
	a.freeSnap.Store(&free)
}

// Caches returns the last published cache list, in id order.
func (a *Arena) Caches() []*entity.Cache { return *a.cacheSnap.Load() }

// FreeBlocks returns the last published free-block list, in id order.
func (a *Arena) FreeBlocks() []*entity.Block { return *a.freeSnap.Load() }

// LiveCaches is the current number of caches.
func (a *Arena) LiveCaches() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.caches)
}

// Collected is the cumulative number of blocks delivered to the nest.
func (a *Arena) Collected() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.collected
}

// SetRedistribution switches whether delivered blocks are put back.
func (a *Arena) SetRedistribution(on bool) { a.redistribute.Store(on) }

// Redistributing reports whether delivered blocks are put back.
func (a *Arena) Redistributing() bool { return a.redistribute.Load() }

// BlockCount is the number of blocks still in play (free, carried or
// cached).
func (a *Arena) BlockCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.blocks)
}
