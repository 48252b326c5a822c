package grid

import (
	"errors"
	"fmt"

	"github.com/banshee-data/swarm.forage/internal/entity"
)

// State is the occupancy of a cell.
type State int

const (
	Empty State = iota
	HasBlock
	HasCache
)

func (s State) String() string {
	switch s {
	case Empty:
		return "EMPTY"
	case HasBlock:
		return "HAS_BLOCK"
	case HasCache:
		return "HAS_CACHE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrIllegalTransition is returned for an event the current state does not
// accept.
var ErrIllegalTransition = errors.New("illegal cell transition")

// Cell is one arena cell. The entity pointers are only meaningful in the
// matching state; blockCount mirrors the cache's block count while the cell
// holds a cache.
type Cell struct {
	Loc entity.Coord

	state      State
	blockCount int
	block      *entity.Block
	cache      *entity.Cache
}

func (c *Cell) State() State         { return c.state }
func (c *Cell) BlockCount() int      { return c.blockCount }
func (c *Cell) Block() *entity.Block { return c.block }
func (c *Cell) Cache() *entity.Cache { return c.cache }
func (c *Cell) IsEmpty() bool        { return c.state == Empty }
func (c *Cell) HasBlock() bool       { return c.state == HasBlock }
func (c *Cell) HasCache() bool       { return c.state == HasCache }

// EntityID returns the id of whatever occupies the cell.
func (c *Cell) EntityID() (entity.ID, bool) {
	switch c.state {
	case HasBlock:
		return c.block.ID, true
	case HasCache:
		return c.cache.ID, true
	}
	return entity.NoID, false
}

func (c *Cell) illegal(event string) error {
	return fmt.Errorf("%w: %s in %s at %s", ErrIllegalTransition, event, c.state, c.Loc)
}

// EnterBlock places a free block in the cell. Re-entering a block replaces
// the pointer; entering over a cache is illegal (use Collapse).
func (c *Cell) EnterBlock(b *entity.Block) error {
	if c.state == HasCache {
		return c.illegal("block enter")
	}
	c.state = HasBlock
	c.block = b
	c.cache = nil
	c.blockCount = 1
	return nil
}

// EnterCache installs a cache. A block still in the cell must be evicted with
// Reset first so the two occupancy kinds never overlap.
func (c *Cell) EnterCache(cache *entity.Cache) error {
	if c.state == HasBlock {
		return c.illegal("cache enter")
	}
	c.state = HasCache
	c.cache = cache
	c.block = nil
	c.blockCount = cache.NBlocks()
	return nil
}

// CacheBlockDrop records one block added to the cache in this cell.
func (c *Cell) CacheBlockDrop() error {
	if c.state != HasCache {
		return c.illegal("cache block drop")
	}
	c.blockCount++
	return nil
}

// CacheBlockPickup records one block removed from the cache in this cell.
// It never empties the cell; collapse is the caller's decision.
func (c *Cell) CacheBlockPickup() error {
	if c.state != HasCache {
		return c.illegal("cache block pickup")
	}
	if c.blockCount <= 0 {
		return c.illegal("cache block pickup (no blocks)")
	}
	c.blockCount--
	return nil
}

// PickupBlock removes the free block from the cell.
func (c *Cell) PickupBlock() error {
	if c.state != HasBlock {
		return c.illegal("block pickup")
	}
	c.Reset()
	return nil
}

// Collapse turns a cache cell holding its last block into a plain block cell.
func (c *Cell) Collapse(b *entity.Block) error {
	if c.state != HasCache {
		return c.illegal("collapse")
	}
	c.state = HasBlock
	c.cache = nil
	c.block = b
	c.blockCount = 1
	return nil
}

// Reset empties the cell unconditionally.
func (c *Cell) Reset() {
	c.state = Empty
	c.block = nil
	c.cache = nil
	c.blockCount = 0
}
