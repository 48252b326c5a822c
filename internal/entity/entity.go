package entity

import (
	"fmt"
	"slices"
)

// ID identifies a block or cache for its whole lifetime. Block and cache ids
// are drawn from separate sequences.
type ID int

// NoID marks "no object", e.g. a free block has no owning robot.
const NoID ID = -1

// MinCacheBlocks is the smallest block count at which a pile is still a
// cache. A cache holding this many blocks collapses on the next pickup.
const MinCacheBlocks = 2

// Kind distinguishes the two trackable object kinds.
type Kind int

const (
	KindBlock Kind = iota
	KindCache
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindCache:
		return "cache"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Block is a single foraging item.
type Block struct {
	ID  ID
	Loc Coord
	// Robot is the id of the carrying robot, or NoID when the block is on the
	// arena floor or inside a cache.
	Robot ID
}

// NewBlock returns a free block at loc.
func NewBlock(id ID, loc Coord) *Block {
	return &Block{ID: id, Loc: loc, Robot: NoID}
}

func (b *Block) EntityID() ID    { return b.ID }
func (b *Block) Location() Coord { return b.Loc }

// Carried reports whether a robot currently holds the block.
func (b *Block) Carried() bool { return b.Robot != NoID }

// Clone returns an independent copy.
func (b *Block) Clone() *Block {
	c := *b
	return &c
}

func (b *Block) String() string { return fmt.Sprintf("block%d@%s", b.ID, b.Loc) }

// Cache aggregates blocks at a single location.
type Cache struct {
	ID     ID
	Loc    Coord
	Extent int // footprint radius in cells around Loc
	Blocks []*Block
	// CreatedAt is the timestep the cache came into existence.
	CreatedAt uint64
}

// NewCache returns a cache owning blocks, which are relocated to loc.
func NewCache(id ID, loc Coord, extent int, blocks []*Block, ts uint64) *Cache {
	c := &Cache{ID: id, Loc: loc, Extent: extent, CreatedAt: ts}
	for _, b := range blocks {
		c.AddBlock(b)
	}
	return c
}

func (c *Cache) EntityID() ID    { return c.ID }
func (c *Cache) Location() Coord { return c.Loc }

// NBlocks is the number of blocks in the cache.
func (c *Cache) NBlocks() int { return len(c.Blocks) }

// Footprint is the rectangle of cells the cache covers.
func (c *Cache) Footprint() Rect { return RectAround(c.Loc, c.Extent) }

// Covers reports whether loc lies inside the cache footprint.
func (c *Cache) Covers(loc Coord) bool { return c.Footprint().Contains(loc) }

// ContainsBlock reports whether the cache holds the block with the given id.
func (c *Cache) ContainsBlock(id ID) bool {
	return slices.ContainsFunc(c.Blocks, func(b *Block) bool { return b.ID == id })
}

// AddBlock places b in the cache.
func (c *Cache) AddBlock(b *Block) {
	b.Loc = c.Loc
	b.Robot = NoID
	c.Blocks = append(c.Blocks, b)
}

// TakeBlock removes and returns the most recently added block, or nil when
// the cache is empty.
func (c *Cache) TakeBlock() *Block {
	if len(c.Blocks) == 0 {
		return nil
	}
	b := c.Blocks[len(c.Blocks)-1]
	c.Blocks = c.Blocks[:len(c.Blocks)-1]
	return b
}

// RemoveBlock removes the block with the given id and reports whether it was
// present.
func (c *Cache) RemoveBlock(id ID) bool {
	i := slices.IndexFunc(c.Blocks, func(b *Block) bool { return b.ID == id })
	if i < 0 {
		return false
	}
	c.Blocks = slices.Delete(c.Blocks, i, i+1)
	return true
}

// Clone deep-copies the cache, including its blocks.
func (c *Cache) Clone() *Cache {
	out := *c
	out.Blocks = make([]*Block, len(c.Blocks))
	for i, b := range c.Blocks {
		out.Blocks[i] = b.Clone()
	}
	return &out
}

func (c *Cache) String() string {
	return fmt.Sprintf("cache%d@%s[%d]", c.ID, c.Loc, len(c.Blocks))
}
