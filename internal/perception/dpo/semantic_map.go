package dpo

import (
	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/grid"
	"github.com/banshee-data/swarm.forage/internal/monitoring"
	"github.com/banshee-data/swarm.forage/internal/perception/density"
)

// SemanticMap is a DPOStore indexed by a grid of cell state machines. Each
// occupied cell points at the same entity as the matching store record, and
// a cache's block count always equals its cell's count.
//
// Cells carry their own relevance: a cell is known while its relevance is
// above zero. When a cell decays to unknown, whatever the map believed was
// there is forgotten.
type SemanticMap struct {
	*DPOStore
	grid  *grid.Grid
	cells []density.Density
	known int
}

// NewSemanticMap returns an all-unknown map of the given dimensions.
func NewSemanticMap(xdim, ydim int, p density.Params) *SemanticMap {
	m := &SemanticMap{
		DPOStore: NewDPOStore(p),
		grid:     grid.New(xdim, ydim),
		cells:    make([]density.Density, xdim*ydim),
	}
	for i := range m.cells {
		m.cells[i] = density.New(p)
	}
	m.blocks.OnRelease(m.releaseBlock)
	m.caches.OnRelease(m.releaseCache)
	return m
}

// Grid exposes the cell grid for read-only inspection.
func (m *SemanticMap) Grid() *grid.Grid { return m.grid }

func (m *SemanticMap) releaseBlock(rec *BlockRec) {
	if c := m.grid.At(rec.Ent().Loc); c != nil && c.Block() == rec.Ent() {
		c.Reset()
	}
}

func (m *SemanticMap) releaseCache(rec *CacheRec) {
	if c := m.grid.At(rec.Ent().Loc); c != nil && c.Cache() == rec.Ent() {
		c.Reset()
	}
}

func (m *SemanticMap) cell(loc entity.Coord) *grid.Cell {
	c := m.grid.At(loc)
	if c == nil {
		monitoring.Invariantf("semantic map", "%s outside %dx%d map", loc, m.grid.XDim, m.grid.YDim)
	}
	return c
}

func (m *SemanticMap) must(err error) {
	if err != nil {
		monitoring.Invariantf("semantic map", "%v", err)
	}
}

// touch refreshes the relevance of the cell at loc, counting it as known if
// it was not already.
func (m *SemanticMap) touch(loc entity.Coord) {
	d := &m.cells[m.grid.Idx(loc.X, loc.Y)]
	if d.Expired() {
		m.known++
	}
	d.Refresh()
}

// Observe marks every cell of r as seen this timestep.
func (m *SemanticMap) Observe(r entity.Rect) {
	for c := range m.grid.Each(r) {
		m.touch(c.Loc)
	}
}

// BlockFound installs a sighting of b in its cell and the block store.
func (m *SemanticMap) BlockFound(b *entity.Block) {
	c := m.cell(b.Loc)
	switch {
	case c.HasCache():
		// The cache we remembered here has collapsed.
		m.caches.Remove(c.Cache().ID)
	case c.HasBlock() && c.Block().ID != b.ID:
		m.blocks.Remove(c.Block().ID)
	}
	rec := m.blocks.Observe(b)
	m.must(c.EnterBlock(rec.Ent()))
	m.touch(b.Loc)
}

// CacheFound installs a sighting of cache: block records it subsumes are
// dropped, a block still in the cell is evicted, and the fresh clone
// replaces any older record.
func (m *SemanticMap) CacheFound(cache *entity.Cache) {
	c := m.cell(cache.Loc)
	m.dropSubsumed(cache)
	if c.HasBlock() {
		c.Reset()
	}
	if c.HasCache() && c.Cache().ID != cache.ID {
		m.caches.Remove(c.Cache().ID)
	}
	rec := m.caches.Observe(cache)
	m.must(c.EnterCache(rec.Ent()))
	m.touch(cache.Loc)
}

func (m *SemanticMap) BlockVanished(id entity.ID) bool { return m.blocks.Remove(id) }
func (m *SemanticMap) CacheVanished(id entity.ID) bool { return m.caches.Remove(id) }
func (m *SemanticMap) BlockPickup(id entity.ID) bool   { return m.blocks.Remove(id) }
func (m *SemanticMap) BlockDrop(b *entity.Block)       { m.BlockFound(b) }

// checkCache asserts that rec and its cell agree.
func (m *SemanticMap) checkCache(rec *CacheRec) *grid.Cell {
	c := m.cell(rec.Ent().Loc)
	if c.Cache() != rec.Ent() {
		monitoring.Invariantf("semantic map", "cache %d record not installed in cell %s (%s)",
			rec.ID(), c.Loc, c.State())
	}
	if n := rec.Ent().NBlocks(); n != c.BlockCount() {
		monitoring.Invariantf("semantic map", "cache %d holds %d blocks, cell %s counts %d",
			rec.ID(), n, c.Loc, c.BlockCount())
	}
	return c
}

// CacheBlockPickup removes blockID from the remembered cache and its cell.
// At or below entity.MinCacheBlocks the cache is forgotten and the cell
// emptied. A record that no longer holds blockID is left alone.
func (m *SemanticMap) CacheBlockPickup(cacheID, blockID entity.ID) bool {
	rec, ok := m.caches.Find(cacheID)
	if !ok {
		return false
	}
	c := m.checkCache(rec)
	switch {
	case !rec.Ent().ContainsBlock(blockID):
	case rec.Ent().NBlocks() <= entity.MinCacheBlocks:
		m.caches.Remove(cacheID)
	default:
		rec.Ent().RemoveBlock(blockID)
		m.must(c.CacheBlockPickup())
	}
	return true
}

// CacheBlockDrop adds a copy of b to the remembered cache and its cell
// unless the record already holds it.
func (m *SemanticMap) CacheBlockDrop(cacheID entity.ID, b *entity.Block) bool {
	rec, ok := m.caches.Find(cacheID)
	if !ok {
		return false
	}
	c := m.checkCache(rec)
	if rec.Ent().ContainsBlock(b.ID) {
		return true
	}
	rec.Ent().AddBlock(b.Clone())
	m.must(c.CacheBlockDrop())
	return true
}

// DecayAll decays every record and every known cell. Cells decaying to
// unknown lose their contents.
func (m *SemanticMap) DecayAll() {
	m.DPOStore.DecayAll()
	for i := range m.cells {
		d := &m.cells[i]
		if d.Expired() {
			continue
		}
		d.Decay()
		if !d.Expired() {
			continue
		}
		m.known--
		c := &m.grid.Cells[i]
		switch c.State() {
		case grid.HasBlock:
			m.blocks.Remove(c.Block().ID)
		case grid.HasCache:
			m.caches.Remove(c.Cache().ID)
		}
	}
}

// KnownCells returns the number of cells with non-zero relevance.
func (m *SemanticMap) KnownCells() int { return m.known }

// KnownCellsPct is the percentage of cells currently known.
func (m *SemanticMap) KnownCellsPct() float64 {
	if len(m.cells) == 0 {
		return 0
	}
	return 100 * float64(m.known) / float64(len(m.cells))
}

// UnknownCellsPct is 100 - KnownCellsPct.
func (m *SemanticMap) UnknownCellsPct() float64 { return 100 - m.KnownCellsPct() }

// CellRelevance returns the relevance of the cell at loc.
func (m *SemanticMap) CellRelevance(loc entity.Coord) float64 {
	if !m.grid.Contains(loc) {
		return 0
	}
	return m.cells[m.grid.Idx(loc.X, loc.Y)].Value()
}
