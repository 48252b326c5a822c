package dpo

import (
	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/perception/density"
)

type (
	BlockStore = Store[*entity.Block]
	CacheStore = Store[*entity.Cache]
	BlockRec   = Record[*entity.Block]
	CacheRec   = Record[*entity.Cache]
)

// DPOStore is the plain (non-spatial) perception model: one block store and
// one cache store.
type DPOStore struct {
	blocks *BlockStore
	caches *CacheStore
}

// NewDPOStore returns an empty store pair sharing density params p.
func NewDPOStore(p density.Params) *DPOStore {
	return &DPOStore{
		blocks: NewStore[*entity.Block](p),
		caches: NewStore[*entity.Cache](p),
	}
}

func (s *DPOStore) Blocks() *BlockStore { return s.blocks }
func (s *DPOStore) Caches() *CacheStore { return s.caches }

// BlockFound records a sighting of b.
func (s *DPOStore) BlockFound(b *entity.Block) {
	s.blocks.Observe(b)
}

// CacheFound records a sighting of c. Block records under the cache
// footprint, or for blocks the cache now holds, are dropped.
func (s *DPOStore) CacheFound(c *entity.Cache) {
	s.dropSubsumed(c)
	s.caches.Observe(c)
}

func (s *DPOStore) dropSubsumed(c *entity.Cache) {
	var stale []entity.ID
	for rec := range s.blocks.Values() {
		if c.Covers(rec.Ent().Loc) || c.ContainsBlock(rec.ID()) {
			stale = append(stale, rec.ID())
		}
	}
	for _, id := range stale {
		s.blocks.Remove(id)
	}
}

func (s *DPOStore) BlockVanished(id entity.ID) bool { return s.blocks.Remove(id) }
func (s *DPOStore) CacheVanished(id entity.ID) bool { return s.caches.Remove(id) }

// BlockPickup forgets a free block the robot just picked up.
func (s *DPOStore) BlockPickup(id entity.ID) bool { return s.blocks.Remove(id) }

// BlockDrop records a free block the robot just put down.
func (s *DPOStore) BlockDrop(b *entity.Block) { s.BlockFound(b) }

// CacheBlockPickup removes blockID from the remembered cache. A cache at or
// below entity.MinCacheBlocks is forgotten instead: the pickup collapses it
// in the arena. A record that no longer holds blockID already reflects the
// pickup and is left alone.
func (s *DPOStore) CacheBlockPickup(cacheID, blockID entity.ID) bool {
	rec, ok := s.caches.Find(cacheID)
	if !ok {
		return false
	}
	switch {
	case !rec.Ent().ContainsBlock(blockID):
	case rec.Ent().NBlocks() <= entity.MinCacheBlocks:
		s.caches.Remove(cacheID)
	default:
		rec.Ent().RemoveBlock(blockID)
	}
	return true
}

// CacheBlockDrop adds a copy of b to the remembered cache unless the record
// already holds it.
func (s *DPOStore) CacheBlockDrop(cacheID entity.ID, b *entity.Block) bool {
	rec, ok := s.caches.Find(cacheID)
	if !ok {
		return false
	}
	if !rec.Ent().ContainsBlock(b.ID) {
		rec.Ent().AddBlock(b.Clone())
	}
	return true
}

// DecayAll decays every record once.
func (s *DPOStore) DecayAll() {
	s.blocks.DecayAll()
	s.caches.DecayAll()
}

// BlocksIn returns remembered blocks located inside r.
func BlocksIn(st *BlockStore, r entity.Rect) []*BlockRec {
	var out []*BlockRec
	for rec := range st.Values() {
		if r.Contains(rec.Ent().Loc) {
			out = append(out, rec)
		}
	}
	return out
}

// CachesIn returns remembered caches located inside r.
func CachesIn(st *CacheStore, r entity.Rect) []*CacheRec {
	var out []*CacheRec
	for rec := range st.Values() {
		if r.Contains(rec.Ent().Loc) {
			out = append(out, rec)
		}
	}
	return out
}
