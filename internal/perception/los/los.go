// Package los carries a robot's per-timestep line-of-sight window and
// replays it into the robot's perception model.
package los

import (
	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/events"
	"github.com/banshee-data/swarm.forage/internal/grid"
	"github.com/banshee-data/swarm.forage/internal/perception/dpo"
)

// CellView is a deep copy of one ground-truth cell.
type CellView struct {
	Loc   entity.Coord
	State grid.State
	Block *entity.Block
	Cache *entity.Cache
}

// Snapshot is the window of cells a robot can see this timestep. It shares
// no memory with the arena.
type Snapshot struct {
	Origin   entity.Coord
	Bounds   entity.Rect
	Cells    []CellView
	Timestep uint64
}

// Capture copies the cells of g inside r. The caller holds whatever lock
// guards g.
func Capture(g *grid.Grid, origin entity.Coord, r entity.Rect, ts uint64) Snapshot {
	r = r.Clamp(g.XDim, g.YDim)
	s := Snapshot{Origin: origin, Bounds: r, Timestep: ts}
	for c := range g.Each(r) {
		v := CellView{Loc: c.Loc, State: c.State()}
		switch c.State() {
		case grid.HasBlock:
			v.Block = c.Block().Clone()
		case grid.HasCache:
			v.Cache = c.Cache().Clone()
		}
		s.Cells = append(s.Cells, v)
	}
	return s
}

// Blocks returns the blocks visible in the snapshot.
func (s Snapshot) Blocks() []*entity.Block {
	var out []*entity.Block
	for _, c := range s.Cells {
		if c.Block != nil {
			out = append(out, c.Block)
		}
	}
	return out
}

// Caches returns the caches visible in the snapshot.
func (s Snapshot) Caches() []*entity.Cache {
	var out []*entity.Cache
	for _, c := range s.Cells {
		if c.Cache != nil {
			out = append(out, c.Cache)
		}
	}
	return out
}

// Model is a perception model that can absorb a snapshot.
type Model interface {
	events.Reconciler
	Blocks() *dpo.BlockStore
	Caches() *dpo.CacheStore
}

// Observer is implemented by models that track per-cell knowledge.
type Observer interface {
	Observe(r entity.Rect)
}

// Events turns a snapshot into reconciliation events against m: found
// events for everything visible, then vanished events for remembered
// objects inside the window that are no longer there.
func Events(m Model, s Snapshot) []events.Event {
	var evs []events.Event
	seenBlocks := make(map[entity.ID]bool)
	seenCaches := make(map[entity.ID]bool)
	for _, c := range s.Cells {
		switch {
		case c.Cache != nil:
			seenCaches[c.Cache.ID] = true
			for _, b := range c.Cache.Blocks {
				seenBlocks[b.ID] = true
			}
			evs = append(evs, events.Event{Kind: events.CacheFound, Cache: c.Cache, Timestep: s.Timestep})
		case c.Block != nil:
			seenBlocks[c.Block.ID] = true
			evs = append(evs, events.Event{Kind: events.BlockFound, Block: c.Block, Timestep: s.Timestep})
		}
	}
	for _, rec := range dpo.CachesIn(m.Caches(), s.Bounds) {
		if !seenCaches[rec.ID()] {
			evs = append(evs, events.Event{Kind: events.CacheVanished, ID: rec.ID(), Timestep: s.Timestep})
		}
	}
	for _, rec := range dpo.BlocksIn(m.Blocks(), s.Bounds) {
		if !seenBlocks[rec.ID()] {
			evs = append(evs, events.Event{Kind: events.BlockVanished, ID: rec.ID(), Timestep: s.Timestep})
		}
	}
	return evs
}

// Process replays s into m and returns the number of events applied. Decay
// is left to the caller so it runs after every other event of the
// timestep.
func Process(m Model, s Snapshot) int {
	if o, ok := m.(Observer); ok {
		o.Observe(s.Bounds)
	}
	evs := Events(m, s)
	for _, ev := range evs {
		events.Reconcile(m, ev)
	}
	return len(evs)
}
