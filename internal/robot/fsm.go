package robot

import (
	"errors"

	"github.com/banshee-data/swarm.forage/internal/arena"
	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/events"
	"github.com/banshee-data/swarm.forage/internal/monitoring"
	"github.com/banshee-data/swarm.forage/internal/selection"
	"github.com/banshee-data/swarm.forage/internal/task"
)

// Act runs one timestep of the foraging state machine: pick a target, move
// one cell towards it, interact on arrival. The returned status reports
// whether a task ended this timestep.
func (r *Robot) Act(a Arena, ts uint64) task.Status {
	if limit := r.params.MaxTaskTimesteps; limit > 0 && r.tracker.Elapsed(ts) > limit {
		r.abort(a, ts)
		return task.AbortPending
	}
	r.validateTarget()

	var done bool
	if r.carrying == nil {
		r.acquire(a, ts)
	} else {
		done = r.deliver(a, ts)
	}
	if !done {
		return task.Running
	}
	r.finish(task.Done, ts)
	return task.Done
}

func (r *Robot) finish(s task.Status, ts uint64) {
	next := r.alloc.Next(r.tracker.Kind(), s == task.AbortPending)
	if r.params.Caching == CacheNone {
		next = task.Generalist
	}
	r.tracker.Finish(s, next, ts)
	r.target = target{}
}

func (r *Robot) abort(a Arena, ts uint64) {
	r.logf("task %d (%s) aborted after %d timesteps", r.tracker.Index(), r.tracker.Kind(), r.tracker.Elapsed(ts))
	if r.carrying != nil {
		if b, err := a.DropFreeBlock(r.ID, r.carrying.ID, r.pos); err == nil {
			r.carrying = nil
			r.blockExc.Add(b.ID, selection.Pickup)
			r.emit(events.Event{Kind: events.FreeBlockDrop, Block: b}, ts)
		}
	}
	r.finish(task.AbortPending, ts)
}

// validateTarget drops a target whose record is no longer held.
func (r *Robot) validateTarget() {
	var ok bool
	switch r.target.kind {
	case targetNone, targetNewCache:
		return
	case targetBlock, targetSite:
		ok = r.perception.Blocks().Contains(r.target.id)
	case targetCachePickup, targetCacheDrop:
		ok = r.perception.Caches().Contains(r.target.id)
	}
	if !ok {
		r.target = target{}
	}
}

// miss forgets a target the arena refused.
func (r *Robot) miss(err error) {
	r.stats.Misses++
	switch {
	case errors.Is(err, arena.ErrNotCache):
		r.perception.CacheVanished(r.target.id)
	case errors.Is(err, arena.ErrNoBlock) && r.target.kind == targetBlock:
		r.perception.BlockVanished(r.target.id)
	}
	r.target = target{}
}

func (r *Robot) step(dst entity.Coord) { r.pos = entity.StepToward(r.pos, dst) }

// acquire heads for and picks up a block.
func (r *Robot) acquire(a Arena, ts uint64) {
	if r.target.kind == targetNone {
		if r.tracker.Kind() == task.Collector {
			if rec, ok := r.cacheSel.SelectPickup(r.pos, r.perception.Caches().Values(), r.cacheExc); ok {
				r.target = target{kind: targetCachePickup, id: rec.ID(), loc: rec.Ent().Loc}
			}
		} else if rec, ok := r.blockSel.Select(r.pos, r.perception.Blocks().Values(), r.blockExc); ok {
			r.target = target{kind: targetBlock, id: rec.ID(), loc: rec.Ent().Loc}
		}
	}
	if r.target.kind == targetNone {
		r.explore(a)
		return
	}
	if r.pos != r.target.loc {
		r.step(r.target.loc)
		return
	}

	switch r.target.kind {
	case targetBlock:
		b, err := a.PickupFreeBlock(r.ID, r.target.id)
		if err != nil {
			r.miss(err)
			return
		}
		r.carrying = b
		r.stats.FreePickups++
		r.blockExc.Add(b.ID, selection.Pickup)
		r.emit(events.Event{Kind: events.FreeBlockPickup, ID: b.ID, Block: b}, ts)
	case targetCachePickup:
		res, err := a.PickupFromCache(r.ID, r.target.id, ts)
		if err != nil {
			r.miss(err)
			return
		}
		r.carrying = res.Block
		r.stats.CachePickups++
		r.cacheExc.Add(res.Cache.ID, selection.Pickup)
		r.emit(events.Event{Kind: events.CacheBlockPickup, Cache: res.Cache, Block: res.Block}, ts)
	}
	r.target = target{}
}

// deliver carries the held block to its destination. It reports whether
// the task completed.
func (r *Robot) deliver(a Arena, ts uint64) bool {
	if r.tracker.Kind() == task.Harvester && r.params.Caching != CacheNone {
		return r.toCache(a, ts)
	}
	return r.toNest(a, ts)
}

func (r *Robot) toNest(a Arena, ts uint64) bool {
	nest := a.Nest()
	dst := entity.Coord{
		X: min(max(r.pos.X, nest.Min.X), nest.Max.X),
		Y: min(max(r.pos.Y, nest.Min.Y), nest.Max.Y),
	}
	if r.pos != dst {
		r.step(dst)
		return false
	}
	b := r.carrying
	if err := a.DeliverToNest(r.ID, b.ID); err != nil {
		monitoring.Invariantf("robot", "robot %d task %d: nest refused carried block %d: %v",
			r.ID, r.tracker.Index(), b.ID, err)
	}
	r.carrying = nil
	r.stats.Delivered++
	r.emit(events.Event{Kind: events.NestDrop, Block: b}, ts)
	return true
}

func (r *Robot) toCache(a Arena, ts uint64) bool {
	if r.target.kind == targetNone {
		if rec, ok := r.cacheSel.SelectDrop(r.pos, r.perception.Caches().Values(), r.cacheExc); ok {
			r.target = target{kind: targetCacheDrop, id: rec.ID(), loc: rec.Ent().Loc}
		} else if r.params.Caching == CacheDynamic {
			r.pickSite(a)
		}
	}

	switch r.target.kind {
	case targetNone:
		r.explore(a)
		return false
	case targetCacheDrop:
		if r.pos != r.target.loc {
			r.step(r.target.loc)
			return false
		}
		b := r.carrying
		c, err := a.DropInCache(r.ID, b.ID, r.target.id)
		if err != nil {
			r.miss(err)
			return false
		}
		r.carrying = nil
		r.stats.CacheDrops++
		r.cacheExc.Add(c.ID, selection.Drop)
		r.emit(events.Event{Kind: events.CacheBlockDrop, Cache: c, Block: b}, ts)
		r.target = target{}
		return true
	}

	// Site or new-cache drop.
	if r.pos != r.target.loc {
		r.step(r.target.loc)
		return false
	}
	kind := events.CacheSiteDrop
	if r.target.kind == targetNewCache {
		kind = events.NewCacheDrop
	}
	b, err := a.DropFreeBlock(r.ID, r.carrying.ID, r.pos)
	if err != nil {
		r.miss(err)
		r.explore(a)
		return false
	}
	r.carrying = nil
	r.stats.SiteDrops++
	r.blockExc.Add(b.ID, selection.Pickup)
	r.emit(events.Event{Kind: kind, Block: b}, ts)
	a.FlagCacheCreation()
	r.target = target{}
	return true
}

// pickSite chooses where a dynamic harvester without a known cache drops
// its block: next to the closest known free block, or where it stands when
// that is far enough from the nest.
func (r *Robot) pickSite(a Arena) {
	nest := a.Nest()
	bounds := a.Bounds()
	var best *target
	bestD := 0.0
	for rec := range r.perception.Blocks().Values() {
		loc := rec.Ent().Loc
		if rec.Relevance() <= 0 || nest.Contains(loc) || r.blockExc.Contains(rec.ID(), selection.Pickup) {
			continue
		}
		site := entity.StepToward(loc, r.pos)
		if site == loc {
			site = entity.StepToward(loc, nest.Center())
		}
		if site == loc || !bounds.Contains(site) || nest.Contains(site) {
			continue
		}
		if d := entity.Dist(r.pos, site); best == nil || d < bestD {
			best = &target{kind: targetSite, id: rec.ID(), loc: site}
			bestD = d
		}
	}
	if best != nil {
		r.target = *best
		return
	}
	if entity.DistToRect(r.pos, nest) >= r.params.NewCacheNestDist && !nest.Contains(r.pos) {
		r.target = target{kind: targetNewCache, loc: r.pos}
	}
}

// explore walks towards a random cell, picking a new one on arrival.
func (r *Robot) explore(a Arena) {
	b := a.Bounds()
	if r.roam == nil || *r.roam == r.pos {
		dst := entity.Coord{
			X: b.Min.X + r.rng.IntN(b.Width()),
			Y: b.Min.Y + r.rng.IntN(b.Height()),
		}
		r.roam = &dst
	}
	r.step(*r.roam)
}
