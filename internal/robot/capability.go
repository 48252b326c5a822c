package robot

import "github.com/banshee-data/swarm.forage/internal/events"

// The capability sets nest: a dynamic-cache robot can do everything a
// static-cache robot can, which can do everything a plain forager can.

type freeBlockCaps struct{ r *Robot }

func (c freeBlockCaps) HandleFreeBlockPickup(ev events.Event) { c.r.outcome(ev) }
func (c freeBlockCaps) HandleFreeBlockDrop(ev events.Event)   { c.r.outcome(ev) }

type existingCacheCaps struct{ freeBlockCaps }

func (c existingCacheCaps) HandleCacheBlockPickup(ev events.Event) { c.r.outcome(ev) }
func (c existingCacheCaps) HandleCacheBlockDrop(ev events.Event)   { c.r.outcome(ev) }

type dynamicCacheCaps struct{ existingCacheCaps }

func (c dynamicCacheCaps) HandleCacheSiteDrop(ev events.Event) { c.r.outcome(ev) }
func (c dynamicCacheCaps) HandleNewCacheDrop(ev events.Event)  { c.r.outcome(ev) }

func capabilitiesFor(r *Robot, m CacheMode) any {
	base := freeBlockCaps{r: r}
	switch m {
	case CacheStatic:
		return existingCacheCaps{base}
	case CacheDynamic:
		return dynamicCacheCaps{existingCacheCaps{base}}
	}
	return base
}

// outcome feeds an interaction result back into the robot's own model.
// Oracle-fed robots hold it until after their next snapshot.
func (r *Robot) outcome(ev events.Event) {
	if r.oracle {
		r.pending = append(r.pending, ev)
		return
	}
	r.reconcile(ev)
}

// emit routes ev through the robot's capabilities.
func (r *Robot) emit(ev events.Event, ts uint64) {
	ev.Robot = int(r.ID)
	ev.Timestep = ts
	events.Dispatch(r.caps, ev)
}
