package events

import "github.com/banshee-data/swarm.forage/internal/monitoring"

// FreeBlockInteractor handles pickups and drops of free blocks, including
// nest deliveries.
type FreeBlockInteractor interface {
	HandleFreeBlockPickup(ev Event)
	HandleFreeBlockDrop(ev Event)
}

// ExistingCacheInteractor handles interactions with caches that already
// exist.
type ExistingCacheInteractor interface {
	HandleCacheBlockPickup(ev Event)
	HandleCacheBlockDrop(ev Event)
}

// DynamicCacheInteractor handles drops that seed or site a new cache.
type DynamicCacheInteractor interface {
	HandleCacheSiteDrop(ev Event)
	HandleNewCacheDrop(ev Event)
}

// Dispatch routes an interaction outcome to the capability of target that
// handles it. A target lacking the capability is an invariant violation.
func Dispatch(target any, ev Event) {
	switch ev.Kind {
	case FreeBlockPickup, FreeBlockDrop, NestDrop:
		h, ok := target.(FreeBlockInteractor)
		if !ok {
			break
		}
		if ev.Kind == FreeBlockPickup {
			h.HandleFreeBlockPickup(ev)
		} else {
			h.HandleFreeBlockDrop(ev)
		}
		return
	case CacheBlockPickup, CacheBlockDrop:
		h, ok := target.(ExistingCacheInteractor)
		if !ok {
			break
		}
		if ev.Kind == CacheBlockPickup {
			h.HandleCacheBlockPickup(ev)
		} else {
			h.HandleCacheBlockDrop(ev)
		}
		return
	case CacheSiteDrop, NewCacheDrop:
		h, ok := target.(DynamicCacheInteractor)
		if !ok {
			break
		}
		if ev.Kind == CacheSiteDrop {
			h.HandleCacheSiteDrop(ev)
		} else {
			h.HandleNewCacheDrop(ev)
		}
		return
	default:
		monitoring.Invariantf("events", "%s is not an interaction outcome", ev.Kind)
	}
	monitoring.Invariantf("events", "robot %d (%T) cannot handle %s", ev.Robot, target, ev)
}
