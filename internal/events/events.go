// Package events defines the closed set of reconciliation events that keep
// a robot's perception in step with the arena, and the capability
// interfaces through which arena interaction outcomes reach a robot.
package events

import (
	"fmt"

	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/monitoring"
)

// Kind discriminates Event.
type Kind int

const (
	// Line-of-sight events.
	BlockFound Kind = iota
	CacheFound
	BlockVanished
	CacheVanished

	// Interaction outcomes.
	FreeBlockPickup
	FreeBlockDrop
	CacheBlockPickup
	CacheBlockDrop
	CacheSiteDrop // free block dropped at a chosen static cache site
	NewCacheDrop  // free block dropped to seed a dynamic cache
	NestDrop      // block delivered to the nest
)

var kindNames = [...]string{
	BlockFound:       "block-found",
	CacheFound:       "cache-found",
	BlockVanished:    "block-vanished",
	CacheVanished:    "cache-vanished",
	FreeBlockPickup:  "free-block-pickup",
	FreeBlockDrop:    "free-block-drop",
	CacheBlockPickup: "cache-block-pickup",
	CacheBlockDrop:   "cache-block-drop",
	CacheSiteDrop:    "cache-site-drop",
	NewCacheDrop:     "new-cache-drop",
	NestDrop:         "nest-drop",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsInteraction reports whether k is an arena interaction outcome rather
// than a line-of-sight observation.
func (k Kind) IsInteraction() bool { return k >= FreeBlockPickup }

// Event is one reconciliation step. Which fields are set depends on Kind:
//
//	BlockFound, FreeBlockDrop, CacheSiteDrop, NewCacheDrop, NestDrop: Block
//	CacheFound: Cache
//	BlockVanished, CacheVanished, FreeBlockPickup: ID
//	CacheBlockPickup, CacheBlockDrop: Cache (id is read) and Block
//
// Entities carried by events are arena clones owned by the receiver.
type Event struct {
	Kind     Kind
	ID       entity.ID
	Block    *entity.Block
	Cache    *entity.Cache
	Robot    int
	Timestep uint64
}

func (e Event) String() string {
	switch {
	case e.Cache != nil && e.Block != nil:
		return fmt.Sprintf("%s %s %s t=%d", e.Kind, e.Cache, e.Block, e.Timestep)
	case e.Cache != nil:
		return fmt.Sprintf("%s %s t=%d", e.Kind, e.Cache, e.Timestep)
	case e.Block != nil:
		return fmt.Sprintf("%s %s t=%d", e.Kind, e.Block, e.Timestep)
	}
	return fmt.Sprintf("%s id=%d t=%d", e.Kind, e.ID, e.Timestep)
}

// Reconciler is a perception model that events can be replayed into. The
// bool results report whether the targeted record existed.
type Reconciler interface {
	BlockFound(b *entity.Block)
	CacheFound(c *entity.Cache)
	BlockVanished(id entity.ID) bool
	CacheVanished(id entity.ID) bool
	BlockPickup(id entity.ID) bool
	BlockDrop(b *entity.Block)
	CacheBlockPickup(cacheID, blockID entity.ID) bool
	CacheBlockDrop(cacheID entity.ID, b *entity.Block) bool
}

// Reconcile applies ev to r. It returns false when the event targeted a
// record r does not hold; what that means is the caller's decision.
func Reconcile(r Reconciler, ev Event) bool {
	switch ev.Kind {
	case BlockFound:
		r.BlockFound(ev.Block)
	case CacheFound:
		r.CacheFound(ev.Cache)
	case BlockVanished:
		return r.BlockVanished(ev.ID)
	case CacheVanished:
		return r.CacheVanished(ev.ID)
	case FreeBlockPickup:
		return r.BlockPickup(ev.ID)
	case FreeBlockDrop, CacheSiteDrop, NewCacheDrop:
		r.BlockDrop(ev.Block)
	case CacheBlockPickup:
		return r.CacheBlockPickup(ev.Cache.ID, ev.Block.ID)
	case CacheBlockDrop:
		return r.CacheBlockDrop(ev.Cache.ID, ev.Block)
	case NestDrop:
		// Delivered blocks leave the arena; nothing to remember.
	default:
		monitoring.Invariantf("events", "unknown event %s", ev.Kind)
	}
	return true
}
