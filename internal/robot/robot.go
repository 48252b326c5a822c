// Package robot is the foraging agent. A robot is composed from a
// perception module, exception lists, a task tracker and a set of arena
// interaction capabilities chosen at construction time.
package robot

import (
	"fmt"
	"math/rand/v2"

	"github.com/banshee-data/swarm.forage/internal/arena"
	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/events"
	"github.com/banshee-data/swarm.forage/internal/monitoring"
	"github.com/banshee-data/swarm.forage/internal/perception/density"
	"github.com/banshee-data/swarm.forage/internal/perception/los"
	"github.com/banshee-data/swarm.forage/internal/selection"
	"github.com/banshee-data/swarm.forage/internal/task"
)

// CacheMode selects which cache interactions a robot is built with.
type CacheMode int

const (
	// CacheNone robots only deliver free blocks to the nest.
	CacheNone CacheMode = iota
	// CacheStatic robots also pick up from and drop into existing caches.
	CacheStatic
	// CacheDynamic robots can additionally drop blocks to seed new caches.
	CacheDynamic
)

func (m CacheMode) String() string {
	switch m {
	case CacheNone:
		return "none"
	case CacheStatic:
		return "static"
	case CacheDynamic:
		return "dynamic"
	}
	return fmt.Sprintf("cachemode(%d)", int(m))
}

// ParseCacheMode maps a tuning string to a CacheMode.
func ParseCacheMode(s string) (CacheMode, error) {
	switch s {
	case "none", "":
		return CacheNone, nil
	case "static":
		return CacheStatic, nil
	case "dynamic":
		return CacheDynamic, nil
	}
	return 0, fmt.Errorf("unknown cache mode %q", s)
}

// Params configures a robot.
type Params struct {
	LOSRadius  int
	Perception PerceptionKind
	Density    density.Params
	Caching    CacheMode
	// MaxTaskTimesteps aborts a task that runs longer. Zero disables.
	MaxTaskTimesteps uint64
	// NewCacheNestDist is how far from the nest a dynamic harvester must be
	// before it drops a block to seed a new cache.
	NewCacheNestDist float64
}

// Validate checks p.
func (p Params) Validate() error {
	if p.LOSRadius < 0 {
		return fmt.Errorf("line-of-sight radius must be non-negative, got %d", p.LOSRadius)
	}
	if err := p.Density.Validate(); err != nil {
		return fmt.Errorf("density: %w", err)
	}
	if p.NewCacheNestDist < 0 {
		return fmt.Errorf("new cache nest distance must be non-negative, got %v", p.NewCacheNestDist)
	}
	return nil
}

// Arena is the part of *arena.Arena a robot senses and acts on.
type Arena interface {
	Bounds() entity.Rect
	Nest() entity.Rect
	LOS(center entity.Coord, radius int, ts uint64) los.Snapshot
	Oracle(ts uint64) los.Snapshot
	PickupFreeBlock(robot, blockID entity.ID) (*entity.Block, error)
	DropFreeBlock(robot, blockID entity.ID, loc entity.Coord) (*entity.Block, error)
	PickupFromCache(robot, cacheID entity.ID, ts uint64) (arena.CachePickup, error)
	DropInCache(robot, blockID, cacheID entity.ID) (*entity.Cache, error)
	DeliverToNest(robot, blockID entity.ID) error
	FlagCacheCreation()
}

var _ Arena = (*arena.Arena)(nil)

type targetKind int

const (
	targetNone targetKind = iota
	targetBlock
	targetCachePickup
	targetCacheDrop
	targetSite     // free cell next to a known block
	targetNewCache // current cell, far enough from the nest
)

type target struct {
	kind targetKind
	id   entity.ID // block or cache the target is anchored to
	loc  entity.Coord
}

// Stats counts what a robot has done.
type Stats struct {
	FreePickups  int
	CachePickups int
	CacheDrops   int
	SiteDrops    int
	Delivered    int
	Misses       int
}

// Robot is one foraging agent. Sense and Act are called from the
// simulation's worker pool; each robot is only ever touched by one
// goroutine at a time.
type Robot struct {
	ID     entity.ID
	params Params
	pos    entity.Coord

	perception Perception
	oracle     bool
	pending    []events.Event // oracle outcomes awaiting the next snapshot

	blockExc *selection.Exceptions
	cacheExc *selection.Exceptions
	blockSel selection.BlockSelector
	cacheSel selection.CacheSelector

	tracker *task.Tracker
	alloc   task.Allocator
	caps    any

	carrying *entity.Block
	target   target
	roam     *entity.Coord
	rng      *rand.Rand
	stats    Stats
	logf     func(format string, v ...interface{})
}

// New builds a robot at pos that starts on task kind start at timestep ts.
func New(id entity.ID, p Params, xdim, ydim int, nest entity.Rect, pos entity.Coord,
	start task.Kind, alloc task.Allocator, seed uint64, ts uint64) (*Robot, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("robot %d: %w", id, err)
	}
	if p.Caching == CacheNone && start != task.Generalist {
		return nil, fmt.Errorf("robot %d: %s task needs caches enabled", id, start)
	}
	r := &Robot{
		ID:       id,
		params:   p,
		pos:      pos,
		oracle:   p.Perception == PerceptionOracle,
		blockExc: selection.NewBlockExceptions(),
		cacheExc: selection.NewCacheExceptions(),
		blockSel: selection.BlockSelector{Nest: nest},
		cacheSel: selection.CacheSelector{Nest: nest},
		tracker:  task.NewTracker(start, ts),
		alloc:    alloc,
		rng:      rand.New(rand.NewPCG(seed, uint64(id))),
		logf:     monitoring.Component(fmt.Sprintf("robot %d", id)),
	}
	r.perception = newPerception(p.Perception, xdim, ydim, p.Density)
	r.tracker.OnFinished(r.blockExc.TaskFinished)
	r.tracker.OnFinished(r.cacheExc.TaskFinished)
	r.caps = capabilitiesFor(r, p.Caching)
	return r, nil
}

func (r *Robot) Pos() entity.Coord                      { return r.pos }
func (r *Robot) TaskKind() task.Kind                    { return r.tracker.Kind() }
func (r *Robot) Tracker() *task.Tracker                 { return r.tracker }
func (r *Robot) Perception() Perception                 { return r.perception }
func (r *Robot) Carrying() *entity.Block                { return r.carrying }
func (r *Robot) BlockExceptions() *selection.Exceptions { return r.blockExc }
func (r *Robot) CacheExceptions() *selection.Exceptions { return r.cacheExc }
func (r *Robot) Stats() Stats                           { return r.stats }
func (r *Robot) Oracle() bool                           { return r.oracle }

// KnownCellsPct reports the map coverage of robots with a semantic map.
func (r *Robot) KnownCellsPct() (float64, bool) {
	if m, ok := r.perception.(interface{ KnownCellsPct() float64 }); ok {
		return m.KnownCellsPct(), true
	}
	return 0, false
}

func (r *Robot) String() string {
	return fmt.Sprintf("robot %d@%s %s#%d", r.ID, r.pos, r.tracker.Kind(), r.tracker.Index())
}
