// Package metrics collects per-timestep swarm measurements and cache
// lifetimes, and renders them as summaries, plots, dashboards and
// compressed logs.
package metrics

import (
	"slices"
	"sync"

	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/task"
)

// Snapshot is the state of a run at the end of one timestep.
type Snapshot struct {
	Timestep       uint64  `json:"t"`
	Collected      uint64  `json:"collected"`
	KnownPct       float64 `json:"known_pct"`
	UnknownPct     float64 `json:"unknown_pct"`
	CachesLive     int     `json:"caches_live"`
	CachesCreated  int     `json:"caches_created"`
	CachesDepleted int     `json:"caches_depleted"`
	DistEnabled    bool    `json:"dist_enabled"`
	Generalists    int     `json:"generalists"`
	Harvesters     int     `json:"harvesters"`
	Collectors     int     `json:"collectors"`
	Carrying       int     `json:"carrying"`
}

// CacheLifetime records one depleted cache.
type CacheLifetime struct {
	Kind       string    `json:"kind"`
	CacheID    entity.ID `json:"cache_id"`
	CreatedAt  uint64    `json:"created_at"`
	DepletedAt uint64    `json:"depleted_at"`
}

// Lifetime is the number of timesteps the cache lived.
func (l CacheLifetime) Lifetime() uint64 {
	if l.DepletedAt < l.CreatedAt {
		return 0
	}
	return l.DepletedAt - l.CreatedAt
}

// RobotSample is what one robot contributes to a snapshot.
type RobotSample struct {
	Task     task.Kind
	Carrying bool
	// KnownPct is only meaningful when HasMap is set.
	KnownPct float64
	HasMap   bool
}

// RobotTotals aggregates the samples of one timestep.
type RobotTotals struct {
	Generalists int
	Harvesters  int
	Collectors  int
	Carrying    int
	Mapped      int
	knownSum    float64
}

// KnownPct is the mean map coverage over robots with a semantic map, or
// zero when none has one.
func (t RobotTotals) KnownPct() float64 {
	if t.Mapped == 0 {
		return 0
	}
	return t.knownSum / float64(t.Mapped)
}

// Collector is safe for concurrent use. Robot samples arrive from the
// simulation worker pool; everything else from the serial pass.
type Collector struct {
	mu        sync.Mutex
	cur       RobotTotals
	snaps     []Snapshot
	lifetimes []CacheLifetime
}

func NewCollector() *Collector { return &Collector{} }

// AddRobot folds s into the current timestep's totals.
func (c *Collector) AddRobot(s RobotSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch s.Task {
	case task.Generalist:
		c.cur.Generalists++
	case task.Harvester:
		c.cur.Harvesters++
	case task.Collector:
		c.cur.Collectors++
	}
	if s.Carrying {
		c.cur.Carrying++
	}
	if s.HasMap {
		c.cur.Mapped++
		c.cur.knownSum += s.KnownPct
	}
}

// TakeRobots returns and resets the current timestep's totals.
func (c *Collector) TakeRobots() RobotTotals {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.cur
	c.cur = RobotTotals{}
	return t
}

// Record appends a finished snapshot.
func (c *Collector) Record(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, s)
}

// AddLifetime records a depleted cache.
func (c *Collector) AddLifetime(l CacheLifetime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lifetimes = append(c.lifetimes, l)
}

func (c *Collector) Snapshots() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.snaps)
}

func (c *Collector) Lifetimes() []CacheLifetime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.lifetimes)
}

// LifetimesByKind groups lifetimes, in timesteps, by cache kind.
func (c *Collector) LifetimesByKind() map[string][]float64 {
	out := make(map[string][]float64)
	for _, l := range c.Lifetimes() {
		out[l.Kind] = append(out[l.Kind], float64(l.Lifetime()))
	}
	return out
}
