// Package caches owns the lifecycle of the caches the simulation creates on
// its own: where static caches sit and when they come back, and where
// dynamic caches form from piles of free blocks.
package caches

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/banshee-data/swarm.forage/internal/arena"
	"github.com/banshee-data/swarm.forage/internal/arena/cluster"
	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/monitoring"
)

// Params configures both manager variants.
type Params struct {
	Static  bool
	Dynamic bool
	// MinBlocks is the smallest block cluster a dynamic cache forms from.
	MinBlocks int
	// MinDist is the cluster radius for dynamic caches and the minimum
	// distance between a new cache and the nest or another cache.
	MinDist           float64
	StrictConstraints bool
	// RespawnScaleFactor feeds RespawnProbability.
	RespawnScaleFactor float64
	// StaticSize is the number of blocks a static cache is built from.
	StaticSize int
	Seed       uint64
}

// Validate checks the params of the enabled variants.
func (p Params) Validate() error {
	if p.Static {
		if p.StaticSize < entity.MinCacheBlocks {
			return fmt.Errorf("static cache size %d below minimum %d", p.StaticSize, entity.MinCacheBlocks)
		}
		if p.RespawnScaleFactor <= 0 {
			return fmt.Errorf("respawn scale factor must be positive, got %v", p.RespawnScaleFactor)
		}
	}
	if p.Dynamic {
		if p.MinBlocks < entity.MinCacheBlocks {
			return fmt.Errorf("dynamic cache min blocks %d below minimum %d", p.MinBlocks, entity.MinCacheBlocks)
		}
		if p.MinDist <= 0 {
			return fmt.Errorf("dynamic cache min distance must be positive, got %v", p.MinDist)
		}
	}
	if p.MinDist < 0 {
		return fmt.Errorf("cache min distance must be non-negative, got %v", p.MinDist)
	}
	return nil
}

// Kind is the manager variant.
type Kind int

const (
	Static Kind = iota
	Dynamic
)

func (k Kind) String() string {
	if k == Static {
		return "static"
	}
	return "dynamic"
}

// Context is the read-only view of the arena a creation pass works from.
type Context struct {
	Timestep   uint64
	Caches     []*entity.Cache
	FreeBlocks []*entity.Block
}

// Installer builds a cache in the arena; *arena.Arena implements it.
type Installer interface {
	InstallCache(site entity.Coord, blockIDs []entity.ID, ts uint64, cons arena.Constraints) (*entity.Cache, error)
}

// Manager creates caches and tracks the ones it created. It is driven from
// the serial end-of-timestep pass and is not safe for concurrent use.
type Manager struct {
	kind    Kind
	params  Params
	inst    Installer
	sites   []entity.Coord // static only
	respawn RespawnProbability
	rng     *rand.Rand
	logf    func(format string, v ...interface{})

	managed   map[entity.ID]*entity.Cache
	lifetimes []uint64
	created   int
	depleted  int
	pending   bool
}

func newManager(k Kind, p Params, inst Installer) (*Manager, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache params: %w", err)
	}
	return &Manager{
		kind:    k,
		params:  p,
		inst:    inst,
		respawn: RespawnProbability{ScaleFactor: p.RespawnScaleFactor},
		rng:     rand.New(rand.NewPCG(p.Seed, uint64(k)+1)),
		logf:    monitoring.Component(k.String() + " caches"),
		managed: make(map[entity.ID]*entity.Cache),
	}, nil
}

// NewStatic returns a manager for caches at fixed sites: the midpoint
// between the nest centre and each block cluster centre.
func NewStatic(p Params, inst Installer, nest entity.Rect, clusters []entity.Rect) (*Manager, error) {
	if !p.Static {
		return nil, errors.New("static caches are disabled")
	}
	m, err := newManager(Static, p, inst)
	if err != nil {
		return nil, err
	}
	nc := nest.Center()
	for _, c := range clusters {
		cc := c.Center()
		m.sites = append(m.sites, entity.Coord{X: (nc.X + cc.X) / 2, Y: (nc.Y + cc.Y) / 2})
	}
	return m, nil
}

// NewDynamic returns a manager that forms caches from free-block clusters.
func NewDynamic(p Params, inst Installer) (*Manager, error) {
	if !p.Dynamic {
		return nil, errors.New("dynamic caches are disabled")
	}
	return newManager(Dynamic, p, inst)
}

func (m *Manager) Kind() Kind { return m.kind }

// Sites returns the static cache sites.
func (m *Manager) Sites() []entity.Coord { return slices.Clone(m.sites) }

func (m *Manager) constraints() arena.Constraints {
	return arena.Constraints{MinDist: m.params.MinDist, Strict: m.params.StrictConstraints}
}

// Create runs one creation pass and returns the caches it built. A rejected
// site is logged and left for the next pass.
func (m *Manager) Create(ctx Context) ([]*entity.Cache, bool) {
	var out []*entity.Cache
	if m.kind == Static {
		out = m.createStatic(ctx)
	} else {
		out = m.createDynamic(ctx)
	}
	for _, c := range out {
		m.managed[c.ID] = c
		m.created++
	}
	return out, len(out) > 0
}

// Request asks for a creation pass on the next CreatePending call.
func (m *Manager) Request() { m.pending = true }

// Pending reports whether a creation request is outstanding.
func (m *Manager) Pending() bool { return m.pending }

// CreatePending runs Create when a request is outstanding. The request is
// cleared once a pass builds a cache; a pass that builds nothing keeps it
// for the next timestep.
func (m *Manager) CreatePending(ctx Context) ([]*entity.Cache, bool) {
	if !m.pending {
		return nil, false
	}
	out, ok := m.Create(ctx)
	if ok {
		m.pending = false
	}
	return out, ok
}

// CreateConditional runs Create with the respawn probability computed from
// the task population.
func (m *Manager) CreateConditional(ctx Context, nHarvesters, nCollectors int) ([]*entity.Cache, bool) {
	p := m.respawn.Calc(nHarvesters, nCollectors)
	if m.rng.Float64() >= p {
		return nil, false
	}
	return m.Create(ctx)
}

// NeedsRespawn reports whether a static site has no live cache.
func (m *Manager) NeedsRespawn(live []*entity.Cache) bool {
	return len(m.vacantSites(live)) > 0
}

func (m *Manager) vacantSites(live []*entity.Cache) []entity.Coord {
	var out []entity.Coord
	for _, s := range m.sites {
		if !slices.ContainsFunc(live, func(c *entity.Cache) bool { return c.Covers(s) }) {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) createStatic(ctx Context) []*entity.Cache {
	used := make(map[entity.ID]bool)
	var out []*entity.Cache
	for _, site := range m.vacantSites(ctx.Caches) {
		free := slices.DeleteFunc(slices.Clone(ctx.FreeBlocks), func(b *entity.Block) bool { return used[b.ID] })
		if len(free) < m.params.StaticSize {
			m.logf("site %s: %d free blocks, need %d; retrying", site, len(free), m.params.StaticSize)
			continue
		}
		slices.SortStableFunc(free, func(a, b *entity.Block) int {
			da, db := entity.Dist(a.Loc, site), entity.Dist(b.Loc, site)
			switch {
			case da < db:
				return -1
			case da > db:
				return 1
			}
			return 0
		})
		ids := make([]entity.ID, m.params.StaticSize)
		for i := range ids {
			ids[i] = free[i].ID
		}
		c, err := m.inst.InstallCache(site, ids, ctx.Timestep, m.constraints())
		if err != nil {
			m.logf("t=%d: %v; retrying", ctx.Timestep, err)
			continue
		}
		for _, b := range c.Blocks {
			used[b.ID] = true
		}
		out = append(out, c)
	}
	return out
}

func (m *Manager) createDynamic(ctx Context) []*entity.Cache {
	cs := cluster.AtLeast(cluster.Blocks(ctx.FreeBlocks, cluster.Params{Eps: m.params.MinDist, MinPts: 2}), m.params.MinBlocks)
	if len(cs) == 0 {
		m.logf("t=%d: no block cluster of %d+ blocks", ctx.Timestep, m.params.MinBlocks)
		return nil
	}
	var out []*entity.Cache
	for _, cl := range cs {
		ids := make([]entity.ID, len(cl.Blocks))
		for i, b := range cl.Blocks {
			ids[i] = b.ID
		}
		c, err := m.inst.InstallCache(cl.Center(), ids, ctx.Timestep, m.constraints())
		if err != nil {
			m.logf("t=%d: cluster of %d: %v; retrying", ctx.Timestep, len(ids), err)
			continue
		}
		out = append(out, c)
	}
	return out
}

// OnDepletion records the lifetime of a depleted cache this manager owns.
// It reports whether the cache was managed.
func (m *Manager) OnDepletion(c *entity.Cache, ts uint64) bool {
	if _, ok := m.managed[c.ID]; !ok {
		return false
	}
	delete(m.managed, c.ID)
	m.depleted++
	var life uint64
	if ts > c.CreatedAt {
		life = ts - c.CreatedAt
	}
	m.lifetimes = append(m.lifetimes, life)
	return true
}

// Reconcile drops managed caches that are no longer live. It returns how
// many went missing without a depletion notice.
func (m *Manager) Reconcile(live []*entity.Cache) int {
	present := 0
	for _, c := range live {
		if _, ok := m.managed[c.ID]; ok {
			present++
		}
	}
	if present == len(m.managed) {
		return 0
	}
	missing := 0
	for id := range m.managed {
		if !slices.ContainsFunc(live, func(c *entity.Cache) bool { return c.ID == id }) {
			delete(m.managed, id)
			missing++
		}
	}
	m.logf("%d managed caches vanished without depletion", missing)
	return missing
}

// Lifetimes returns the recorded lifetimes in depletion order.
func (m *Manager) Lifetimes() []uint64 { return slices.Clone(m.lifetimes) }

func (m *Manager) Created() int      { return m.created }
func (m *Manager) Depleted() int     { return m.depleted }
func (m *Manager) ManagedCount() int { return len(m.managed) }
