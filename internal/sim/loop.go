// Package sim drives a foraging run: every timestep all robots sense in
// parallel, then act in parallel against the shared arena, then a serial
// pass runs cache management, the redistribution governor and metrics.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/swarm.forage/internal/arena"
	"github.com/banshee-data/swarm.forage/internal/arena/caches"
	"github.com/banshee-data/swarm.forage/internal/arena/governor"
	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/metrics"
	"github.com/banshee-data/swarm.forage/internal/monitoring"
	"github.com/banshee-data/swarm.forage/internal/robot"
	"github.com/banshee-data/swarm.forage/internal/task"
)

var logf = monitoring.Component("sim")

// Params configures a run.
type Params struct {
	Arena    arena.Params
	Caches   caches.Params
	Governor governor.Config
	// Robot is the template every robot is built from. Its cache mode is
	// derived from Caches.
	Robot  robot.Params
	Robots int
	// Workers bounds the per-robot goroutines. Zero means GOMAXPROCS.
	Workers int

	// HarvesterProb and SwitchOnAbort drive task allocation when caches
	// are enabled.
	HarvesterProb float64
	SwitchOnAbort float64

	ConvergenceWindow    int
	ConvergenceTolerance float64
	Seed                 uint64
}

// Validate checks the run-level params; the component params are checked
// by their constructors.
func (p Params) Validate() error {
	if p.Robots <= 0 {
		return fmt.Errorf("need at least one robot, got %d", p.Robots)
	}
	if p.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", p.Workers)
	}
	if p.HarvesterProb < 0 || p.HarvesterProb > 1 {
		return fmt.Errorf("harvester probability must be in [0,1], got %v", p.HarvesterProb)
	}
	if p.SwitchOnAbort < 0 || p.SwitchOnAbort > 1 {
		return fmt.Errorf("switch-on-abort probability must be in [0,1], got %v", p.SwitchOnAbort)
	}
	if p.ConvergenceWindow <= 0 {
		return fmt.Errorf("convergence window must be positive, got %d", p.ConvergenceWindow)
	}
	if p.ConvergenceTolerance < 0 {
		return fmt.Errorf("convergence tolerance must be non-negative, got %v", p.ConvergenceTolerance)
	}
	return nil
}

// Sink receives every snapshot as it is recorded.
type Sink interface {
	WriteSnapshot(metrics.Snapshot) error
}

// Loop owns one run.
type Loop struct {
	runID   string
	params  Params
	workers int

	arena   *arena.Arena
	robots  []*robot.Robot
	static  *caches.Manager
	dynamic *caches.Manager
	gov     *governor.Governor
	conv    *convergence
	metrics *metrics.Collector
	sinks   []Sink

	ts uint64
}

// CacheMode is the robot capability set implied by the enabled managers.
func (p Params) CacheMode() robot.CacheMode {
	switch {
	case p.Caches.Dynamic:
		return robot.CacheDynamic
	case p.Caches.Static:
		return robot.CacheStatic
	}
	return robot.CacheNone
}

// New builds the arena, the managers, the governor and the swarm.
func New(p Params) (*Loop, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run params: %w", err)
	}
	a, err := arena.New(p.Arena)
	if err != nil {
		return nil, err
	}
	gov, err := governor.New(p.Governor)
	if err != nil {
		return nil, fmt.Errorf("governor: %w", err)
	}
	l := &Loop{
		runID:   uuid.New().String(),
		params:  p,
		workers: p.Workers,
		arena:   a,
		gov:     gov,
		conv:    newConvergence(p.ConvergenceWindow, p.ConvergenceTolerance),
		metrics: metrics.NewCollector(),
	}
	if l.workers == 0 {
		l.workers = runtime.GOMAXPROCS(0)
	}
	if p.Caches.Static {
		if l.static, err = caches.NewStatic(p.Caches, a, p.Arena.Nest, p.Arena.Clusters); err != nil {
			return nil, err
		}
	}
	if p.Caches.Dynamic {
		if l.dynamic, err = caches.NewDynamic(p.Caches, a); err != nil {
			return nil, err
		}
	}
	if err := l.spawn(); err != nil {
		return nil, err
	}
	logf("run %s: %d robots (%s caching, %s perception), %d workers",
		l.runID, p.Robots, p.CacheMode(), p.Robot.Perception, l.workers)
	return l, nil
}

// spawn places the robots at random nest cells.
func (l *Loop) spawn() error {
	p := l.params
	rp := p.Robot
	rp.Caching = p.CacheMode()
	rng := rand.New(rand.NewPCG(p.Seed, 0x5eed))
	nest := p.Arena.Nest
	for i := range p.Robots {
		id := entity.ID(i)
		var alloc task.Allocator = task.Fixed(task.Generalist)
		if rp.Caching != robot.CacheNone {
			alloc = &task.Partitioned{
				Rand:          rand.New(rand.NewPCG(p.Seed, uint64(i)+1)),
				HarvesterProb: p.HarvesterProb,
				SwitchOnAbort: p.SwitchOnAbort,
			}
		}
		pos := entity.Coord{
			X: nest.Min.X + rng.IntN(nest.Width()),
			Y: nest.Min.Y + rng.IntN(nest.Height()),
		}
		start := alloc.Next(task.Generalist, false)
		r, err := robot.New(id, rp, p.Arena.XDim, p.Arena.YDim, nest, pos, start, alloc, p.Seed+uint64(i), 0)
		if err != nil {
			return err
		}
		l.robots = append(l.robots, r)
	}
	return nil
}

func (l *Loop) RunID() string                { return l.runID }
func (l *Loop) Params() Params               { return l.params }
func (l *Loop) Timestep() uint64             { return l.ts }
func (l *Loop) Arena() *arena.Arena          { return l.arena }
func (l *Loop) Robots() []*robot.Robot       { return l.robots }
func (l *Loop) Governor() *governor.Governor { return l.gov }
func (l *Loop) Metrics() *metrics.Collector  { return l.metrics }
func (l *Loop) Static() *caches.Manager      { return l.static }
func (l *Loop) Dynamic() *caches.Manager     { return l.dynamic }

// AddSink registers s for every subsequent snapshot.
func (l *Loop) AddSink(s Sink) { l.sinks = append(l.sinks, s) }

// each runs fn for every robot on the worker pool. An invariant violation
// inside fn is returned as an error naming the robot.
func (l *Loop) each(ctx context.Context, ts uint64, fn func(*robot.Robot)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for _, r := range l.robots {
		g.Go(func() (err error) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			defer func() {
				if err != nil {
					err = fmt.Errorf("%s at t=%d: %w", r, ts, err)
				}
			}()
			defer monitoring.RecoverInvariant(&err)
			fn(r)
			return nil
		})
	}
	return g.Wait()
}

// Step advances the run by one timestep and returns its snapshot.
func (l *Loop) Step(ctx context.Context) (metrics.Snapshot, error) {
	ts := l.ts
	if ts == 0 && l.static != nil {
		if err := l.serial(func() { l.static.Create(l.context(ts)) }); err != nil {
			return metrics.Snapshot{}, fmt.Errorf("initial static caches: %w", err)
		}
	}
	if err := l.each(ctx, ts, func(r *robot.Robot) { r.Sense(l.arena, ts) }); err != nil {
		return metrics.Snapshot{}, fmt.Errorf("sense: %w", err)
	}
	if err := l.each(ctx, ts, func(r *robot.Robot) {
		r.Act(l.arena, ts)
		l.metrics.AddRobot(sample(r))
	}); err != nil {
		return metrics.Snapshot{}, fmt.Errorf("act: %w", err)
	}
	var snap metrics.Snapshot
	if err := l.serial(func() { snap = l.postStep(ts) }); err != nil {
		return metrics.Snapshot{}, fmt.Errorf("t=%d: %w", ts, err)
	}
	l.ts++
	return snap, nil
}

func (l *Loop) serial(fn func()) (err error) {
	defer monitoring.RecoverInvariant(&err)
	fn()
	return nil
}

func sample(r *robot.Robot) metrics.RobotSample {
	s := metrics.RobotSample{Task: r.TaskKind(), Carrying: r.Carrying() != nil}
	s.KnownPct, s.HasMap = r.KnownCellsPct()
	return s
}

func (l *Loop) context(ts uint64) caches.Context {
	return caches.Context{Timestep: ts, Caches: l.arena.Caches(), FreeBlocks: l.arena.FreeBlocks()}
}

func (l *Loop) managers() []*caches.Manager {
	var out []*caches.Manager
	for _, m := range []*caches.Manager{l.static, l.dynamic} {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (l *Loop) postStep(ts uint64) metrics.Snapshot {
	l.arena.Publish()
	for _, d := range l.arena.TakeDepletions() {
		kind := "unmanaged"
		for _, m := range l.managers() {
			if m.OnDepletion(d.Cache, d.Timestep) {
				kind = m.Kind().String()
				break
			}
		}
		l.metrics.AddLifetime(metrics.CacheLifetime{
			Kind:       kind,
			CacheID:    d.Cache.ID,
			CreatedAt:  d.Cache.CreatedAt,
			DepletedAt: d.Timestep,
		})
	}

	totals := l.metrics.TakeRobots()
	if l.arena.TakeCacheCreationFlag() && l.dynamic != nil {
		l.dynamic.Request()
	}
	if l.dynamic != nil {
		l.dynamic.CreatePending(l.context(ts))
	}
	if l.static != nil && l.static.NeedsRespawn(l.arena.Caches()) {
		l.static.CreateConditional(l.context(ts), totals.Harvesters, totals.Collectors)
	}
	live := l.arena.Caches()
	for _, m := range l.managers() {
		m.Reconcile(live)
	}

	converged := l.conv.Update(totals.Harvesters, totals.Collectors)
	collected := l.arena.Collected()
	l.gov.Update(ts, collected, converged)
	l.arena.SetRedistribution(l.gov.Enabled())

	snap := metrics.Snapshot{
		Timestep:    ts,
		Collected:   collected,
		CachesLive:  len(live),
		DistEnabled: l.gov.Enabled(),
		Generalists: totals.Generalists,
		Harvesters:  totals.Harvesters,
		Collectors:  totals.Collectors,
		Carrying:    totals.Carrying,
	}
	if totals.Mapped > 0 {
		snap.KnownPct = totals.KnownPct()
		snap.UnknownPct = 100 - snap.KnownPct
	}
	for _, m := range l.managers() {
		snap.CachesCreated += m.Created()
		snap.CachesDepleted += m.Depleted()
	}
	l.metrics.Record(snap)
	for _, s := range l.sinks {
		if err := s.WriteSnapshot(snap); err != nil {
			logf("t=%d: snapshot sink: %v", ts, err)
		}
	}
	return snap
}

// Run steps the loop n times or until ctx is cancelled. Cancellation is
// not an error.
func (l *Loop) Run(ctx context.Context, n uint64) error {
	every := max(n/10, 1)
	for i := uint64(0); i < n; i++ {
		if ctx.Err() != nil {
			logf("run %s cancelled at t=%d", l.runID, l.ts)
			return nil
		}
		snap, err := l.Step(ctx)
		if err != nil {
			if ctx.Err() != nil && !errors.Is(err, monitoring.ErrInvariant) {
				logf("run %s cancelled at t=%d", l.runID, l.ts)
				return nil
			}
			return err
		}
		if (i+1)%every == 0 {
			logf("t=%d collected=%d caches=%d distributing=%v", snap.Timestep, snap.Collected, snap.CachesLive, snap.DistEnabled)
		}
	}
	return nil
}

// LifetimeSummaries summarises depleted-cache lifetimes per cache kind.
func (l *Loop) LifetimeSummaries() map[string]metrics.Summary {
	out := make(map[string]metrics.Summary)
	for kind, xs := range l.metrics.LifetimesByKind() {
		out[kind] = metrics.Summarize(xs)
	}
	return out
}
