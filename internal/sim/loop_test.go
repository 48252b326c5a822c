package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swarm.forage/internal/arena"
	"github.com/banshee-data/swarm.forage/internal/arena/caches"
	"github.com/banshee-data/swarm.forage/internal/arena/governor"
	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/metrics"
	"github.com/banshee-data/swarm.forage/internal/monitoring"
	"github.com/banshee-data/swarm.forage/internal/perception/density"
	"github.com/banshee-data/swarm.forage/internal/robot"
)

func at(x, y int) entity.Coord { return entity.Coord{X: x, Y: y} }

func testParams() Params {
	return Params{
		Arena: arena.Params{
			XDim:     20,
			YDim:     20,
			Nest:     entity.Rect{Min: at(0, 0), Max: at(2, 2)},
			Clusters: []entity.Rect{{Min: at(12, 12), Max: at(16, 16)}},
			NBlocks:  10,
			Seed:     3,
		},
		Governor: governor.Config{Trigger: "none"},
		Robot: robot.Params{
			LOSRadius:  4,
			Perception: robot.PerceptionOracle,
			Density:    density.DefaultParams(),
		},
		Robots:               4,
		Workers:              2,
		HarvesterProb:        0.5,
		SwitchOnAbort:        0.5,
		ConvergenceWindow:    10,
		ConvergenceTolerance: 0.1,
		Seed:                 11,
	}
}

func newLoop(t *testing.T, p Params) *Loop {
	t.Helper()
	l, err := New(p)
	require.NoError(t, err)
	return l
}

type recordingSink struct{ snaps []metrics.Snapshot }

func (s *recordingSink) WriteSnapshot(snap metrics.Snapshot) error {
	s.snaps = append(s.snaps, snap)
	return nil
}

func TestParams_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, testParams().Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"no robots", func(p *Params) { p.Robots = 0 }},
		{"negative workers", func(p *Params) { p.Workers = -1 }},
		{"harvester prob", func(p *Params) { p.HarvesterProb = 1.5 }},
		{"switch prob", func(p *Params) { p.SwitchOnAbort = -0.1 }},
		{"window", func(p *Params) { p.ConvergenceWindow = 0 }},
		{"tolerance", func(p *Params) { p.ConvergenceTolerance = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := testParams()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
			_, err := New(p)
			assert.Error(t, err)
		})
	}
}

func TestNew_BadComponents(t *testing.T) {
	t.Parallel()

	p := testParams()
	p.Governor.Trigger = "whenever"
	_, err := New(p)
	assert.ErrorIs(t, err, governor.ErrUnknownTrigger)

	p = testParams()
	p.Arena.NBlocks = 1000
	_, err = New(p)
	assert.Error(t, err)
}

func TestParams_CacheMode(t *testing.T) {
	t.Parallel()

	p := testParams()
	assert.Equal(t, robot.CacheNone, p.CacheMode())
	p.Caches.Static = true
	assert.Equal(t, robot.CacheStatic, p.CacheMode())
	p.Caches.Dynamic = true
	assert.Equal(t, robot.CacheDynamic, p.CacheMode())
}

func TestLoop_GeneralistsCollect(t *testing.T) {
	t.Parallel()

	l := newLoop(t, testParams())
	sink := &recordingSink{}
	l.AddSink(sink)
	assert.NotEmpty(t, l.RunID())
	for _, r := range l.Robots() {
		assert.True(t, l.Params().Arena.Nest.Contains(r.Pos()))
	}

	require.NoError(t, l.Run(context.Background(), 100))

	assert.Equal(t, uint64(100), l.Timestep())
	snaps := l.Metrics().Snapshots()
	require.Len(t, snaps, 100)
	assert.Equal(t, snaps, sink.snaps)
	last := snaps[len(snaps)-1]
	assert.Positive(t, last.Collected)
	assert.Equal(t, 4, last.Generalists)
	assert.Zero(t, last.Harvesters+last.Collectors)
	assert.True(t, last.DistEnabled)
	assert.Equal(t, uint64(10), uint64(l.Arena().BlockCount()), "delivered blocks are redistributed")
	for i := 1; i < len(snaps); i++ {
		assert.GreaterOrEqual(t, snaps[i].Collected, snaps[i-1].Collected)
	}
}

func TestLoop_BlockCountGovernorStopsRedistribution(t *testing.T) {
	t.Parallel()

	p := testParams()
	p.Governor = governor.Config{Trigger: "block_count", BlockCount: 1}
	l := newLoop(t, p)

	require.NoError(t, l.Run(context.Background(), 100))

	assert.Positive(t, l.Arena().Collected())
	assert.False(t, l.Governor().Enabled())
	assert.False(t, l.Arena().Redistributing())
	snaps := l.Metrics().Snapshots()
	assert.True(t, snaps[0].DistEnabled)
	assert.False(t, snaps[len(snaps)-1].DistEnabled)
}

func TestLoop_MapCoverage(t *testing.T) {
	t.Parallel()

	p := testParams()
	p.Robot.Perception = robot.PerceptionMap
	l := newLoop(t, p)

	snap, err := l.Step(context.Background())
	require.NoError(t, err)
	assert.Positive(t, snap.KnownPct)
	assert.InDelta(t, 100, snap.KnownPct+snap.UnknownPct, 1e-9)
}

func TestLoop_StaticCachesAtStart(t *testing.T) {
	t.Parallel()

	p := testParams()
	p.Caches = caches.Params{Static: true, StaticSize: 3, RespawnScaleFactor: 1, MinDist: 1, Seed: 1}
	l := newLoop(t, p)
	require.NotNil(t, l.Static())
	assert.Nil(t, l.Dynamic())
	assert.Equal(t, []entity.Coord{at(7, 7)}, l.Static().Sites())

	snap, err := l.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.CachesLive)
	assert.Equal(t, 1, snap.CachesCreated)
	assert.Equal(t, p.Robots, snap.Harvesters+snap.Collectors)
	assert.Zero(t, snap.Generalists)

	c := l.Arena().Caches()[0]
	assert.Equal(t, at(7, 7), c.Loc)

	// Drain the cache by hand and check the depletion is attributed.
	_, err = l.Arena().PickupFromCache(99, c.ID, 5)
	require.NoError(t, err)
	res, err := l.Arena().PickupFromCache(99, c.ID, 5)
	require.NoError(t, err)
	require.True(t, res.Depleted)

	snap = l.postStep(5)
	assert.Equal(t, 1, snap.CachesDepleted)
	assert.Equal(t, map[string][]float64{"static": {5}}, l.Metrics().LifetimesByKind())
	assert.Equal(t, 0, l.Static().ManagedCount())
	assert.Equal(t, 1, l.LifetimeSummaries()["static"].N)
}

func TestLoop_FlaggedDynamicCreation(t *testing.T) {
	t.Parallel()

	p := testParams()
	p.Arena.Clusters = []entity.Rect{{Min: at(10, 10), Max: at(12, 12)}}
	p.Arena.NBlocks = 9
	p.Caches = caches.Params{Dynamic: true, MinBlocks: 3, MinDist: 1.5, Seed: 1}
	l := newLoop(t, p)

	snap := l.postStep(0)
	assert.Zero(t, snap.CachesLive, "no creation without a flag")

	l.Arena().FlagCacheCreation()
	snap = l.postStep(1)
	assert.Equal(t, 1, snap.CachesLive)
	assert.Equal(t, 1, snap.CachesCreated)
	c := l.Arena().Caches()[0]
	assert.Equal(t, at(11, 11), c.Loc)
	assert.Equal(t, 9, c.NBlocks())
	assert.False(t, l.Arena().TakeCacheCreationFlag())
}

func TestLoop_DynamicCreationRetriesRejectedSite(t *testing.T) {
	t.Parallel()

	p := testParams()
	p.Arena.Clusters = []entity.Rect{{Min: at(10, 10), Max: at(12, 12)}}
	p.Arena.NBlocks = 9
	p.Caches = caches.Params{Dynamic: true, MinBlocks: 3, MinDist: 3, StrictConstraints: true, Seed: 1}
	l := newLoop(t, p)

	// A cache on the cluster corner is too close to the centre of the rest.
	var ids []entity.ID
	for _, b := range l.Arena().FreeBlocks() {
		if b.Loc == at(12, 12) || b.Loc == at(12, 11) {
			ids = append(ids, b.ID)
		}
	}
	require.Len(t, ids, 2)
	blocker, err := l.Arena().InstallCache(at(12, 12), ids, 0, arena.Constraints{})
	require.NoError(t, err)

	l.Arena().FlagCacheCreation()
	l.postStep(1)
	assert.Zero(t, l.Dynamic().Created(), "site rejected")
	assert.True(t, l.Dynamic().Pending())
	require.Len(t, l.Arena().Caches(), 1)

	res, err := l.Arena().PickupFromCache(99, blocker.ID, 2)
	require.NoError(t, err)
	require.True(t, res.Depleted)

	snap := l.postStep(2)
	assert.Equal(t, 1, l.Dynamic().Created(), "retried without a new flag")
	assert.False(t, l.Dynamic().Pending())
	assert.Equal(t, 1, snap.CachesLive)
	c := l.Arena().Caches()[0]
	assert.Equal(t, at(10, 11), c.Loc)
	assert.Equal(t, 8, c.NBlocks())
}

func TestLoop_InvariantNamesRobot(t *testing.T) {
	t.Parallel()

	l := newLoop(t, testParams())
	err := l.each(context.Background(), 3, func(r *robot.Robot) {
		if r.ID == 2 {
			monitoring.Invariantf("test", "bad state")
		}
	})
	require.ErrorIs(t, err, monitoring.ErrInvariant)
	assert.Contains(t, err.Error(), "robot 2@")
	assert.Contains(t, err.Error(), "t=3")
}

func TestLoop_RunCancelled(t *testing.T) {
	t.Parallel()

	l := newLoop(t, testParams())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, l.Run(ctx, 50))
	assert.Zero(t, l.Timestep())
}

func TestConvergence(t *testing.T) {
	t.Parallel()

	c := newConvergence(3, 0.1)
	assert.False(t, c.Update(5, 5))
	assert.False(t, c.Update(5, 5), "window not yet full")
	assert.True(t, c.Update(5, 5))
	assert.False(t, c.Update(9, 1))
	assert.False(t, c.Update(9, 1))
	assert.True(t, c.Update(9, 1))
	assert.False(t, c.Update(0, 0), "an all-generalist timestep breaks the streak")
}
