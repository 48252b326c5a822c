package arena

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/grid"
)

func at(x, y int) entity.Coord { return entity.Coord{X: x, Y: y} }

func testParams(n int) Params {
	return Params{
		XDim:     20,
		YDim:     20,
		Nest:     entity.Rect{Min: at(0, 0), Max: at(1, 1)},
		Clusters: []entity.Rect{{Min: at(10, 10), Max: at(14, 14)}},
		NBlocks:  n,
		Seed:     1,
	}
}

func newArena(t *testing.T, p Params) *Arena {
	t.Helper()
	a, err := New(p)
	require.NoError(t, err)
	return a
}

// putBlock places a new free block at loc.
func putBlock(t *testing.T, a *Arena, loc entity.Coord) *entity.Block {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	b := entity.NewBlock(a.nextBlock, loc)
	a.nextBlock++
	a.blocks[b.ID] = b
	require.NoError(t, a.grid.At(loc).EnterBlock(b))
	return b
}

func TestParams_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, testParams(10).Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero size", func(p *Params) { p.XDim = 0 }},
		{"nest outside", func(p *Params) { p.Nest.Max = at(25, 1) }},
		{"no clusters", func(p *Params) { p.Clusters = nil }},
		{"cluster over nest", func(p *Params) { p.Clusters = append(p.Clusters, entity.Rect{Max: at(3, 3)}) }},
		{"too many blocks", func(p *Params) { p.NBlocks = 26 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(10)
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}

	_, err := New(Params{})
	assert.Error(t, err)
}

func TestNew_DistributesInClusters(t *testing.T) {
	t.Parallel()

	a := newArena(t, testParams(25))
	free := a.FreeBlocks()
	require.Len(t, free, 25, "a full cluster is filled by the fallback scan")
	seen := map[entity.Coord]bool{}
	for _, b := range free {
		assert.True(t, a.Params().Clusters[0].Contains(b.Loc))
		assert.False(t, seen[b.Loc])
		seen[b.Loc] = true
	}
	assert.Equal(t, 25, a.BlockCount())
}

func TestFreeBlockLifecycle(t *testing.T) {
	t.Parallel()

	a := newArena(t, testParams(0))
	b := putBlock(t, a, at(5, 5))

	got, err := a.PickupFreeBlock(3, b.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ID(3), got.Robot)
	assert.True(t, a.grid.At(at(5, 5)).IsEmpty())

	_, err = a.PickupFreeBlock(4, b.ID)
	assert.ErrorIs(t, err, ErrNoBlock)

	_, err = a.DropFreeBlock(3, b.ID, at(1, 1))
	assert.ErrorIs(t, err, ErrOccupied, "nest cells cannot hold free blocks")
	_, err = a.DropFreeBlock(4, b.ID, at(6, 6))
	assert.ErrorIs(t, err, ErrNoBlock, "only the carrier can drop")

	dropped, err := a.DropFreeBlock(3, b.ID, at(6, 6))
	require.NoError(t, err)
	assert.Equal(t, at(6, 6), dropped.Loc)
	assert.False(t, dropped.Carried())

	_, err = a.PickupFreeBlock(3, b.ID)
	require.NoError(t, err)
	require.NoError(t, a.DeliverToNest(3, b.ID))
	assert.Equal(t, uint64(1), a.Collected())
	assert.Equal(t, 1, a.BlockCount(), "redistributed under the same id")
	a.Publish()
	require.Len(t, a.FreeBlocks(), 1)
	assert.True(t, a.Params().Clusters[0].Contains(a.FreeBlocks()[0].Loc))

	a.SetRedistribution(false)
	_, err = a.PickupFreeBlock(3, b.ID)
	require.NoError(t, err)
	require.NoError(t, a.DeliverToNest(3, b.ID))
	assert.Zero(t, a.BlockCount())
	assert.Equal(t, uint64(2), a.Collected())
}

func TestInstallCache(t *testing.T) {
	t.Parallel()

	p := testParams(0)
	p.CacheExtent = 1
	a := newArena(t, p)
	b1 := putBlock(t, a, at(6, 6))
	b2 := putBlock(t, a, at(7, 6))
	stray := putBlock(t, a, at(5, 5))

	_, err := a.InstallCache(at(6, 6), []entity.ID{b1.ID, b2.ID}, 4, Constraints{MinDist: 2, Strict: true})
	require.ErrorIs(t, err, ErrRejected)
	assert.True(t, a.grid.At(at(6, 6)).HasBlock(), "rejection leaves the arena untouched")

	_, err = a.InstallCache(at(2, 2), []entity.ID{b1.ID, b2.ID}, 4, Constraints{})
	assert.ErrorIs(t, err, ErrRejected, "footprint overlaps nest")

	c, err := a.InstallCache(at(6, 6), []entity.ID{b1.ID, b2.ID}, 4, Constraints{MinDist: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, c.NBlocks(), "non-strict absorbs the stray block")
	assert.True(t, c.ContainsBlock(stray.ID))
	assert.Equal(t, uint64(4), c.CreatedAt)

	cell := a.grid.At(at(6, 6))
	assert.Equal(t, grid.HasCache, cell.State())
	assert.Equal(t, 3, cell.BlockCount())
	assert.True(t, a.grid.At(at(5, 5)).IsEmpty())
	assert.True(t, a.grid.At(at(7, 6)).IsEmpty())
	require.Len(t, a.Caches(), 1)

	b3 := putBlock(t, a, at(12, 12))
	b4 := putBlock(t, a, at(12, 13))
	_, err = a.InstallCache(at(8, 8), []entity.ID{b3.ID, b4.ID}, 5, Constraints{MinDist: 5})
	assert.ErrorIs(t, err, ErrRejected, "footprint overlaps cache")

	_, err = a.InstallCache(at(9, 9), []entity.ID{b3.ID, b4.ID}, 5, Constraints{MinDist: 5, Strict: true})
	assert.ErrorIs(t, err, ErrRejected, "strict: too close to cache")
	near, err := a.InstallCache(at(9, 9), []entity.ID{b3.ID, b4.ID}, 5, Constraints{MinDist: 5})
	require.NoError(t, err, "non-strict installs below the minimum distance")
	assert.Equal(t, 2, near.NBlocks())
	require.Len(t, a.Caches(), 2)

	_, err = a.InstallCache(at(12, 12), []entity.ID{b3.ID, 99}, 5, Constraints{})
	assert.ErrorIs(t, err, ErrNoBlock)
}

func TestInstallCache_DistanceConstraints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		site       entity.Coord
		blocks     []entity.Coord
		withCache  bool
		strictErr  bool
		relaxedErr bool
	}{
		{"clear of everything", at(14, 4), []entity.Coord{at(14, 4), at(14, 5)}, true, false, false},
		{"near nest", at(3, 3), []entity.Coord{at(3, 3), at(3, 4)}, false, true, false},
		{"near cache", at(12, 12), []entity.Coord{at(12, 12), at(12, 13)}, true, true, false},
		{"overlaps cache", at(10, 10), []entity.Coord{at(12, 12), at(12, 13)}, true, true, true},
	}
	for _, tt := range tests {
		for _, strict := range []bool{true, false} {
			name := tt.name + "/relaxed"
			wantErr := tt.relaxedErr
			if strict {
				name = tt.name + "/strict"
				wantErr = tt.strictErr
			}
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				a := newArena(t, testParams(0))
				if tt.withCache {
					ids := []entity.ID{putBlock(t, a, at(10, 10)).ID, putBlock(t, a, at(10, 11)).ID}
					_, err := a.InstallCache(at(10, 10), ids, 1, Constraints{})
					require.NoError(t, err)
				}
				var ids []entity.ID
				for _, loc := range tt.blocks {
					ids = append(ids, putBlock(t, a, loc).ID)
				}
				before := len(a.Caches())

				c, err := a.InstallCache(tt.site, ids, 2, Constraints{MinDist: 5, Strict: strict})
				if wantErr {
					require.ErrorIs(t, err, ErrRejected)
					assert.Len(t, a.Caches(), before)
					assert.True(t, a.grid.At(tt.blocks[0]).HasBlock())
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.site, c.Loc)
				assert.Equal(t, len(tt.blocks), c.NBlocks())
				assert.Len(t, a.Caches(), before+1)
			})
		}
	}
}

func TestPickupFromCache_Collapse(t *testing.T) {
	t.Parallel()

	a := newArena(t, testParams(0))
	ids := []entity.ID{
		putBlock(t, a, at(6, 6)).ID,
		putBlock(t, a, at(6, 7)).ID,
		putBlock(t, a, at(6, 8)).ID,
	}
	c, err := a.InstallCache(at(6, 6), ids, 10, Constraints{})
	require.NoError(t, err)

	res, err := a.PickupFromCache(1, c.ID, 20)
	require.NoError(t, err)
	assert.False(t, res.Depleted)
	assert.Equal(t, 3, res.Cache.NBlocks())
	assert.Equal(t, 2, a.grid.At(at(6, 6)).BlockCount())

	res, err = a.PickupFromCache(2, c.ID, 30)
	require.NoError(t, err)
	assert.True(t, res.Depleted)
	assert.Zero(t, a.LiveCaches())
	cell := a.grid.At(at(6, 6))
	assert.Equal(t, grid.HasBlock, cell.State(), "the leftover block stays behind")

	dep := a.TakeDepletions()
	require.Len(t, dep, 1)
	assert.Equal(t, uint64(30), dep[0].Timestep)
	assert.Equal(t, uint64(10), dep[0].Cache.CreatedAt)
	assert.Empty(t, a.TakeDepletions())

	_, err = a.PickupFromCache(3, c.ID, 31)
	assert.ErrorIs(t, err, ErrNotCache)

	res2, err := a.PickupFreeBlock(3, cell.Block().ID)
	require.NoError(t, err)
	_, err = a.DropInCache(3, res2.ID, c.ID)
	assert.ErrorIs(t, err, ErrNotCache)
}

func TestDropInCache(t *testing.T) {
	t.Parallel()

	a := newArena(t, testParams(0))
	ids := []entity.ID{putBlock(t, a, at(6, 6)).ID, putBlock(t, a, at(6, 7)).ID}
	c, err := a.InstallCache(at(6, 6), ids, 0, Constraints{})
	require.NoError(t, err)

	b := putBlock(t, a, at(3, 9))
	_, err = a.DropInCache(7, b.ID, c.ID)
	assert.ErrorIs(t, err, ErrNoBlock)

	_, err = a.PickupFreeBlock(7, b.ID)
	require.NoError(t, err)
	after, err := a.DropInCache(7, b.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.NBlocks())
	assert.Equal(t, 3, a.grid.At(at(6, 6)).BlockCount())
	assert.Equal(t, 3, a.Caches()[0].NBlocks())
}

func TestConcurrentPickups(t *testing.T) {
	t.Parallel()

	a := newArena(t, testParams(20))
	blocks := a.FreeBlocks()

	var wins atomic.Int64
	var wg sync.WaitGroup
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func(robot entity.ID) {
			defer wg.Done()
			for _, b := range blocks {
				if _, err := a.PickupFreeBlock(robot, b.ID); err == nil {
					wins.Add(1)
				}
				_ = a.LOS(b.Loc, 2, 0)
			}
		}(entity.ID(r))
	}
	wg.Wait()
	assert.Equal(t, int64(len(blocks)), wins.Load(), "each block is picked up exactly once")
}

func TestCacheCreationFlag(t *testing.T) {
	t.Parallel()

	a := newArena(t, testParams(0))
	assert.False(t, a.TakeCacheCreationFlag())
	a.FlagCacheCreation()
	a.FlagCacheCreation()
	assert.True(t, a.TakeCacheCreationFlag())
	assert.False(t, a.TakeCacheCreationFlag())
}
