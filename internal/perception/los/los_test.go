package los

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/events"
	"github.com/banshee-data/swarm.forage/internal/grid"
	"github.com/banshee-data/swarm.forage/internal/perception/density"
	"github.com/banshee-data/swarm.forage/internal/perception/dpo"
)

func at(x, y int) entity.Coord { return entity.Coord{X: x, Y: y} }

func world(t *testing.T) *grid.Grid {
	t.Helper()
	g := grid.New(30, 30)
	require.NoError(t, g.At(at(2, 2)).EnterBlock(entity.NewBlock(1, at(2, 2))))
	cache := entity.NewCache(50, at(5, 5), 0, []*entity.Block{
		entity.NewBlock(2, at(5, 5)), entity.NewBlock(3, at(5, 5)), entity.NewBlock(4, at(5, 5)),
	}, 0)
	require.NoError(t, g.At(at(5, 5)).EnterCache(cache))
	return g
}

func TestCapture_IsIsolated(t *testing.T) {
	t.Parallel()

	g := world(t)
	s := Capture(g, at(4, 4), g.Window(at(4, 4), 3), 7)

	assert.Equal(t, entity.Rect{Min: at(1, 1), Max: at(7, 7)}, s.Bounds)
	assert.Len(t, s.Cells, 49)
	require.Len(t, s.Blocks(), 1)
	require.Len(t, s.Caches(), 1)

	g.At(at(2, 2)).Block().Loc = at(9, 9)
	g.At(at(5, 5)).Cache().TakeBlock()
	assert.Equal(t, at(2, 2), s.Blocks()[0].Loc)
	assert.Equal(t, 3, s.Caches()[0].NBlocks())
}

func TestCapture_ClampsAtEdge(t *testing.T) {
	t.Parallel()

	g := grid.New(10, 10)
	s := Capture(g, at(0, 0), g.Window(at(0, 0), 2), 0)
	assert.Len(t, s.Cells, 9)
}

func TestProcess_SemanticMap(t *testing.T) {
	t.Parallel()

	g := world(t)
	m := dpo.NewSemanticMap(30, 30, density.DefaultParams())
	m.BlockFound(entity.NewBlock(9, at(3, 3)))
	m.BlockFound(entity.NewBlock(10, at(20, 20)))
	m.BlockFound(entity.NewBlock(3, at(6, 6)))

	s := Capture(g, at(4, 4), g.Window(at(4, 4), 3), 1)
	evs := Events(m, s)

	var kinds []events.Kind
	for _, ev := range evs {
		kinds = append(kinds, ev.Kind)
	}
	assert.ElementsMatch(t, []events.Kind{events.BlockFound, events.CacheFound, events.BlockVanished}, kinds)

	Process(m, s)

	assert.True(t, m.Blocks().Contains(1))
	assert.False(t, m.Blocks().Contains(9), "block gone from the window is forgotten")
	assert.True(t, m.Blocks().Contains(10), "blocks outside the window are untouched")
	assert.False(t, m.Blocks().Contains(3), "block now inside a cache is subsumed")
	assert.True(t, m.Caches().Contains(50))
	assert.Equal(t, grid.HasCache, m.Grid().At(at(5, 5)).State())
	assert.Equal(t, grid.Empty, m.Grid().At(at(3, 3)).State())
	assert.Equal(t, 49+1, m.KnownCells())
}

func TestProcess_PlainStore(t *testing.T) {
	t.Parallel()

	g := world(t)
	st := dpo.NewDPOStore(density.DefaultParams())
	st.CacheFound(entity.NewCache(77, at(4, 4), 0, []*entity.Block{
		entity.NewBlock(20, at(4, 4)), entity.NewBlock(21, at(4, 4)),
	}, 0))

	n := Process(st, Capture(g, at(4, 4), g.Window(at(4, 4), 3), 1))
	assert.Equal(t, 3, n)
	assert.False(t, st.Caches().Contains(77))
	assert.True(t, st.Caches().Contains(50))
}
