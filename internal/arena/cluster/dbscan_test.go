package cluster

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/swarm.forage/internal/entity"
)

func blocksAt(coords ...entity.Coord) []*entity.Block {
	out := make([]*entity.Block, len(coords))
	for i, c := range coords {
		out[i] = entity.NewBlock(entity.ID(i), c)
	}
	return out
}

func at(x, y int) entity.Coord { return entity.Coord{X: x, Y: y} }

func TestBlocks_TwoClustersAndNoise(t *testing.T) {
	t.Parallel()

	bs := blocksAt(
		at(1, 1), at(2, 1), at(1, 2), // cluster A
		at(20, 20), at(21, 20),       // cluster B
		at(10, 40),                   // noise
	)
	cs := Blocks(bs, Params{Eps: 1.5, MinPts: 2})
	require.Len(t, cs, 2)

	ids := func(c Cluster) []entity.ID {
		var out []entity.ID
		for _, b := range c.Blocks {
			out = append(out, b.ID)
		}
		return out
	}
	if diff := cmp.Diff([]entity.ID{0, 1, 2}, ids(cs[0])); diff != "" {
		t.Errorf("cluster A mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]entity.ID{3, 4}, ids(cs[1])); diff != "" {
		t.Errorf("cluster B mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, entity.Rect{Min: at(1, 1), Max: at(2, 2)}, cs[0].Bounds)
	assert.Equal(t, at(21, 20), cs[1].Center())

	assert.Len(t, AtLeast(cs, 3), 1)
}

func TestBlocks_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Blocks(nil, Params{Eps: 1, MinPts: 2}))
	assert.Nil(t, Blocks(blocksAt(at(0, 0)), Params{Eps: 0, MinPts: 1}))
}

func TestSpatialIndex_NegativeCells(t *testing.T) {
	t.Parallel()

	pts := []r2.Vec{{X: -0.5, Y: -0.5}, {X: 0.5, Y: 0.5}, {X: 5, Y: 5}}
	si := NewSpatialIndex(1)
	si.Build(pts)

	assert.ElementsMatch(t, []int{0, 1}, si.RegionQuery(pts, 0, 1.5))
	assert.Equal(t, []int{2}, si.RegionQuery(pts, 2, 1.5))
	assert.NotEqual(t, cellID(-1, 0), cellID(0, -1))
}
