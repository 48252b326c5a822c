package task

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Boundaries(t *testing.T) {
	t.Parallel()

	tr := NewTracker(Harvester, 5)
	var finished []int
	tr.OnFinished(func(i int) { finished = append(finished, i) })

	assert.Equal(t, uint64(3), tr.Elapsed(8))
	tr.Finish(Done, Collector, 10)
	tr.Finish(AbortPending, Harvester, 12)

	assert.Equal(t, []int{0, 1}, finished)
	assert.Equal(t, 2, tr.Index())
	assert.Equal(t, Harvester, tr.Kind())
	assert.Equal(t, uint64(12), tr.StartedAt())
	assert.Equal(t, 1, tr.Completed())
	assert.Equal(t, 1, tr.Aborted())
	assert.Zero(t, tr.Elapsed(3))
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, k := range []Kind{Generalist, Harvester, Collector} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("forager")
	assert.Error(t, err)
}

func TestPartitioned(t *testing.T) {
	t.Parallel()

	p := &Partitioned{Rand: rand.New(rand.NewPCG(1, 2)), HarvesterProb: 1, SwitchOnAbort: 1}
	assert.Equal(t, Collector, p.Next(Harvester, true))
	assert.Equal(t, Harvester, p.Next(Collector, true))
	assert.Equal(t, Harvester, p.Next(Collector, false))

	assert.Equal(t, Generalist, Fixed(Generalist).Next(Collector, true))
}
