package metrics

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swarm.forage/internal/task"
)

func TestCollector_RobotTotals(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := RobotSample{Task: task.Kind(i % 3), Carrying: i%2 == 0}
			if i < 10 {
				s.HasMap = true
				s.KnownPct = 20
			}
			c.AddRobot(s)
		}()
	}
	wg.Wait()

	got := c.TakeRobots()
	assert.Equal(t, 14, got.Generalists)
	assert.Equal(t, 13, got.Harvesters)
	assert.Equal(t, 13, got.Collectors)
	assert.Equal(t, 20, got.Carrying)
	assert.Equal(t, 10, got.Mapped)
	assert.InDelta(t, 20, got.KnownPct(), 1e-9)

	assert.Equal(t, RobotTotals{}, c.TakeRobots(), "totals reset after take")
	assert.Zero(t, RobotTotals{}.KnownPct())
}

func TestCollector_Lifetimes(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.AddLifetime(CacheLifetime{Kind: "static", CacheID: 1, CreatedAt: 10, DepletedAt: 40})
	c.AddLifetime(CacheLifetime{Kind: "static", CacheID: 2, CreatedAt: 10, DepletedAt: 20})
	c.AddLifetime(CacheLifetime{Kind: "dynamic", CacheID: 3, CreatedAt: 5, DepletedAt: 5})

	want := map[string][]float64{"static": {30, 10}, "dynamic": {0}}
	if diff := cmp.Diff(want, c.LifetimesByKind()); diff != "" {
		t.Errorf("LifetimesByKind mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, CacheLifetime{CreatedAt: 9, DepletedAt: 3}.Lifetime())
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t, "n=0", Summary{}.String())

	one := Summarize([]float64{7})
	assert.Equal(t, 1, one.N)
	assert.Equal(t, 7.0, one.Mean)
	assert.Zero(t, one.StdDev)

	s := Summarize([]float64{5, 1, 4, 2, 3})
	assert.Equal(t, 5, s.N)
	assert.InDelta(t, 3, s.Mean, 1e-9)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 5.0, s.Max)
	assert.Equal(t, 3.0, s.Median)
	assert.Equal(t, 5.0, s.P90)
	assert.InDelta(t, 1.5811, s.StdDev, 1e-3)
	assert.Contains(t, s.String(), "mean=3.0")
}

func snaps(n int) []Snapshot {
	out := make([]Snapshot, n)
	for i := range out {
		out[i] = Snapshot{Timestep: uint64(i), Collected: uint64(i / 2), Harvesters: 3, Collectors: 2, DistEnabled: i < n/2}
	}
	return out
}

func TestTimestepLogger_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run", "timesteps.jsonl.zst")
	l, err := NewTimestepLogger(path)
	require.NoError(t, err)
	want := snaps(50)
	for _, s := range want {
		require.NoError(t, l.WriteSnapshot(s))
	}
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "second close is a no-op")
	assert.Error(t, l.WriteSnapshot(Snapshot{}))

	got, err := ReadTimestepLog(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestTimestepLogger_CloseReportsFileErrors(t *testing.T) {
	t.Parallel()

	l, err := NewTimestepLogger(filepath.Join(t.TempDir(), "timesteps.jsonl.zst"))
	require.NoError(t, err)
	require.NoError(t, l.WriteSnapshot(Snapshot{}))
	require.NoError(t, l.f.Close())

	err = l.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, l.Close(), "released after a failed close")
}

func TestRenderDashboard(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, RenderDashboard(&buf, "run test", snaps(20)))
	html := buf.String()
	assert.True(t, strings.Contains(html, "Blocks collected"))
	assert.True(t, strings.Contains(html, "Task allocation"))
}

func TestPlots(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files, err := PlotLifetimes(dir, map[string][]float64{
		"static":  {10, 12, 30, 31, 33, 50, 51, 80},
		"dynamic": nil,
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	_, err = os.Stat(files[0])
	assert.NoError(t, err)

	out := filepath.Join(dir, "collected.png")
	require.NoError(t, PlotCollected(out, snaps(30)))
	_, err = os.Stat(out)
	assert.NoError(t, err)
	assert.Error(t, PlotCollected(out, nil))
}
