package metrics

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderDashboard writes an HTML page of line charts over the snapshots
// of one run.
func RenderDashboard(w io.Writer, title string, snaps []Snapshot) error {
	xs := make([]uint64, len(snaps))
	for i, s := range snaps {
		xs[i] = s.Timestep
	}
	series := func(f func(Snapshot) float64) []opts.LineData {
		out := make([]opts.LineData, len(snaps))
		for i, s := range snaps {
			out[i] = opts.LineData{Value: f(s)}
		}
		return out
	}
	line := func(name, yName string) *charts.Line {
		l := charts.NewLine()
		l.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "1200px", Height: "360px"}),
			charts.WithTitleOpts(opts.Title{Title: name, Subtitle: fmt.Sprintf("%d timesteps", len(snaps))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "timestep", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: yName}),
			charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		)
		l.SetXAxis(xs)
		return l
	}

	collected := line("Blocks collected", "blocks")
	collected.AddSeries("collected", series(func(s Snapshot) float64 { return float64(s.Collected) }))
	collected.AddSeries("carrying", series(func(s Snapshot) float64 { return float64(s.Carrying) }))

	tasks := line("Task allocation", "robots")
	tasks.AddSeries("generalists", series(func(s Snapshot) float64 { return float64(s.Generalists) }))
	tasks.AddSeries("harvesters", series(func(s Snapshot) float64 { return float64(s.Harvesters) }))
	tasks.AddSeries("collectors", series(func(s Snapshot) float64 { return float64(s.Collectors) }))

	caches := line("Caches", "caches")
	caches.AddSeries("live", series(func(s Snapshot) float64 { return float64(s.CachesLive) }))
	caches.AddSeries("created", series(func(s Snapshot) float64 { return float64(s.CachesCreated) }))
	caches.AddSeries("depleted", series(func(s Snapshot) float64 { return float64(s.CachesDepleted) }))

	known := line("Map coverage", "%")
	known.AddSeries("known", series(func(s Snapshot) float64 { return s.KnownPct }))
	known.AddSeries("unknown", series(func(s Snapshot) float64 { return s.UnknownPct }))
	known.AddSeries("redistributing", series(func(s Snapshot) float64 {
		if s.DistEnabled {
			return 100
		}
		return 0
	}))

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(collected, tasks, caches, known)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	return nil
}
