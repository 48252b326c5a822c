package metrics

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"slices"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotLifetimes writes one lifetime histogram PNG per cache kind into dir
// and returns the files written. Kinds with no depletions are skipped.
func PlotLifetimes(dir string, byKind map[string][]float64) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot dir: %w", err)
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)

	var files []string
	for _, kind := range kinds {
		xs := byKind[kind]
		if len(xs) == 0 {
			continue
		}
		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s cache lifetimes (%s)", kind, Summarize(xs))
		p.X.Label.Text = "Lifetime (timesteps)"
		p.Y.Label.Text = "Caches"

		bins := min(max(len(xs)/4, 1), 40)
		h, err := plotter.NewHist(plotter.Values(xs), bins)
		if err != nil {
			return files, fmt.Errorf("histogram for %s caches: %w", kind, err)
		}
		h.FillColor = color.RGBA{R: 49, G: 104, B: 142, A: 255}
		p.Add(h)

		file := filepath.Join(dir, fmt.Sprintf("lifetimes_%s.png", kind))
		if err := p.Save(10*vg.Inch, 5*vg.Inch, file); err != nil {
			return files, fmt.Errorf("failed to save %s: %w", file, err)
		}
		files = append(files, file)
	}
	return files, nil
}

// PlotCollected writes the cumulative delivery curve of a run as a PNG.
func PlotCollected(file string, snaps []Snapshot) error {
	if len(snaps) == 0 {
		return fmt.Errorf("no snapshots to plot")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("failed to create plot dir: %w", err)
	}
	p := plot.New()
	p.Title.Text = "Blocks collected"
	p.X.Label.Text = "Timestep"
	p.Y.Label.Text = "Blocks"

	pts := make(plotter.XYs, len(snaps))
	for i, s := range snaps {
		pts[i] = plotter.XY{X: float64(s.Timestep), Y: float64(s.Collected)}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("collected line: %w", err)
	}
	line.Width = vg.Points(1)
	line.Color = color.RGBA{R: 53, G: 183, B: 121, A: 255}
	p.Add(line)
	p.Legend.Add("collected", line)
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("failed to save %s: %w", file, err)
	}
	return nil
}
