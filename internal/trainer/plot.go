package trainer

import (
	"errors"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveRewardPlot writes a reward-per-episode learning curve as a PNG.
func SaveRewardPlot(results []EpisodeResult, path string) error {
	if len(results) == 0 {
		return errors.New("no episode results to plot")
	}

	p := plot.New()
	p.Title.Text = "Training Progress"
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = "Episode Reward"

	pts := make(plotter.XYs, len(results))
	for i, r := range results {
		pts[i].X = float64(r.Episode)
		pts[i].Y = r.Reward
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line)

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
