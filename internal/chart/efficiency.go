package chart

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

// ErrNoCurve is returned when a turbine has no efficiency samples to plot.
var ErrNoCurve = turbine.Errorf(turbine.CodeNotFound, "turbine has no efficiency curve")

var curveColour = color.NRGBA{R: 44, G: 160, B: 44, A: 255}

// Efficiency plots d's efficiency against flow. Samples are drawn in the
// order given, which should be by flow ascending.
func Efficiency(d turbine.Descriptor, samples []turbine.EfficiencySample) (*plot.Plot, error) {
	if len(samples) == 0 {
		return nil, ErrNoCurve
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s efficiency", d.Name)
	p.X.Label.Text = "Flow rate Q (m³/s)"
	p.Y.Label.Text = "Efficiency (%)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i].X = s.Flow
		pts[i].Y = s.Efficiency
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, err
	}
	line.Color = curveColour
	line.Width = vg.Points(1.5)
	points.Color = curveColour
	p.Add(line, points)

	if d.Efficiency != nil {
		p.Legend.Add(fmt.Sprintf("peak %.1f%%", *d.Efficiency), line)
		p.Legend.Top = true
	}
	p.Y.Min = min(p.Y.Min, 0)
	p.Y.Max = max(p.Y.Max, 100)
	return p, nil
}
