package chart

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/openclimatefix/turbine-selector/internal/selection"
	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

// Default envelope chart domain, widened to fit the data drawn.
const (
	DefaultQMin = 0.1
	DefaultQMax = 1000.0
	DefaultHMin = 1.0
	DefaultHMax = 100.0
)

// floor replaces non-positive coordinates, which a log axis cannot place.
const floor = 1e-3

var (
	envelopeFill     = color.NRGBA{R: 31, G: 119, B: 180, A: 60}
	envelopeLine     = color.NRGBA{R: 31, G: 119, B: 180, A: 255}
	highlightFill    = color.NRGBA{R: 255, G: 127, B: 14, A: 110}
	highlightLine    = color.NRGBA{R: 255, G: 127, B: 14, A: 255}
	queryPointColour = color.NRGBA{R: 214, G: 39, B: 40, A: 255}
)

// EnvelopeOptions selects what goes on an envelope chart.
type EnvelopeOptions struct {
	Title    string
	Turbines []turbine.Descriptor
	// Highlight marks one turbine's envelope.
	Highlight *int32
	// Query is drawn as a red cross when set.
	Query *selection.Query
}

// Envelope plots every turbine's operating envelope as a rectangle on log
// Q and H axes.
func Envelope(opts EnvelopeOptions) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = opts.Title
	if p.Title.Text == "" {
		p.Title.Text = "Turbine operating envelopes"
	}
	p.X.Label.Text = "Flow rate Q (m³/s)"
	p.Y.Label.Text = "Head H (m)"
	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	qMin, qMax := DefaultQMin, DefaultQMax
	hMin, hMax := DefaultHMin, DefaultHMax

	for _, d := range opts.Turbines {
		x0, x1 := positive(d.QMin), positive(d.QMax)
		y0, y1 := positive(d.HMin), positive(d.HMax)
		poly, err := plotter.NewPolygon(plotter.XYs{
			{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
		})
		if err != nil {
			return nil, err
		}
		poly.Color = envelopeFill
		poly.LineStyle.Color = envelopeLine
		poly.LineStyle.Width = vg.Points(1)
		if opts.Highlight != nil && *opts.Highlight == d.ID {
			poly.Color = highlightFill
			poly.LineStyle.Color = highlightLine
			poly.LineStyle.Width = vg.Points(2)
			p.Legend.Add(d.Name, poly)
		}
		p.Add(poly)

		qMin, qMax = min(qMin, x0), max(qMax, x1)
		hMin, hMax = min(hMin, y0), max(hMax, y1)
	}

	if opts.Query != nil {
		x, y := positive(opts.Query.Q), positive(opts.Query.H)
		pt, err := plotter.NewScatter(plotter.XYs{{X: x, Y: y}})
		if err != nil {
			return nil, err
		}
		pt.GlyphStyle.Shape = draw.CrossGlyph{}
		pt.GlyphStyle.Color = queryPointColour
		pt.GlyphStyle.Radius = vg.Points(6)
		p.Add(pt)
		p.Legend.Add("query point", pt)

		qMin, qMax = min(qMin, x), max(qMax, x)
		hMin, hMax = min(hMin, y), max(hMax, y)
	}

	p.X.Min, p.X.Max = qMin, qMax
	p.Y.Min, p.Y.Max = hMin, hMax
	p.Legend.Top = true
	return p, nil
}

func positive(v float64) float64 {
	if v <= 0 {
		return floor
	}
	return v
}
