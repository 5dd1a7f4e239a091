// Package chart renders turbine charts with gonum/plot: the Q-H envelope map
// on log axes and per-turbine efficiency curves.
package chart

import (
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

// Format is an output image format.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

const (
	width  = 16 * vg.Centimeter
	height = 12 * vg.Centimeter
)

// ParseFormat maps a format name to a Format. Empty means PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return PNG, nil
	case "svg":
		return SVG, nil
	default:
		return "", turbine.Errorf(turbine.CodeInvalidQuery, "unsupported chart format %q, want png or svg", s)
	}
}

// ContentType is the MIME type of f.
func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Render writes p to w in format f.
func Render(w io.Writer, p *plot.Plot, f Format) error {
	wt, err := p.WriterTo(width, height, string(f))
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
