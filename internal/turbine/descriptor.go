// Package turbine defines the turbine descriptor, its operating envelope and the
// serialized efficiency curve that travels with it.
package turbine

import (
	"math"
	"strings"
)

// Unclassified is the type bucket used for descriptors without a type.
const Unclassified = "unclassified"

// CurveStatus records the outcome of decoding a descriptor's efficiency curve.
type CurveStatus string

const (
	CurveOK      CurveStatus = "ok"
	CurveAbsent  CurveStatus = "absent"
	CurveInvalid CurveStatus = "invalid"
)

// Sample is a single (flow, efficiency) point of an efficiency curve.
type Sample struct {
	Flow       float64 `json:"flow" yaml:"flow"`
	Efficiency float64 `json:"efficiency" yaml:"efficiency"`
}

// EfficiencySample is a stored efficiency curve sample belonging to a turbine.
type EfficiencySample struct {
	TurbineID  int32   `json:"turbine_id" yaml:"turbine_id"`
	Flow       float64 `json:"flow" yaml:"flow"`
	Efficiency float64 `json:"efficiency" yaml:"efficiency"`
}

// Descriptor describes a turbine model and the envelope it operates in.
// Flow rates are in m³/s and heads in m; both ranges are inclusive.
type Descriptor struct {
	ID    int32   `json:"id" yaml:"id"`
	Name  string  `json:"name" yaml:"name"`
	Type  *string `json:"type" yaml:"type,omitempty"`
	Notes *string `json:"notes" yaml:"notes,omitempty"`

	QMin float64 `json:"q_min" yaml:"q_min"`
	QMax float64 `json:"q_max" yaml:"q_max"`
	HMin float64 `json:"h_min" yaml:"h_min"`
	HMax float64 `json:"h_max" yaml:"h_max"`

	DesignQ    *float64 `json:"design_Q,omitempty" yaml:"design_q,omitempty"`
	DesignH    *float64 `json:"design_H,omitempty" yaml:"design_h,omitempty"`
	Efficiency *float64 `json:"efficiency,omitempty" yaml:"efficiency,omitempty"`

	// RawCurve is the serialized efficiency curve exactly as stored.
	RawCurve string `json:"-" yaml:"-"`

	// Curve, CurveStatus and CurveError are only populated by DecodeCurve.
	Curve       []Sample    `json:"efficiency_curve" yaml:"efficiency_curve,omitempty"`
	CurveStatus CurveStatus `json:"curve_status,omitempty" yaml:"-"`
	CurveError  string      `json:"curve_error,omitempty" yaml:"-"`
}

// Contains reports whether the point (q, h) lies inside the operating envelope.
func (d Descriptor) Contains(q, h float64) bool {
	return d.QMin <= q && q <= d.QMax && d.HMin <= h && h <= d.HMax
}

// TypeName returns the descriptor's type, or Unclassified when it has none.
func (d Descriptor) TypeName() string {
	if d.Type == nil || strings.TrimSpace(*d.Type) == "" {
		return Unclassified
	}
	return *d.Type
}

// Validate checks the envelope invariants q_min <= q_max and h_min <= h_max.
// Every bound and the optional design values must be finite.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return Errorf(CodeInvalidDescriptor, "turbine %d has no name", d.ID)
	}
	fields := []struct {
		name string
		v    *float64
	}{
		{"q_min", &d.QMin}, {"q_max", &d.QMax}, {"h_min", &d.HMin}, {"h_max", &d.HMax},
		{"design_Q", d.DesignQ}, {"design_H", d.DesignH}, {"efficiency", d.Efficiency},
	}
	for _, f := range fields {
		if f.v != nil && (math.IsNaN(*f.v) || math.IsInf(*f.v, 0)) {
			return Errorf(CodeInvalidDescriptor, "turbine %q: %s must be finite", d.Name, f.name)
		}
	}
	if d.QMin > d.QMax {
		return Errorf(CodeInvalidDescriptor, "turbine %q: q_min %g exceeds q_max %g", d.Name, d.QMin, d.QMax)
	}
	if d.HMin > d.HMax {
		return Errorf(CodeInvalidDescriptor, "turbine %q: h_min %g exceeds h_max %g", d.Name, d.HMin, d.HMax)
	}
	return nil
}

// DecodeCurve decodes RawCurve into Curve and records the outcome on the
// descriptor. A failure never escapes: the curve is left empty and the error
// is kept in CurveError so callers can inspect it.
func (d *Descriptor) DecodeCurve() error {
	samples, err := DecodeCurve(d.RawCurve)
	switch {
	case err != nil:
		d.Curve = nil
		d.CurveStatus = CurveInvalid
		d.CurveError = err.Error()
	case len(samples) == 0:
		d.Curve = nil
		d.CurveStatus = CurveAbsent
		d.CurveError = ""
	default:
		d.Curve = samples
		d.CurveStatus = CurveOK
		d.CurveError = ""
	}
	return err
}

// Ptr returns a pointer to v. Handy for the optional descriptor fields.
func Ptr[T any](v T) *T {
	return &v
}
