package selection

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

// Query is the operating point a caller wants a turbine for.
// Freq is accepted and echoed back but plays no part in matching.
type Query struct {
	Q    float64  `json:"Q" yaml:"Q"`
	H    float64  `json:"H" yaml:"H"`
	Freq *float64 `json:"freq" yaml:"freq,omitempty"`
}

// NewQuery validates q and h. Both must be finite and non-zero.
func NewQuery(q, h float64, freq *float64) (Query, error) {
	if !usable(q) || !usable(h) {
		return Query{}, turbine.Errorf(turbine.CodeInvalidQuery, "Q and H are required and must be non-zero numbers")
	}
	return Query{Q: q, H: h, Freq: freq}, nil
}

// ParseQuery reads Q, H and freq from URL query values. A freq that does not
// parse as a number is dropped rather than rejected.
func ParseQuery(values url.Values) (Query, error) {
	q, qok := parseNumber(values.Get("Q"))
	h, hok := parseNumber(values.Get("H"))
	if !qok || !hok {
		return Query{}, turbine.Errorf(turbine.CodeInvalidQuery, "Q and H are required and must be non-zero numbers")
	}

	var freq *float64
	if f, ok := parseNumber(values.Get("freq")); ok {
		freq = &f
	}
	return NewQuery(q, h, freq)
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func usable(v float64) bool {
	return v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
