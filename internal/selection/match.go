// Package selection matches an operating point (Q, H) against turbine
// operating envelopes and nominates a best candidate.
package selection

import (
	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

// Result is the outcome of a selection. Best is nil iff Matched is empty.
type Result struct {
	Query   Query                `json:"query" yaml:"query"`
	Matched []turbine.Descriptor `json:"matched" yaml:"matched"`
	Best    *turbine.Descriptor  `json:"best" yaml:"best"`
}

// Filter returns the descriptors whose envelope contains the query point,
// in the order they were given. The result is never nil.
func Filter(q Query, descriptors []turbine.Descriptor) []turbine.Descriptor {
	matched := make([]turbine.Descriptor, 0)
	for _, d := range descriptors {
		if d.Contains(q.Q, q.H) {
			matched = append(matched, d)
		}
	}
	return matched
}

// Match filters descriptors and picks the best match using strategy.
func Match(q Query, descriptors []turbine.Descriptor, strategy Strategy) Result {
	return nominate(q, Filter(q, descriptors), strategy)
}

func nominate(q Query, matched []turbine.Descriptor, strategy Strategy) Result {
	res := Result{Query: q, Matched: matched}
	if len(res.Matched) == 0 {
		return res
	}
	if i := strategy.Pick(q, res.Matched); i >= 0 && i < len(res.Matched) {
		best := res.Matched[i]
		res.Best = &best
	}
	return res
}
