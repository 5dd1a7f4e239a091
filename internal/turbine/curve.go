package turbine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// DecodeCurve parses a serialized efficiency curve.
//
// The serialized form is a JSON array whose elements are either
// {"flow": f, "efficiency": e} objects or [f, e] pairs. Blank input and the
// JSON literal null decode to a nil curve with no error.
func DecodeCurve(raw string) ([]Sample, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, Wrap(CodeCurveDecode, "efficiency curve is not a JSON array", err)
	}

	samples := make([]Sample, 0, len(elems))
	for i, elem := range elems {
		s, err := decodeSample(elem)
		if err != nil {
			return nil, Wrap(CodeCurveDecode, fmt.Sprintf("efficiency curve sample %d", i), err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func decodeSample(elem json.RawMessage) (Sample, error) {
	elem = bytes.TrimSpace(elem)
	if len(elem) == 0 {
		return Sample{}, fmt.Errorf("empty sample")
	}

	var s Sample
	switch elem[0] {
	case '[':
		var pair []float64
		if err := json.Unmarshal(elem, &pair); err != nil {
			return Sample{}, err
		}
		if len(pair) != 2 {
			return Sample{}, fmt.Errorf("expected [flow, efficiency] pair, got %d values", len(pair))
		}
		s = Sample{Flow: pair[0], Efficiency: pair[1]}
	case '{':
		var obj struct {
			Flow       *float64 `json:"flow"`
			Efficiency *float64 `json:"efficiency"`
		}
		if err := json.Unmarshal(elem, &obj); err != nil {
			return Sample{}, err
		}
		if obj.Flow == nil || obj.Efficiency == nil {
			return Sample{}, fmt.Errorf("sample requires both flow and efficiency")
		}
		s = Sample{Flow: *obj.Flow, Efficiency: *obj.Efficiency}
	default:
		return Sample{}, fmt.Errorf("unexpected sample %s", string(elem))
	}

	if math.IsNaN(s.Flow) || math.IsInf(s.Flow, 0) || math.IsNaN(s.Efficiency) || math.IsInf(s.Efficiency, 0) {
		return Sample{}, fmt.Errorf("sample values must be finite")
	}
	return s, nil
}

// EncodeCurve serializes samples into the canonical object form accepted by
// DecodeCurve. Sample order is preserved. An empty curve encodes to "".
func EncodeCurve(samples []Sample) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	b, err := json.Marshal(samples)
	if err != nil {
		return "", Wrap(CodeCurveDecode, "encode efficiency curve", err)
	}
	return string(b), nil
}

// SortedSamples returns the curve as stored samples for turbine id, ordered
// by flow ascending. Samples with equal flow keep their curve order.
func SortedSamples(id int32, curve []Sample) []EfficiencySample {
	out := make([]EfficiencySample, len(curve))
	for i, s := range curve {
		out[i] = EfficiencySample{TurbineID: id, Flow: s.Flow, Efficiency: s.Efficiency}
	}
	slices.SortStableFunc(out, func(a, b EfficiencySample) int {
		switch {
		case a.Flow < b.Flow:
			return -1
		case a.Flow > b.Flow:
			return 1
		}
		return 0
	})
	return out
}
