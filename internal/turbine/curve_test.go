package turbine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeCurve(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []Sample
		wantErr  bool
	}{
		{"Blank input has no curve", "  ", nil, false},
		{"JSON null has no curve", "null", nil, false},
		{
			"Object samples keep their order",
			`[{"flow": 2.0, "efficiency": 88.5}, {"flow": 1.0, "efficiency": 80}]`,
			[]Sample{{Flow: 2.0, Efficiency: 88.5}, {Flow: 1.0, Efficiency: 80}},
			false,
		},
		{
			"Pair samples are accepted",
			`[[0.5, 70], [1.5, 91.2]]`,
			[]Sample{{Flow: 0.5, Efficiency: 70}, {Flow: 1.5, Efficiency: 91.2}},
			false,
		},
		{
			"Mixed forms are accepted",
			`[[0.5, 70], {"flow": 1, "efficiency": 85}]`,
			[]Sample{{Flow: 0.5, Efficiency: 70}, {Flow: 1, Efficiency: 85}},
			false,
		},
		{"Not JSON", "flow=1;eff=2", nil, true},
		{"Object instead of array", `{"flow": 1, "efficiency": 2}`, nil, true},
		{"Pair with three values", `[[1, 2, 3]]`, nil, true},
		{"Object missing efficiency", `[{"flow": 1}]`, nil, true},
		{"Scalar sample", `[1, 2]`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples, err := DecodeCurve(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrCurveDecode))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, samples)
		})
	}
}

func TestCurveRoundTripPreservesOrderAndValues(t *testing.T) {
	original := []Sample{{Flow: 3.2, Efficiency: 91.0}, {Flow: 0.4, Efficiency: 62.5}, {Flow: 1.7, Efficiency: 89.25}, {Flow: 1.7, Efficiency: 89.3}}

	encoded, err := EncodeCurve(original)
	require.NoError(t, err)
	decoded, err := DecodeCurve(encoded)
	require.NoError(t, err)
	require.Equal(t, original, decoded)

	reencoded, err := EncodeCurve(decoded)
	require.NoError(t, err)
	require.Equal(t, encoded, reencoded)
}

func TestEncodeEmptyCurve(t *testing.T) {
	encoded, err := EncodeCurve(nil)
	require.NoError(t, err)
	require.Empty(t, encoded)
}

func TestSortedSamples(t *testing.T) {
	got := SortedSamples(7, []Sample{{Flow: 2, Efficiency: 90}, {Flow: 0.5, Efficiency: 60}, {Flow: 1, Efficiency: 80}, {Flow: 0.5, Efficiency: 61}})
	require.Equal(t, []EfficiencySample{
		{TurbineID: 7, Flow: 0.5, Efficiency: 60},
		{TurbineID: 7, Flow: 0.5, Efficiency: 61},
		{TurbineID: 7, Flow: 1, Efficiency: 80},
		{TurbineID: 7, Flow: 2, Efficiency: 90},
	}, got)
}
