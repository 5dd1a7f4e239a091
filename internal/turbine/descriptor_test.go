package turbine

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContainsIsInclusiveOnBothAxes(t *testing.T) {
	d := Descriptor{QMin: 1, QMax: 5, HMin: 20, HMax: 60}

	tests := []struct {
		q, h     float64
		expected bool
	}{
		{1, 20, true},
		{5, 60, true},
		{1, 60, true},
		{3, 40, true},
		{0.999, 40, false},
		{5.001, 40, false},
		{3, 19.99, false},
		{3, 60.01, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("Q=%g,H=%g", tt.q, tt.h), func(t *testing.T) {
			require.Equal(t, tt.expected, d.Contains(tt.q, tt.h))
		})
	}
}

func TestTypeName(t *testing.T) {
	require.Equal(t, "Kaplan", Descriptor{Type: Ptr("Kaplan")}.TypeName())
	require.Equal(t, Unclassified, Descriptor{}.TypeName())
	require.Equal(t, Unclassified, Descriptor{Type: Ptr("  ")}.TypeName())
}

func TestValidate(t *testing.T) {
	require.NoError(t, Descriptor{Name: "ok", QMin: 1, QMax: 1, HMin: 2, HMax: 3}.Validate())

	err := Descriptor{Name: "bad-q", QMin: 2, QMax: 1}.Validate()
	require.Error(t, err)
	require.Equal(t, CodeInvalidDescriptor, CodeOf(err))

	err = Descriptor{Name: "bad-h", HMin: 10, HMax: 1}.Validate()
	require.Error(t, err)

	require.Error(t, Descriptor{QMax: 1, HMax: 1}.Validate())

	nonFinite := []Descriptor{
		{Name: "nan-qmin", QMin: math.NaN(), QMax: 1, HMax: 1},
		{Name: "inf-hmax", QMax: 1, HMax: math.Inf(1)},
		{Name: "neg-inf-hmin", QMax: 1, HMin: math.Inf(-1), HMax: 1},
		{Name: "nan-design", QMax: 1, HMax: 1, DesignQ: Ptr(math.NaN())},
		{Name: "inf-design", QMax: 1, HMax: 1, DesignH: Ptr(math.Inf(1))},
	}
	for _, d := range nonFinite {
		err := d.Validate()
		require.Error(t, err, d.Name)
		require.Equal(t, CodeInvalidDescriptor, CodeOf(err), d.Name)
	}
}

func TestDescriptorDecodeCurveRecordsStatus(t *testing.T) {
	d := Descriptor{RawCurve: `[{"flow": 1, "efficiency": 90}]`}
	require.NoError(t, d.DecodeCurve())
	require.Equal(t, CurveOK, d.CurveStatus)
	require.Equal(t, []Sample{{Flow: 1, Efficiency: 90}}, d.Curve)

	d = Descriptor{}
	require.NoError(t, d.DecodeCurve())
	require.Equal(t, CurveAbsent, d.CurveStatus)
	require.Nil(t, d.Curve)

	d = Descriptor{RawCurve: "[]"}
	require.NoError(t, d.DecodeCurve())
	require.Equal(t, CurveAbsent, d.CurveStatus)

	d = Descriptor{RawCurve: "{broken", Curve: []Sample{{Flow: 1, Efficiency: 1}}}
	err := d.DecodeCurve()
	require.Error(t, err)
	require.Equal(t, CurveInvalid, d.CurveStatus)
	require.NotEmpty(t, d.CurveError)
	require.Nil(t, d.Curve)
}

func TestErrorMatchingByCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", Wrap(CodeStoreUnavailable, "list turbines", errors.New("conn refused")))
	require.True(t, errors.Is(err, ErrStoreUnavailable))
	require.False(t, errors.Is(err, ErrInvalidQuery))
	require.Equal(t, CodeStoreUnavailable, CodeOf(err))
	require.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	require.Contains(t, err.Error(), "conn refused")
}
