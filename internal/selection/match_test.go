package selection

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

func scenarioDescriptors() []turbine.Descriptor {
	return []turbine.Descriptor{
		{ID: 1, Name: "small", QMin: 0, QMax: 2, HMin: 10, HMax: 50},
		{ID: 2, Name: "large", QMin: 1, QMax: 5, HMin: 20, HMax: 60},
	}
}

func TestMatchScenarios(t *testing.T) {
	tests := []struct {
		name        string
		q, h        float64
		expectedIDs []int32
		expectBest  int32
	}{
		{"Point inside both envelopes matches both, best is first", 1.5, 30, []int32{1, 2}, 1},
		{"Point outside every envelope matches nothing", 10, 10, []int32{}, 0},
		{"Point inside only the second envelope", 3, 55, []int32{2}, 2},
		{"Point on shared boundary is inclusive", 2, 50, []int32{1, 2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Match(Query{Q: tt.q, H: tt.h}, scenarioDescriptors(), FirstMatch{})
			ids := make([]int32, 0)
			for _, d := range res.Matched {
				ids = append(ids, d.ID)
			}
			require.Equal(t, tt.expectedIDs, ids)
			if tt.expectBest == 0 {
				require.Nil(t, res.Best)
				require.NotNil(t, res.Matched)
				return
			}
			require.NotNil(t, res.Best)
			require.Equal(t, tt.expectBest, res.Best.ID)
		})
	}
}

// TestMatchProperties checks containment, best membership and the empty
// result contract over randomly generated envelopes.
func TestMatchProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	strategies := []Strategy{FirstMatch{}, NearestDesign{}}

	for round := range 200 {
		descriptors := make([]turbine.Descriptor, 1+rng.Intn(12))
		for i := range descriptors {
			qMin := rng.Float64() * 10
			hMin := rng.Float64() * 100
			descriptors[i] = turbine.Descriptor{
				ID:   int32(i + 1),
				Name: fmt.Sprintf("t%d", i+1),
				QMin: qMin, QMax: qMin + rng.Float64()*10,
				HMin: hMin, HMax: hMin + rng.Float64()*100,
			}
			if rng.Intn(2) == 0 {
				descriptors[i].DesignQ = turbine.Ptr(descriptors[i].QMin + 0.1)
			}
		}
		q := Query{Q: 0.01 + rng.Float64()*20, H: 0.01 + rng.Float64()*200}
		strategy := strategies[round%len(strategies)]

		res := Match(q, descriptors, strategy)

		inMatched := map[int32]bool{}
		for _, d := range res.Matched {
			inMatched[d.ID] = true
		}
		for _, d := range descriptors {
			contained := d.QMin <= q.Q && q.Q <= d.QMax && d.HMin <= q.H && q.H <= d.HMax
			require.Equal(t, contained, inMatched[d.ID], "descriptor %d, query %+v", d.ID, q)
		}
		if len(res.Matched) == 0 {
			require.Nil(t, res.Best)
		} else {
			require.NotNil(t, res.Best)
			require.True(t, inMatched[res.Best.ID])
		}
	}
}

func TestFilterPreservesStoreOrder(t *testing.T) {
	ds := []turbine.Descriptor{
		{ID: 9, QMin: 0, QMax: 10, HMin: 0, HMax: 10},
		{ID: 3, QMin: 0, QMax: 10, HMin: 0, HMax: 10},
		{ID: 5, QMin: 0, QMax: 10, HMin: 0, HMax: 10},
	}
	got := Filter(Query{Q: 5, H: 5}, ds)
	require.Len(t, got, 3)
	require.Equal(t, []int32{9, 3, 5}, []int32{got[0].ID, got[1].ID, got[2].ID})
}
