package selection

import (
	"fmt"
	"math"

	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

// Strategy nominates the best candidate among matched descriptors.
// Pick returns an index into matched, or -1 when nothing should be nominated.
type Strategy interface {
	Name() string
	Pick(q Query, matched []turbine.Descriptor) int
}

const (
	StrategyFirst         = "first"
	StrategyNearestDesign = "nearest-design"
)

// StrategyByName resolves a strategy from its configuration name.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case "", StrategyFirst:
		return FirstMatch{}, nil
	case StrategyNearestDesign:
		return NearestDesign{}, nil
	default:
		return nil, fmt.Errorf("unknown best-candidate strategy %q", name)
	}
}

// FirstMatch nominates the first matched descriptor in store order.
type FirstMatch struct{}

func (FirstMatch) Name() string { return StrategyFirst }

func (FirstMatch) Pick(_ Query, matched []turbine.Descriptor) int {
	if len(matched) == 0 {
		return -1
	}
	return 0
}

// NearestDesign nominates the descriptor whose design point is closest to the
// query on log-scaled axes. Descriptors without a design point use the
// geometric centre of their envelope. Ties go to the earlier descriptor.
type NearestDesign struct{}

func (NearestDesign) Name() string { return StrategyNearestDesign }

func (NearestDesign) Pick(q Query, matched []turbine.Descriptor) int {
	best, bestDist := -1, math.Inf(1)
	for i, d := range matched {
		dq, dh := designPoint(d)
		dist := math.Hypot(logRatio(q.Q, dq), logRatio(q.H, dh))
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best == -1 && len(matched) > 0 {
		return 0
	}
	return best
}

func designPoint(d turbine.Descriptor) (float64, float64) {
	q := centre(d.QMin, d.QMax)
	if d.DesignQ != nil {
		q = *d.DesignQ
	}
	h := centre(d.HMin, d.HMax)
	if d.DesignH != nil {
		h = *d.DesignH
	}
	return q, h
}

func centre(lo, hi float64) float64 {
	if lo > 0 && hi > 0 {
		return math.Sqrt(lo * hi)
	}
	return (lo + hi) / 2
}

// logRatio is |ln(a/b)|, falling back to the absolute difference when either
// value is non-positive.
func logRatio(a, b float64) float64 {
	if a > 0 && b > 0 {
		return math.Abs(math.Log(a / b))
	}
	return math.Abs(a - b)
}
