package selection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchedTotal = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "turbines",
			Name:      "selection_matched_count",
			Help:      "Number of turbines matched per selection.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
	)

	curveDecodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "turbines",
			Name:      "curve_decode_failures_total",
			Help:      "Serialized efficiency curves that could not be decoded.",
		},
	)
)
