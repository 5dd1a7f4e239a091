// Package database defines the record store holding turbine descriptors and
// their efficiency samples. Implementations live in the postgres and dummy
// subpackages.
package database

import (
	"context"

	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

// TurbineStore is the read surface of the record store.
type TurbineStore interface {
	// ListTurbines returns every descriptor ordered by id, with RawCurve set
	// and the curve left undecoded.
	ListTurbines(ctx context.Context) ([]turbine.Descriptor, error)
	// GetTurbine returns a turbine.ErrNotFound error when id is unknown.
	GetTurbine(ctx context.Context, id int32) (turbine.Descriptor, error)
	// ListEfficiencySamples returns samples ordered by flow ascending.
	ListEfficiencySamples(ctx context.Context, id int32) ([]turbine.EfficiencySample, error)
	// Ping reports whether the store can currently serve reads.
	Ping(ctx context.Context) error
}
