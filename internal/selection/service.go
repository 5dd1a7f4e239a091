package selection

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

// Store is the read-only view of the record store the service needs.
type Store interface {
	ListTurbines(ctx context.Context) ([]turbine.Descriptor, error)
	GetTurbine(ctx context.Context, id int32) (turbine.Descriptor, error)
	ListEfficiencySamples(ctx context.Context, id int32) ([]turbine.EfficiencySample, error)
}

// Service runs selections and descriptor lookups against a Store.
type Service struct {
	store    Store
	strategy Strategy
}

// NewService returns a Service. A nil strategy means FirstMatch.
func NewService(store Store, strategy Strategy) *Service {
	if strategy == nil {
		strategy = FirstMatch{}
	}
	return &Service{store: store, strategy: strategy}
}

// Strategy returns the strategy used to nominate the best candidate.
func (s *Service) Strategy() Strategy {
	return s.strategy
}

// Select reads every descriptor from the store and matches q against them.
// The store is read exactly once; a read failure fails the whole selection.
func (s *Service) Select(ctx context.Context, q Query) (Result, error) {
	l := log.With().Str("method", "Select").Float64("Q", q.Q).Float64("H", q.H).Logger()
	l.Debug().Msg("received selection")

	all, err := s.store.ListTurbines(ctx)
	if err != nil {
		l.Err(err).Msg("store.ListTurbines()")
		return Result{}, asStoreError(err)
	}

	matched := Filter(q, all)
	for i := range matched {
		decodeCurve(&matched[i])
	}
	res := nominate(q, matched, s.strategy)

	matchedTotal.Observe(float64(len(res.Matched)))
	l.Debug().Int("candidates", len(all)).Int("matched", len(res.Matched)).
		Str("strategy", s.strategy.Name()).Msg("selection complete")
	return res, nil
}

// Turbines returns every descriptor with its efficiency curve decoded.
func (s *Service) Turbines(ctx context.Context) ([]turbine.Descriptor, error) {
	all, err := s.store.ListTurbines(ctx)
	if err != nil {
		log.Err(err).Str("method", "Turbines").Msg("store.ListTurbines()")
		return nil, asStoreError(err)
	}
	for i := range all {
		decodeCurve(&all[i])
	}
	return all, nil
}

// Turbine returns a single descriptor with its efficiency curve decoded.
func (s *Service) Turbine(ctx context.Context, id int32) (turbine.Descriptor, error) {
	d, err := s.store.GetTurbine(ctx, id)
	if err != nil {
		if !errors.Is(err, turbine.ErrNotFound) {
			log.Err(err).Str("method", "Turbine").Int32("id", id).Msg("store.GetTurbine()")
		}
		return turbine.Descriptor{}, asStoreError(err)
	}
	decodeCurve(&d)
	return d, nil
}

// Efficiency returns the stored efficiency samples of a turbine, flow ascending.
func (s *Service) Efficiency(ctx context.Context, id int32) ([]turbine.EfficiencySample, error) {
	samples, err := s.store.ListEfficiencySamples(ctx, id)
	if err != nil {
		log.Err(err).Str("method", "Efficiency").Int32("id", id).Msg("store.ListEfficiencySamples()")
		return nil, asStoreError(err)
	}
	if samples == nil {
		samples = []turbine.EfficiencySample{}
	}
	return samples, nil
}

func decodeCurve(d *turbine.Descriptor) {
	if err := d.DecodeCurve(); err != nil {
		curveDecodeFailures.Inc()
		log.Warn().Err(err).Int32("turbineID", d.ID).Str("name", d.Name).
			Msg("Efficiency curve could not be decoded, continuing without it")
	}
}

// asStoreError keeps classified errors and classifies everything else as a
// store failure.
func asStoreError(err error) error {
	var te *turbine.Error
	if errors.As(err, &te) {
		return err
	}
	return turbine.Wrap(turbine.CodeStoreUnavailable, "record store read failed", err)
}
