package database

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "turbines",
		Name:      "store_breaker_state",
		Help:      "Record store circuit breaker state (0 closed, 1 half-open, 2 open).",
	},
	[]string{"name"},
)

// BreakerSettings configures a BreakerStore.
type BreakerSettings struct {
	Name string
	// ConsecutiveFailures trips the breaker open.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a probe through.
	OpenTimeout time.Duration
}

// BreakerStore guards a TurbineStore with a circuit breaker. While the breaker
// is open, reads fail immediately with a StoreUnavailable error instead of
// reaching the store. Lookups that fail with NotFound count as successes, as
// do reads abandoned because the caller's context ended.
type BreakerStore struct {
	next TurbineStore
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps next.
func NewBreakerStore(next TurbineStore, s BreakerSettings) *BreakerStore {
	if s.Name == "" {
		s.Name = "turbine-store"
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 10 * time.Second
	}
	breakerState.WithLabelValues(s.Name).Set(float64(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    s.Name,
		Timeout: s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			var done callerDone
			return err == nil || errors.Is(err, turbine.ErrNotFound) || errors.As(err, &done)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Record store circuit breaker changed state")
		},
	})
	return &BreakerStore{next: next, cb: cb}
}

// State returns the breaker's current state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) ListTurbines(ctx context.Context) ([]turbine.Descriptor, error) {
	return execute(ctx, b, func() ([]turbine.Descriptor, error) { return b.next.ListTurbines(ctx) })
}

func (b *BreakerStore) GetTurbine(ctx context.Context, id int32) (turbine.Descriptor, error) {
	return execute(ctx, b, func() (turbine.Descriptor, error) { return b.next.GetTurbine(ctx, id) })
}

func (b *BreakerStore) ListEfficiencySamples(ctx context.Context, id int32) ([]turbine.EfficiencySample, error) {
	return execute(ctx, b, func() ([]turbine.EfficiencySample, error) { return b.next.ListEfficiencySamples(ctx, id) })
}

// Ping bypasses the breaker so readiness reflects the store itself.
func (b *BreakerStore) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}

// callerDone marks a store error caused by the caller giving up rather than
// by the store itself.
type callerDone struct{ err error }

func (e callerDone) Error() string { return e.err.Error() }
func (e callerDone) Unwrap() error { return e.err }

func execute[T any](ctx context.Context, b *BreakerStore, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		v, err := fn()
		if err != nil && ctx.Err() != nil &&
			(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return v, callerDone{err: err}
		}
		return v, err
	})
	if err != nil {
		var zero T
		var done callerDone
		switch {
		case errors.As(err, &done):
			return zero, done.err
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			return zero, turbine.Wrap(turbine.CodeStoreUnavailable, "record store circuit open", err)
		}
		return zero, err
	}
	return res.(T), nil
}

var _ TurbineStore = (*BreakerStore)(nil)
