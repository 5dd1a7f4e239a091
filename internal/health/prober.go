package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is anything whose reachability can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober periodically pings a store and publishes whether it is reachable.
type Prober struct {
	pinger    Pinger
	health    *health.Server
	interval  time.Duration
	timeout   time.Duration
	listeners []func(ready bool)
	ready     atomic.Bool
	probed    atomic.Bool
}

// NewProber returns a Prober for pinger. hs may be nil when only listeners
// are interested.
func NewProber(pinger Pinger, hs *health.Server, interval, timeout time.Duration) *Prober {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Prober{pinger: pinger, health: hs, interval: interval, timeout: timeout}
}

// OnChange registers fn to be called with each readiness transition, and
// with the outcome of the first probe. Register before Run.
func (p *Prober) OnChange(fn func(ready bool)) {
	p.listeners = append(p.listeners, fn)
}

// Ready reports the outcome of the latest probe.
func (p *Prober) Ready() bool {
	return p.ready.Load()
}

// Check pings once and publishes the result.
func (p *Prober) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(ctx)
	ready := err == nil

	first := !p.probed.Swap(true)
	if p.ready.Swap(ready) == ready && !first {
		return ready
	}

	if ready {
		log.Info().Msg("Record store reachable, serving")
	} else {
		log.Warn().Err(err).Msg("Record store unreachable, not serving")
	}
	if p.health != nil {
		st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
		if ready {
			st = grpc_health_v1.HealthCheckResponse_SERVING
		}
		p.health.SetServingStatus("", st)
		p.health.SetServingStatus(ServiceName, st)
	}
	for _, fn := range p.listeners {
		fn(ready)
	}
	return ready
}

// Run probes immediately and then every interval until ctx is cancelled.
// On return the health service is marked NOT_SERVING.
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			if p.health != nil {
				p.health.Shutdown()
			}
			return nil
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
