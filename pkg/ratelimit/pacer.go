package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for pacing.
var (
	pacerWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fssp_pacer_wait_seconds",
		Help:    "Time spent waiting for the submission spacing",
		Buckets: []float64{0, 0.5, 1, 2, 5, 10, 30},
	})

	pacerStoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fssp_pacer_store_errors_total",
		Help: "Shared pacing state errors by operation",
	}, []string{"operation"})
)

// StateStore shares pacing state between processes.
type StateStore interface {
	GetState(ctx context.Context) (*State, error)
	RecordAttempt(ctx context.Context, at time.Time) error
	RecordThrottle(ctx context.Context, at time.Time) error
}

// Pacer guarantees a minimum interval between the starts of consecutive
// attempts. It is safe for concurrent use; concurrent callers are serialized.
type Pacer struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
	clock    Clock
	store    StateStore
	last     time.Time
	logger   zerolog.Logger
}

// NewPacer creates a pacer. An interval below MinInterval is raised to it.
func NewPacer(interval time.Duration, clock Clock, logger zerolog.Logger) *Pacer {
	if interval < MinInterval {
		interval = MinInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Pacer{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// WithStore attaches shared state. Store failures are logged and pacing
// falls back to local state.
func (p *Pacer) WithStore(store StateStore) *Pacer {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store = store
	return p
}

// Interval returns the enforced spacing.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait blocks until an attempt may start and records it as started.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	r := p.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)

	// The token bucket works in float seconds; the floor on the last local
	// attempt keeps the spacing exact.
	if !p.last.IsZero() {
		if d := p.last.Add(p.interval).Sub(now); d > delay {
			delay = d
		}
	}

	var shared *State
	if p.store != nil {
		state, err := p.store.GetState(ctx)
		if err != nil {
			pacerStoreErrorsTotal.WithLabelValues("get").Inc()
			p.logger.Warn().Err(err).Msg("Shared pacing state unavailable, using local state")
		} else {
			shared = state
			if d := state.WaitFrom(now, p.interval); d > delay {
				delay = d
			}
		}
	}

	if delay > 0 {
		ev := p.logger.Debug().Dur("wait", delay)
		if shared != nil {
			ev = ev.Int64("throttles", shared.Throttles).
				Bool("throttled", shared.IsThrottled(now, p.interval))
		}
		ev.Msg("Waiting for submission spacing")
		if err := p.clock.Sleep(ctx, delay); err != nil {
			r.CancelAt(p.clock.Now())
			return err
		}
	}
	pacerWaitSeconds.Observe(delay.Seconds())

	p.last = p.clock.Now()

	if p.store != nil {
		if err := p.store.RecordAttempt(ctx, p.last); err != nil {
			pacerStoreErrorsTotal.WithLabelValues("record_attempt").Inc()
			p.logger.Warn().Err(err).Msg("Failed to share attempt time")
		}
	}

	return nil
}

// Throttled records that the service answered with its backpressure signal.
func (p *Pacer) Throttled(ctx context.Context) {
	p.mu.Lock()
	store := p.store
	p.mu.Unlock()

	if store == nil {
		return
	}
	if err := store.RecordThrottle(ctx, p.clock.Now()); err != nil {
		pacerStoreErrorsTotal.WithLabelValues("record_throttle").Inc()
		p.logger.Warn().Err(err).Msg("Failed to share throttle")
	}
}
