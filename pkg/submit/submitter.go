package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/fssp-client/pkg/cache"
	"github.com/Sternrassler/fssp-client/pkg/client"
	"github.com/Sternrassler/fssp-client/pkg/fssp"
	"github.com/Sternrassler/fssp-client/pkg/ratelimit"
)

// Prometheus metrics for submission.
var (
	submitAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fssp_submit_attempts_total",
		Help: "Group search submission attempts",
	})

	submitRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fssp_submit_retries_total",
		Help: "Group search submission retries by reason",
	}, []string{"reason"})

	batchesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fssp_batches_dropped_total",
		Help: "Batches abandoned without a task id",
	})
)

var (
	// ErrEmptyBatch is returned for a batch without items.
	ErrEmptyBatch = errors.New("empty batch")

	// ErrRateLimitExhausted is returned when the configured number of
	// rate-limit retries has been used up.
	ErrRateLimitExhausted = errors.New("rate limit retries exhausted")
)

// DefaultRetryInterval is the wait before retrying a rate-limited submission.
const DefaultRetryInterval = 5 * time.Second

// Searcher submits one batch and returns its task id.
type Searcher interface {
	SearchGroup(ctx context.Context, b fssp.Batch) (fssp.TaskID, error)
}

// Journal records accepted batches. *cache.Journal implements it.
type Journal interface {
	Get(ctx context.Context, key cache.BatchKey) (*cache.Entry, error)
	Put(ctx context.Context, key cache.BatchKey, entry *cache.Entry) error
}

// Config holds retry settings.
type Config struct {
	// RetryInterval is the wait after a rate-limited attempt.
	RetryInterval time.Duration

	// MaxRateLimitRetries bounds rate-limit retries. Zero means unbounded.
	MaxRateLimitRetries int

	// MaxTransportRetries is the number of retries after any other
	// failure. Zero drops the batch on the first failure.
	MaxTransportRetries int

	// TransportRetryInterval is the wait after a non rate-limit failure.
	TransportRetryInterval time.Duration
}

// DefaultConfig returns the default retry settings.
func DefaultConfig() Config {
	return Config{
		RetryInterval:          DefaultRetryInterval,
		TransportRetryInterval: DefaultRetryInterval,
	}
}

// Outcome describes a successful submission.
type Outcome struct {
	Task        fssp.TaskID
	Attempts    int
	Throttled   int
	FromJournal bool
}

// Submitter submits batches one at a time.
type Submitter struct {
	api     Searcher
	pacer   *ratelimit.Pacer
	clock   ratelimit.Clock
	journal Journal
	cfg     Config
	logger  zerolog.Logger
}

// New creates a submitter. The pacer's clock is also used for retry waits
// when WithClock is not called.
func New(api Searcher, pacer *ratelimit.Pacer, cfg Config, logger zerolog.Logger) *Submitter {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.TransportRetryInterval <= 0 {
		cfg.TransportRetryInterval = cfg.RetryInterval
	}
	return &Submitter{
		api:    api,
		pacer:  pacer,
		clock:  ratelimit.SystemClock{},
		cfg:    cfg,
		logger: logger.With().Str("component", "submitter").Logger(),
	}
}

// WithClock sets the clock for retry waits.
func (s *Submitter) WithClock(clock ratelimit.Clock) *Submitter {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// WithJournal attaches a submission journal.
func (s *Submitter) WithJournal(journal Journal) *Submitter {
	s.journal = journal
	return s
}

// Submit returns the journaled task for b if one exists. Otherwise it sends
// b until a task id is obtained, the retry policy gives up, or ctx is done.
func (s *Submitter) Submit(ctx context.Context, b fssp.Batch) (Outcome, error) {
	if len(b) == 0 {
		return Outcome{}, ErrEmptyBatch
	}
	if task, ok := s.lookup(ctx, cache.NewBatchKey(b)); ok {
		return Outcome{Task: task, FromJournal: true}, nil
	}
	return s.SubmitFresh(ctx, b)
}

// SubmitFresh sends b without consulting the journal. The accepted task
// replaces any journaled one.
func (s *Submitter) SubmitFresh(ctx context.Context, b fssp.Batch) (Outcome, error) {
	if len(b) == 0 {
		return Outcome{}, ErrEmptyBatch
	}

	key := cache.NewBatchKey(b)
	throttlePolicy := throttleBackOff(s.cfg.RetryInterval, s.cfg.MaxRateLimitRetries)
	failurePolicy := failureBackOff(s.cfg.TransportRetryInterval, s.cfg.MaxTransportRetries)

	var out Outcome
	for {
		if err := s.pacer.Wait(ctx); err != nil {
			return out, fmt.Errorf("wait for submission slot: %w", err)
		}

		out.Attempts++
		submitAttemptsTotal.Inc()

		task, err := s.api.SearchGroup(ctx, b)
		if err == nil {
			out.Task = task
			s.record(ctx, key, task, len(b))
			s.logger.Info().
				Str("task", string(task)).
				Int("items", len(b)).
				Int("attempt", out.Attempts).
				Msg("Batch accepted")
			return out, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}

		var wait time.Duration
		var reason string
		if client.IsRateLimited(err) {
			out.Throttled++
			s.pacer.Throttled(ctx)
			wait = throttlePolicy.NextBackOff()
			reason = string(client.ErrorClassRateLimited)
			if wait == backoff.Stop {
				batchesDroppedTotal.Inc()
				s.logger.Warn().
					Int("items", len(b)).
					Int("attempt", out.Attempts).
					Msg("Batch dropped, rate limit retries exhausted")
				return out, fmt.Errorf("%w after %d attempts: %v", ErrRateLimitExhausted, out.Attempts, err)
			}
		} else {
			wait = failurePolicy.NextBackOff()
			reason = string(client.ClassOf(err))
			if reason == "" {
				reason = "unknown"
			}
			if wait == backoff.Stop {
				batchesDroppedTotal.Inc()
				s.logger.Warn().
					Err(err).
					Str("error_class", reason).
					Int("items", len(b)).
					Int("attempt", out.Attempts).
					Msg("Batch dropped")
				return out, fmt.Errorf("submit batch: %w", err)
			}
		}

		submitRetriesTotal.WithLabelValues(reason).Inc()
		s.logger.Debug().
			Str("error_class", reason).
			Int("attempt", out.Attempts).
			Dur("wait", wait).
			Msg("Retrying submission")

		if err := s.clock.Sleep(ctx, wait); err != nil {
			return out, err
		}
	}
}

// throttleBackOff retries every interval, at most max times; 0 is unbounded.
func throttleBackOff(interval time.Duration, max int) backoff.BackOff {
	b := backoff.NewConstantBackOff(interval)
	if max <= 0 {
		return b
	}
	return backoff.WithMaxRetries(b, uint64(max))
}

// failureBackOff retries every interval, at most max times; 0 never retries.
func failureBackOff(interval time.Duration, max int) backoff.BackOff {
	if max <= 0 {
		return &backoff.StopBackOff{}
	}
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(max))
}

func (s *Submitter) lookup(ctx context.Context, key cache.BatchKey) (fssp.TaskID, bool) {
	if s.journal == nil {
		return "", false
	}
	entry, err := s.journal.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn().Err(err).Msg("Journal lookup failed")
		}
		return "", false
	}
	s.logger.Info().
		Str("task", string(entry.Task)).
		Int("items", entry.Items).
		Dur("age", entry.Age(s.clock.Now())).
		Msg("Batch already accepted, reusing task")
	return entry.Task, true
}

func (s *Submitter) record(ctx context.Context, key cache.BatchKey, task fssp.TaskID, items int) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Put(ctx, key, cache.NewEntry(task, items, s.clock.Now())); err != nil {
		s.logger.Warn().Err(err).Str("task", string(task)).Msg("Failed to journal accepted batch")
	}
}
