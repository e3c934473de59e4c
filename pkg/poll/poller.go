package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/fssp-client/pkg/client"
	"github.com/Sternrassler/fssp-client/pkg/fssp"
	"github.com/Sternrassler/fssp-client/pkg/ratelimit"
	"github.com/Sternrassler/fssp-client/pkg/store"
)

var tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fssp_tasks_total",
	Help: "Polled tasks by final outcome",
}, []string{"state"})

// State is the lifecycle state of a task.
type State string

const (
	StateSubmitted State = "submitted"
	StateReady     State = "ready"
	StateDropped   State = "dropped"
)

// Reasons a task is dropped, used as metric labels.
const (
	reasonIncomplete  = "incomplete"
	reasonStatusError = "status_error"
	reasonResultError = "result_error"
	reasonCancelled   = "cancelled"
	labelReady        = "ready"
)

// StatusChecker reports the processing status code of a task.
type StatusChecker interface {
	Status(ctx context.Context, task fssp.TaskID) (int, error)
}

// ResultCollector turns the result of a ready task into records.
type ResultCollector interface {
	Collect(ctx context.Context, task fssp.TaskID) ([]fssp.Record, error)
}

// Config controls sweeping.
type Config struct {
	// MaxSweeps is the number of passes over the pending set. Values below
	// one are treated as one.
	MaxSweeps int

	// SweepInterval is the pause between sweeps.
	SweepInterval time.Duration

	// InitialDelay is the pause before the first sweep.
	InitialDelay time.Duration

	// Order is the order tasks are visited within a sweep.
	Order store.Order
}

// DefaultConfig returns a single LIFO sweep without delays.
func DefaultConfig() Config {
	return Config{
		MaxSweeps: 1,
		Order:     store.LIFO,
	}
}

// TaskOutcome is the final state of one task.
type TaskOutcome struct {
	Task    fssp.TaskID
	State   State
	Code    int
	Sweeps  int
	Records int
	Err     error
}

// Report summarizes a poll run.
type Report struct {
	Outcomes       []TaskOutcome
	Records        []fssp.Record
	Sweeps         int
	Ready          int
	Incomplete     int
	StatusFailures int
	ResultFailures int

	// Cancelled counts tasks left unchecked when the context was done.
	Cancelled int
}

// Dropped returns the number of tasks that produced no records.
func (r *Report) Dropped() int {
	return r.Incomplete + r.StatusFailures + r.ResultFailures + r.Cancelled
}

// Poller drains a pending set, checking each task's status and collecting
// ready results.
type Poller struct {
	status    StatusChecker
	collector ResultCollector
	pending   store.PendingSet
	clock     ratelimit.Clock
	cfg       Config
	logger    zerolog.Logger
}

// New creates a poller over pending.
func New(status StatusChecker, collector ResultCollector, pending store.PendingSet, cfg Config, logger zerolog.Logger) *Poller {
	if cfg.MaxSweeps < 1 {
		cfg.MaxSweeps = 1
	}
	if cfg.Order == "" {
		cfg.Order = store.LIFO
	}
	return &Poller{
		status:    status,
		collector: collector,
		pending:   pending,
		clock:     ratelimit.SystemClock{},
		cfg:       cfg,
		logger:    logger.With().Str("component", "poller").Logger(),
	}
}

// WithClock sets the clock used for delays.
func (p *Poller) WithClock(clock ratelimit.Clock) *Poller {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Run sweeps the pending set until it is empty or MaxSweeps is reached.
// After Run returns the pending set is empty unless the set itself failed.
// On context cancellation every task not yet finished is reported as
// dropped and cancelled, and the context error is returned.
func (p *Poller) Run(ctx context.Context) (*Report, error) {
	report := &Report{Records: []fssp.Record{}}
	sweeps := make(map[fssp.TaskID]int)

	for sweep := 1; sweep <= p.cfg.MaxSweeps; sweep++ {
		if err := ctx.Err(); err != nil {
			return report, p.cancel(ctx, report, nil, sweeps, err)
		}
		n, err := p.pending.Len(ctx)
		if err != nil {
			return report, fmt.Errorf("pending set: %w", err)
		}
		if n == 0 {
			break
		}

		delay := p.cfg.SweepInterval
		if sweep == 1 {
			delay = p.cfg.InitialDelay
		}
		if delay > 0 {
			p.logger.Debug().Dur("wait", delay).Int("pending", n).Msg("Waiting before sweep")
			if err := p.clock.Sleep(ctx, delay); err != nil {
				return report, p.cancel(ctx, report, nil, sweeps, err)
			}
		}

		tasks, err := p.pending.Drain(ctx, p.cfg.Order)
		if err != nil {
			return report, fmt.Errorf("drain pending set: %w", err)
		}
		report.Sweeps = sweep
		final := sweep == p.cfg.MaxSweeps

		for i, task := range tasks {
			if err := ctx.Err(); err != nil {
				return report, p.cancel(ctx, report, tasks[i:], sweeps, err)
			}
			sweeps[task]++
			if out, done := p.check(ctx, task, sweeps[task], final, report); done {
				report.Outcomes = append(report.Outcomes, out)
				continue
			}
			if err := ctx.Err(); err != nil {
				return report, p.cancel(ctx, report, tasks[i:], sweeps, err)
			}
			if _, err := p.pending.Add(ctx, task); err != nil {
				return report, fmt.Errorf("requeue task %s: %w", task, err)
			}
		}

		p.logger.Info().
			Int("sweep", sweep).
			Int("checked", len(tasks)).
			Int("ready", report.Ready).
			Int("dropped", report.Dropped()).
			Msg("Sweep finished")
	}

	return report, nil
}

// cancel reports unvisited and every task still pending as cancelled and
// returns cause. The pending set is emptied with a context that ignores the
// cancellation.
func (p *Poller) cancel(ctx context.Context, report *Report, unvisited []fssp.TaskID, sweeps map[fssp.TaskID]int, cause error) error {
	rest, err := p.pending.Drain(context.WithoutCancel(ctx), p.cfg.Order)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to drain pending set after cancellation")
	}

	left := make([]fssp.TaskID, 0, len(unvisited)+len(rest))
	left = append(left, unvisited...)
	left = append(left, rest...)
	for _, task := range left {
		report.Cancelled++
		tasksTotal.WithLabelValues(reasonCancelled).Inc()
		report.Outcomes = append(report.Outcomes, TaskOutcome{
			Task:   task,
			State:  StateDropped,
			Sweeps: sweeps[task],
			Err:    cause,
		})
	}
	if len(left) > 0 {
		p.logger.Warn().
			Err(cause).
			Int("tasks", len(left)).
			Msg("Polling cancelled, pending tasks dropped")
	}
	return cause
}

// check handles one task. It returns done=false when the task should be
// checked again in a later sweep.
func (p *Poller) check(ctx context.Context, task fssp.TaskID, sweep int, final bool, report *Report) (TaskOutcome, bool) {
	out := TaskOutcome{Task: task, State: StateSubmitted, Sweeps: sweep}
	log := p.logger.With().Str("task", string(task)).Int("sweep", sweep).Logger()

	code, err := p.status.Status(ctx, task)
	if err != nil {
		if !final || ctx.Err() != nil {
			log.Debug().Err(err).Msg("Status check failed, will retry")
			return out, false
		}
		report.StatusFailures++
		tasksTotal.WithLabelValues(reasonStatusError).Inc()
		log.Warn().
			Err(err).
			Str("error_class", string(client.ClassOf(err))).
			Msg("Task dropped, status check failed")
		out.State = StateDropped
		out.Err = err
		return out, true
	}
	out.Code = code

	if !fssp.IsReady(code) {
		if !final {
			log.Debug().Int("code", code).Msg("Task not ready, requeued")
			return out, false
		}
		report.Incomplete++
		tasksTotal.WithLabelValues(reasonIncomplete).Inc()
		log.Warn().Int("code", code).Msg("Task dropped, not ready")
		out.State = StateDropped
		return out, true
	}

	records, err := p.collector.Collect(ctx, task)
	if err != nil {
		if ctx.Err() != nil {
			return out, false
		}
		report.ResultFailures++
		tasksTotal.WithLabelValues(reasonResultError).Inc()
		log.Warn().
			Err(err).
			Str("error_class", string(client.ClassOf(err))).
			Msg("Task dropped, result fetch failed")
		out.State = StateDropped
		out.Err = err
		return out, true
	}

	report.Ready++
	report.Records = append(report.Records, records...)
	tasksTotal.WithLabelValues(labelReady).Inc()
	log.Info().Int("code", code).Int("records", len(records)).Msg("Task ready")

	out.State = StateReady
	out.Records = len(records)
	return out, true
}
