package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/fssp-client/pkg/batch"
	"github.com/Sternrassler/fssp-client/pkg/fssp"
	"github.com/Sternrassler/fssp-client/pkg/logging"
	"github.com/Sternrassler/fssp-client/pkg/metrics"
	"github.com/Sternrassler/fssp-client/pkg/poll"
	"github.com/Sternrassler/fssp-client/pkg/ratelimit"
	"github.com/Sternrassler/fssp-client/pkg/store"
	"github.com/Sternrassler/fssp-client/pkg/submit"
)

// ErrIncomplete is returned under PolicyStrict when any batch or task was
// dropped.
var ErrIncomplete = errors.New("run incomplete")

// Policy decides whether losses fail a run.
type Policy string

const (
	// PolicyBestEffort returns whatever was collected without error.
	PolicyBestEffort Policy = "best_effort"

	// PolicyStrict returns ErrIncomplete when anything was dropped.
	PolicyStrict Policy = "strict"
)

// ParsePolicy converts a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyBestEffort, "":
		return PolicyBestEffort, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown completion policy %q (want best_effort or strict)", s)
	}
}

// BatchSubmitter submits one batch. *submit.Submitter implements it.
type BatchSubmitter interface {
	// Submit may answer from a journal of earlier accepted batches.
	Submit(ctx context.Context, b fssp.Batch) (submit.Outcome, error)

	// SubmitFresh always sends the batch.
	SubmitFresh(ctx context.Context, b fssp.Batch) (submit.Outcome, error)
}

// Options configures an Orchestrator.
type Options struct {
	// Poll configures the sweeps after submission.
	Poll poll.Config

	// Policy is the completion policy (best effort if empty).
	Policy Policy

	// NewPending creates the pending set of a run. Defaults to an
	// in-memory set.
	NewPending func(runID string) store.PendingSet

	// Clock is used for poll delays and run timestamps.
	Clock ratelimit.Clock
}

// Stats counts what happened during a run.
type Stats struct {
	Persons            int `json:"persons"`
	Batches            int `json:"batches"`
	Submitted          int `json:"submitted"`
	JournalHits        int `json:"journal_hits"`
	RateLimitedRetries int `json:"rate_limited_retries"`
	DroppedBatches     int `json:"dropped_batches"`
	TasksReady         int `json:"tasks_ready"`
	IncompleteTasks    int `json:"incomplete_tasks"`
	StatusFailures     int `json:"status_failures"`
	ResultFailures     int `json:"result_failures"`
	DuplicateTasks     int `json:"duplicate_tasks"`
	CancelledBatches   int `json:"cancelled_batches"`
	CancelledTasks     int `json:"cancelled_tasks"`
	Records            int `json:"records"`
}

// Lost returns the number of batches and tasks that produced no records
// because of a failure, cancellation or incomplete processing.
func (s Stats) Lost() int {
	return s.DroppedBatches + s.IncompleteTasks + s.StatusFailures + s.ResultFailures +
		s.DuplicateTasks + s.CancelledBatches + s.CancelledTasks
}

// Report is the result of a run.
type Report struct {
	RunID      string
	Records    []fssp.Record
	Stats      Stats
	Tasks      []poll.TaskOutcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// Orchestrator drives a run. A single Orchestrator must not run concurrently
// with itself; submissions are serialized by the submitter's pacer.
type Orchestrator struct {
	batcher   *batch.Batcher
	submitter BatchSubmitter
	status    poll.StatusChecker
	collector poll.ResultCollector
	opts      Options
	logger    zerolog.Logger
}

// New creates an orchestrator.
func New(batcher *batch.Batcher, submitter BatchSubmitter, status poll.StatusChecker, collector poll.ResultCollector, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.Policy == "" {
		opts.Policy = PolicyBestEffort
	}
	if opts.NewPending == nil {
		opts.NewPending = func(string) store.PendingSet { return store.NewMemory() }
	}
	if opts.Clock == nil {
		opts.Clock = ratelimit.SystemClock{}
	}
	if opts.Poll.MaxSweeps < 1 {
		opts.Poll.MaxSweeps = 1
	}
	return &Orchestrator{
		batcher:   batcher,
		submitter: submitter,
		status:    status,
		collector: collector,
		opts:      opts,
		logger:    logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run searches for every person in every region and returns the collected
// records. An empty roster is a no-op that makes no requests.
func (o *Orchestrator) Run(ctx context.Context, persons []fssp.Person) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Records:   []fssp.Record{},
		StartedAt: o.opts.Clock.Now(),
	}
	report.Stats.Persons = len(persons)
	log := logging.WithRun(o.logger, report.RunID)

	if len(persons) == 0 {
		log.Info().Msg("Empty roster, nothing to search")
		return o.finish(report, metrics.OutcomeEmpty, nil)
	}

	batches := o.batcher.Build(persons)
	report.Stats.Batches = len(batches)
	log.Info().
		Int("persons", len(persons)).
		Int("batches", len(batches)).
		Msg("Run started")

	pending := o.opts.NewPending(report.RunID)

	for i, b := range batches {
		out, err := o.submitter.Submit(ctx, b)
		report.Stats.RateLimitedRetries += out.Throttled

		if err == nil && out.FromJournal {
			added, addErr := pending.Add(ctx, out.Task)
			if addErr != nil {
				return o.finish(report, metrics.OutcomeFailed, fmt.Errorf("record task %s: %w", out.Task, addErr))
			}
			if added {
				report.Stats.JournalHits++
				continue
			}
			// An identical batch earlier in this run already owns the
			// journaled task.
			log.Debug().
				Str("task", string(out.Task)).
				Int("batch", i).
				Msg("Journaled task already pending, submitting batch again")
			out, err = o.submitter.SubmitFresh(ctx, b)
			report.Stats.RateLimitedRetries += out.Throttled
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				o.cancelSubmission(ctx, report, pending, len(batches)-i, ctxErr, log)
				return o.finish(report, metrics.OutcomeFailed, fmt.Errorf("submit batch %d: %w", i, ctxErr))
			}
			report.Stats.DroppedBatches++
			log.Warn().
				Err(err).
				Int("batch", i).
				Int("items", len(b)).
				Msg("Batch dropped")
			continue
		}
		report.Stats.Submitted++

		added, err := pending.Add(ctx, out.Task)
		if err != nil {
			return o.finish(report, metrics.OutcomeFailed, fmt.Errorf("record task %s: %w", out.Task, err))
		}
		if !added {
			report.Stats.DuplicateTasks++
			log.Warn().
				Str("task", string(out.Task)).
				Int("batch", i).
				Msg("Task id already pending, batch results lost")
		}
	}

	poller := poll.New(o.status, o.collector, pending, o.opts.Poll, o.logger).WithClock(o.opts.Clock)
	pr, err := poller.Run(ctx)
	if pr != nil {
		report.Tasks = pr.Outcomes
		report.Records = append(report.Records, pr.Records...)
		report.Stats.TasksReady = pr.Ready
		report.Stats.IncompleteTasks = pr.Incomplete
		report.Stats.StatusFailures = pr.StatusFailures
		report.Stats.ResultFailures = pr.ResultFailures
		report.Stats.CancelledTasks = pr.Cancelled
	}
	report.Stats.Records = len(report.Records)
	if err != nil {
		return o.finish(report, metrics.OutcomeFailed, fmt.Errorf("poll tasks: %w", err))
	}

	log.Info().
		Int("submitted", report.Stats.Submitted).
		Int("journal_hits", report.Stats.JournalHits).
		Int("dropped_batches", report.Stats.DroppedBatches).
		Int("ready", report.Stats.TasksReady).
		Int("incomplete", report.Stats.IncompleteTasks).
		Int("duplicates", report.Stats.DuplicateTasks).
		Int("records", report.Stats.Records).
		Msg("Run finished")

	if lost := report.Stats.Lost(); lost > 0 {
		if o.opts.Policy == PolicyStrict {
			return o.finish(report, metrics.OutcomeIncomplete, fmt.Errorf("%w: %d batches or tasks lost", ErrIncomplete, lost))
		}
		return o.finish(report, metrics.OutcomeIncomplete, nil)
	}
	return o.finish(report, metrics.OutcomeComplete, nil)
}

// cancelSubmission accounts for the batches never submitted and the tasks
// accepted before ctx was done. Accepted tasks are removed from pending.
func (o *Orchestrator) cancelSubmission(ctx context.Context, report *Report, pending store.PendingSet, unsent int, cause error, log zerolog.Logger) {
	report.Stats.CancelledBatches = unsent

	tasks, err := pending.Drain(context.WithoutCancel(ctx), o.opts.Poll.Order)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to drain pending set after cancellation")
	}
	for _, task := range tasks {
		report.Tasks = append(report.Tasks, poll.TaskOutcome{Task: task, State: poll.StateDropped, Err: cause})
	}
	report.Stats.CancelledTasks = len(tasks)

	log.Warn().
		Err(cause).
		Int("unsent_batches", unsent).
		Int("accepted_tasks", len(tasks)).
		Msg("Submission cancelled")
}

func (o *Orchestrator) finish(report *Report, outcome string, err error) (*Report, error) {
	report.Stats.Records = len(report.Records)
	report.FinishedAt = o.opts.Clock.Now()
	metrics.ObserveRun(outcome, report.FinishedAt.Sub(report.StartedAt).Seconds())
	return report, err
}
