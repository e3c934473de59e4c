// Package collect retrieves the result of a ready task and flattens it into
// records, one per matched enforcement case.
package collect

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/fssp-client/pkg/client"
	"github.com/Sternrassler/fssp-client/pkg/fssp"
)

var recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fssp_records_total",
	Help: "Enforcement records collected from task results",
})

// Fetcher retrieves the raw result of a task.
type Fetcher interface {
	Result(ctx context.Context, task fssp.TaskID) (*client.ResultPayload, error)
}

// Collector turns task results into records.
type Collector struct {
	api    Fetcher
	logger zerolog.Logger
}

// New creates a collector.
func New(api Fetcher, logger zerolog.Logger) *Collector {
	return &Collector{
		api:    api,
		logger: logger.With().Str("component", "collector").Logger(),
	}
}

// Collect fetches the result of task and returns its records in payload
// order. A task without matches yields an empty slice.
func (c *Collector) Collect(ctx context.Context, task fssp.TaskID) ([]fssp.Record, error) {
	payload, err := c.api.Result(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("fetch result of task %s: %w", task, err)
	}

	records := Flatten(payload)
	recordsTotal.Add(float64(len(records)))

	c.logger.Debug().
		Str("task", string(task)).
		Int("records", len(records)).
		Msg("Result collected")

	return records, nil
}

// Flatten maps every case entry of every element to a record, preserving
// element order and entry order within an element.
func Flatten(payload *client.ResultPayload) []fssp.Record {
	if payload == nil {
		return []fssp.Record{}
	}

	n := 0
	for _, el := range payload.Elements {
		n += len(el.Result)
	}

	records := make([]fssp.Record, 0, n)
	for _, el := range payload.Elements {
		for _, entry := range el.Result {
			records = append(records, fssp.Record{
				FullName:       entry.Name,
				OrderNumber:    entry.ExeProduction,
				Details:        entry.Details,
				Subject:        entry.Subject,
				BailiffName:    entry.Bailiff,
				AdditionalInfo: entry.IPEnd,
			})
		}
	}
	return records
}
