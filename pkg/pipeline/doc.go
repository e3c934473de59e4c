// Package pipeline runs one search over a roster: build batches, submit them
// one by one, poll the accepted tasks and collect the records of the ready
// ones.
//
// A run never fails because of a dropped batch or task under the default
// best-effort policy; the Report's Stats say what was lost. The strict
// policy returns ErrIncomplete alongside the report instead.
//
// Usage:
//
//	orch := pipeline.New(batcher, submitter, apiClient, collector, pipeline.Options{}, logger)
//	report, err := orch.Run(ctx, persons)
package pipeline
