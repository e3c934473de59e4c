// Package cache provides the submission journal: a Redis record of which
// batches the search service already accepted and under which task id.
//
// Each batch is identified by a deterministic fingerprint of its request
// items. Before submitting, the pipeline looks the fingerprint up; on a hit
// the stored task id is reused and no search call is made. This lets an
// interrupted run be repeated without spending the service's rate limit on
// batches that were accepted the first time.
//
// # Basic Usage
//
//	journal := cache.NewJournal(redisClient, "fssp", 24*time.Hour)
//
//	key := cache.NewBatchKey(batch)
//	entry, err := journal.Get(ctx, key)
//	if errors.Is(err, cache.ErrMiss) {
//		// submit, then
//		_ = journal.Put(ctx, key, cache.NewEntry(task, len(batch), time.Now()))
//	}
//
// Entries expire after the journal TTL, which should not exceed how long the
// service keeps task results.
//
// # Metrics
//
//   - fssp_journal_hits_total - Lookups that found an accepted batch
//   - fssp_journal_misses_total - Lookups without an entry
//   - fssp_journal_errors_total{operation} - Redis errors
package cache
