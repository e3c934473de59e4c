// Package batch expands a roster into search request items and groups them
// into batches the search service accepts in a single call.
//
// Every person is replicated across all regions of a catalog. Items are
// appended in (person, region) order and the buffer is flushed on one of two
// competing conditions:
//
//   - FlushSize: the buffer holds MaxItems items
//   - FlushEndOfPerson: the item just appended is the person's last region
//
// With the default 82-region catalog the size condition fires first, so each
// person is split across two consecutive batches (49 + 33 items). Batches
// never mix items of different people.
//
// Example usage:
//
//	batches := batch.Build(persons, region.Default())
//	for _, b := range batches {
//		task, err := submitter.Submit(ctx, b)
//		...
//	}
package batch
