package batch

import (
	"github.com/rs/zerolog"

	"github.com/Sternrassler/fssp-client/pkg/fssp"
	"github.com/Sternrassler/fssp-client/pkg/region"
)

// MaxItems is the largest batch the search endpoint accepts.
const MaxItems = 49

// FlushReason tags why a batch was closed.
type FlushReason string

const (
	// FlushSize closes a batch that reached the size cap.
	FlushSize FlushReason = "size"

	// FlushEndOfPerson closes a batch after a person's last region.
	FlushEndOfPerson FlushReason = "end_of_person"
)

// Batcher groups request items into batches.
type Batcher struct {
	catalog  region.Catalog
	maxItems int
	logger   zerolog.Logger
}

// NewBatcher creates a batcher over catalog. A maxItems outside 1..MaxItems
// falls back to MaxItems.
func NewBatcher(catalog region.Catalog, maxItems int, logger zerolog.Logger) *Batcher {
	if maxItems <= 0 || maxItems > MaxItems {
		maxItems = MaxItems
	}
	return &Batcher{
		catalog:  catalog,
		maxItems: maxItems,
		logger:   logger,
	}
}

// Build returns batches covering every (person, region) pair exactly once.
// An empty roster or catalog yields no batches.
func (b *Batcher) Build(persons []fssp.Person) []fssp.Batch {
	last, ok := b.catalog.Last()
	if !ok || len(persons) == 0 {
		return nil
	}
	codes := b.catalog.Codes()

	var batches []fssp.Batch
	buf := make(fssp.Batch, 0, b.maxItems)

	flush := func(reason FlushReason) {
		b.logger.Debug().
			Int("batch", len(batches)).
			Int("items", len(buf)).
			Str("reason", string(reason)).
			Msg("Batch closed")
		batches = append(batches, buf)
		buf = make(fssp.Batch, 0, b.maxItems)
	}

	for _, p := range persons {
		for _, code := range codes {
			buf = append(buf, fssp.NewRequestItem(p, code))

			switch {
			case len(buf) >= b.maxItems:
				flush(FlushSize)
			case code == last:
				flush(FlushEndOfPerson)
			}
		}
	}

	b.logger.Debug().
		Int("persons", len(persons)).
		Int("regions", len(codes)).
		Int("batches", len(batches)).
		Msg("Roster batched")

	return batches
}

// Build batches persons over catalog with the service's size cap.
func Build(persons []fssp.Person, catalog region.Catalog) []fssp.Batch {
	return NewBatcher(catalog, MaxItems, zerolog.Nop()).Build(persons)
}
