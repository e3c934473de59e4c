package batch

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/fssp-client/pkg/fssp"
	"github.com/Sternrassler/fssp-client/pkg/region"
)

func makePersons(n int) []fssp.Person {
	persons := make([]fssp.Person, n)
	for i := range persons {
		persons[i] = fssp.Person{
			LastName:   fmt.Sprintf("Last%d", i),
			FirstName:  fmt.Sprintf("First%d", i),
			Patronymic: "P.",
			BirthDate:  time.Date(1980+i%30, time.March, 1+i%28, 0, 0, 0, 0, time.UTC),
		}
	}
	return persons
}

func TestBuild_EmptyRoster(t *testing.T) {
	if got := Build(nil, region.Default()); len(got) != 0 {
		t.Errorf("Build(nil) returned %d batches, want 0", len(got))
	}
	if got := Build(makePersons(3), region.New()); len(got) != 0 {
		t.Errorf("Build with empty catalog returned %d batches, want 0", len(got))
	}
}

func TestBuild_DefaultCatalogSplitsPerson(t *testing.T) {
	batches := Build(makePersons(1), region.Default())

	if len(batches) != 2 {
		t.Fatalf("len(batches) = %d, want 2", len(batches))
	}
	if len(batches[0]) != 49 {
		t.Errorf("len(batches[0]) = %d, want 49", len(batches[0]))
	}
	if len(batches[1]) != 33 {
		t.Errorf("len(batches[1]) = %d, want 33", len(batches[1]))
	}
	if batches[0][48].Region != 49 || batches[1][0].Region != 50 {
		t.Errorf("split at regions %d/%d, want 49/50", batches[0][48].Region, batches[1][0].Region)
	}
	if batches[1][32].Region != 92 {
		t.Errorf("last region = %d, want 92", batches[1][32].Region)
	}
}

func TestBuild_SmallCatalogFlushesPerPerson(t *testing.T) {
	batches := Build(makePersons(3), region.New(1, 2, 3))

	if len(batches) != 3 {
		t.Fatalf("len(batches) = %d, want 3", len(batches))
	}
	for i, b := range batches {
		if len(b) != 3 {
			t.Errorf("len(batches[%d]) = %d, want 3", i, len(b))
		}
		for _, item := range b {
			if item.LastName != fmt.Sprintf("Last%d", i) {
				t.Errorf("batch %d contains item for %s", i, item.LastName)
			}
		}
	}
}

func TestBuild_CoversCrossProductExactlyOnce(t *testing.T) {
	for _, n := range []int{1, 2, 5, 13} {
		t.Run(fmt.Sprintf("persons=%d", n), func(t *testing.T) {
			persons := makePersons(n)
			catalog := region.Default()
			batches := Build(persons, catalog)

			minBatches := (n*catalog.Len() + MaxItems - 1) / MaxItems
			if len(batches) < minBatches {
				t.Errorf("len(batches) = %d, want >= %d", len(batches), minBatches)
			}

			type pair struct {
				name   string
				region int
			}
			seen := make(map[pair]int)
			for i, b := range batches {
				if len(b) < 1 || len(b) > MaxItems {
					t.Errorf("batch %d has %d items", i, len(b))
				}
				for _, item := range b {
					if item.Type != fssp.SearchIndividual {
						t.Errorf("item type = %d, want %d", item.Type, fssp.SearchIndividual)
					}
					seen[pair{item.LastName, item.Region}]++
				}
			}

			if len(seen) != n*catalog.Len() {
				t.Errorf("distinct pairs = %d, want %d", len(seen), n*catalog.Len())
			}
			for p, count := range seen {
				if count != 1 {
					t.Errorf("pair %v appears %d times", p, count)
				}
			}
			for _, p := range persons {
				for _, code := range catalog.Codes() {
					if seen[pair{p.LastName, code}] != 1 {
						t.Errorf("missing pair (%s, %d)", p.LastName, code)
					}
				}
			}
		})
	}
}

func TestBuild_PreservesOrder(t *testing.T) {
	persons := makePersons(2)
	batches := Build(persons, region.Default())

	var flat []fssp.RequestItem
	for _, b := range batches {
		flat = append(flat, b...)
	}

	codes := region.Default().Codes()
	for i, item := range flat {
		wantPerson := persons[i/len(codes)]
		wantRegion := codes[i%len(codes)]
		if item.LastName != wantPerson.LastName || item.Region != wantRegion {
			t.Fatalf("item %d = (%s, %d), want (%s, %d)", i, item.LastName, item.Region, wantPerson.LastName, wantRegion)
		}
	}
}

func TestNewBatcher_CustomMaxItems(t *testing.T) {
	b := NewBatcher(region.New(1, 2, 3, 4, 5), 2, zerolog.Nop())
	batches := b.Build(makePersons(1))

	sizes := make([]int, len(batches))
	for i, batch := range batches {
		sizes[i] = len(batch)
	}
	want := []int{2, 2, 1}
	if fmt.Sprint(sizes) != fmt.Sprint(want) {
		t.Errorf("batch sizes = %v, want %v", sizes, want)
	}

	if got := NewBatcher(region.Default(), 100, zerolog.Nop()).maxItems; got != MaxItems {
		t.Errorf("maxItems = %d, want %d", got, MaxItems)
	}
}
