// Package region holds the jurisdiction codes every lookup is replicated
// across. The search service partitions records by region, so a person has
// to be queried once per code.
package region

// Catalog is an immutable, ordered set of region codes.
type Catalog struct {
	codes []int
}

// defaultCodes are regions 1..78 plus 86, 89, 91 and 92.
var defaultCodes = func() []int {
	codes := make([]int, 0, 82)
	for code := 1; code <= 78; code++ {
		codes = append(codes, code)
	}
	return append(codes, 86, 89, 91, 92)
}()

// Default returns the catalog of all 82 regions served by the search service.
func Default() Catalog {
	return Catalog{codes: defaultCodes}
}

// New returns a catalog over the given codes, in order. Duplicates are dropped.
func New(codes ...int) Catalog {
	seen := make(map[int]struct{}, len(codes))
	out := make([]int, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return Catalog{codes: out}
}

// Codes returns a copy of the region codes in catalog order.
func (c Catalog) Codes() []int {
	out := make([]int, len(c.codes))
	copy(out, c.codes)
	return out
}

// Len returns the number of regions.
func (c Catalog) Len() int {
	return len(c.codes)
}

// Last returns the final region code and false if the catalog is empty.
func (c Catalog) Last() (int, bool) {
	if len(c.codes) == 0 {
		return 0, false
	}
	return c.codes[len(c.codes)-1], true
}

// Contains reports whether code is part of the catalog.
func (c Catalog) Contains(code int) bool {
	for _, v := range c.codes {
		if v == code {
			return true
		}
	}
	return false
}
