package tagging

import "fmt"

// Tags is the full tag array: numSets sets addressed directly by set index.
type Tags struct {
	numSets int
	numWays int
	sets    []*Set
}

// NewTags creates a tag array with all lines Invalid and all PLRU bits zero.
func NewTags(numSets, numWays int) *Tags {
	if numSets < 1 {
		panic(fmt.Sprintf("tagging: invalid number of sets %d", numSets))
	}

	t := &Tags{
		numSets: numSets,
		numWays: numWays,
	}
	t.Reset()

	return t
}

// NumSets returns the number of sets in the array.
func (t *Tags) NumSets() int {
	return t.numSets
}

// NumWays returns the associativity of every set.
func (t *Tags) NumWays() int {
	return t.numWays
}

// Set returns the set at the given index.
func (t *Tags) Set(index int) *Set {
	if index < 0 || index >= t.numSets {
		panic(fmt.Sprintf("tagging: set index %d out of range", index))
	}

	return t.sets[index]
}

// Reset reinitializes every set: all lines Invalid, all PLRU bits zero.
func (t *Tags) Reset() {
	t.sets = make([]*Set, t.numSets)
	for i := range t.sets {
		t.sets[i] = NewSet(t.numWays)
	}
}

// VisitValid calls fn for every non-Invalid line, iterating sets in index
// order and ways in way order.
func (t *Tags) VisitValid(fn func(setIndex, way int, line Line, plruBits uint32)) {
	for i, set := range t.sets {
		set.VisitValid(func(way int, line Line) {
			fn(i, way, line, set.PLRUBits())
		})
	}
}
