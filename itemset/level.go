package itemset

import (
	"sort"

	U "recommendation/util"

	mapset "github.com/deckarep/golang-set/v2"
)

// Level is a collection of itemsets keyed by identity. It holds each
// distinct member set once.
type Level struct {
	sets map[string]*ItemSet
}

func NewLevel() *Level {
	return &Level{sets: make(map[string]*ItemSet)}
}

// NewLevelFrom collects the given itemsets, first one wins on duplicates.
func NewLevelFrom(sets ...*ItemSet) *Level {
	l := NewLevel()
	for _, s := range sets {
		l.Add(s)
	}
	return l
}

// Add inserts the itemset unless an equal one is present. Returns
// whether it was inserted.
func (l *Level) Add(s *ItemSet) bool {
	key := s.Key()
	if _, ok := l.sets[key]; ok {
		return false
	}
	l.sets[key] = s
	return true
}

// Put inserts or replaces by identity.
func (l *Level) Put(s *ItemSet) {
	l.sets[s.Key()] = s
}

// Contains is a membership query on the member set alone.
func (l *Level) Contains(items mapset.Set[uint64]) bool {
	_, ok := l.sets[KeyOf(items)]
	return ok
}

func (l *Level) ContainsItems(items ...uint64) bool {
	return l.Contains(mapset.NewThreadUnsafeSet(items...))
}

// Get returns the stored itemset with the given members.
func (l *Level) Get(items ...uint64) (*ItemSet, bool) {
	s, ok := l.sets[KeyOf(mapset.NewThreadUnsafeSet(items...))]
	return s, ok
}

func (l *Level) Len() int {
	return len(l.sets)
}

func (l *Level) IsEmpty() bool {
	return len(l.sets) == 0
}

// Each visits every itemset in no particular order.
func (l *Level) Each(fn func(s *ItemSet)) {
	for _, s := range l.sets {
		fn(s)
	}
}

// Merge adds every itemset of other that is not already present.
func (l *Level) Merge(other *Level) {
	for key, s := range other.sets {
		if _, ok := l.sets[key]; !ok {
			l.sets[key] = s
		}
	}
}

// Filter returns a new level with the itemsets accepted by keep.
func (l *Level) Filter(keep func(s *ItemSet) bool) *Level {
	filtered := NewLevel()
	for key, s := range l.sets {
		if keep(s) {
			filtered.sets[key] = s
		}
	}
	return filtered
}

// ItemSets lists the itemsets ordered by length and then by their
// sorted member ids.
func (l *Level) ItemSets() []*ItemSet {
	sets := make([]*ItemSet, 0, len(l.sets))
	sorted := make(map[*ItemSet][]uint64, len(l.sets))
	for _, s := range l.sets {
		sets = append(sets, s)
		sorted[s] = s.Sorted()
	}
	sort.Slice(sets, func(i, j int) bool {
		return U.CompareUint64Slices(sorted[sets[i]], sorted[sets[j]]) < 0
	})
	return sets
}

// OfLength returns the itemsets with exactly n members.
func (l *Level) OfLength(n int) *Level {
	return l.Filter(func(s *ItemSet) bool { return s.Len() == n })
}
