package itemset

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	U "recommendation/util"

	"github.com/cespare/xxhash/v2"
	mapset "github.com/deckarep/golang-set/v2"
)

// ItemSet is a group of item ids observed together along with its
// support statistics. Identity is the member set only; Support and
// Count never take part in equality or hashing.
type ItemSet struct {
	Items   mapset.Set[uint64]
	Support float64
	Count   uint64
}

// New builds an itemset with zeroed statistics. Repeated ids collapse.
func New(items ...uint64) *ItemSet {
	return &ItemSet{Items: mapset.NewThreadUnsafeSet(items...)}
}

// FromSet wraps a copy of the given member set.
func FromSet(items mapset.Set[uint64]) *ItemSet {
	s := mapset.NewThreadUnsafeSet[uint64]()
	items.Each(func(item uint64) bool {
		s.Add(item)
		return false
	})
	return &ItemSet{Items: s}
}

func (s *ItemSet) Len() int {
	return s.Items.Cardinality()
}

// Sorted returns the member ids in ascending order.
func (s *ItemSet) Sorted() []uint64 {
	return U.SortUint64s(s.Items.ToSlice())
}

// Key is the canonical identity of the itemset.
func (s *ItemSet) Key() string {
	return KeyOf(s.Items)
}

// KeyOf renders the canonical identity of a member set: its ids
// sorted ascending and comma separated.
func KeyOf(items mapset.Set[uint64]) string {
	return U.JoinUint64s(U.SortUint64s(items.ToSlice()), ",")
}

// Hash folds the sorted members into a 64 bit digest, so that sets
// built in any insertion order hash identically.
func (s *ItemSet) Hash() uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, item := range s.Sorted() {
		binary.LittleEndian.PutUint64(buf[:], item)
		d.Write(buf[:])
	}
	return d.Sum64()
}

func (s *ItemSet) Equal(other *ItemSet) bool {
	if other == nil {
		return false
	}
	return s.Items.Equal(other.Items)
}

// IsSubsetOf reports whether every member occurs in the transaction.
func (s *ItemSet) IsSubsetOf(transaction mapset.Set[uint64]) bool {
	if s.Len() > transaction.Cardinality() {
		return false
	}
	return s.Items.IsSubset(transaction)
}

// SetCount records an absolute count and derives support from the
// number of transactions in the run.
func (s *ItemSet) SetCount(count, numTransactions uint64) {
	s.Count = count
	if numTransactions == 0 {
		s.Support = 0
		return
	}
	s.Support = float64(count) / float64(numTransactions)
}

// Increment counts one more containing transaction.
func (s *ItemSet) Increment(numTransactions uint64) {
	s.SetCount(s.Count+1, numTransactions)
}

// With returns a new itemset with the extra member added.
func (s *ItemSet) With(item uint64) *ItemSet {
	c := FromSet(s.Items)
	c.Items.Add(item)
	return c
}

// Without returns the member set minus one id.
func (s *ItemSet) Without(item uint64) mapset.Set[uint64] {
	c := s.Items.Clone()
	c.Remove(item)
	return c
}

func (s *ItemSet) String() string {
	return fmt.Sprintf("{%s} count:%d support:%.4f", s.Key(), s.Count, s.Support)
}

type itemSetJSON struct {
	Items   []uint64 `json:"items"`
	Support float64  `json:"support"`
	Count   uint64   `json:"count"`
}

func (s *ItemSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemSetJSON{
		Items:   s.Sorted(),
		Support: s.Support,
		Count:   s.Count,
	})
}

func (s *ItemSet) UnmarshalJSON(data []byte) error {
	var raw itemSetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Items = mapset.NewThreadUnsafeSet(raw.Items...)
	s.Support = raw.Support
	s.Count = raw.Count
	return nil
}
