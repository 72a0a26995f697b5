package apriori

import (
	IS "recommendation/itemset"

	mapset "github.com/deckarep/golang-set/v2"
	log "github.com/sirupsen/logrus"
)

// ToSets converts raw transactions into member sets. Repeated ids
// inside a transaction collapse.
func ToSets(transactions [][]uint64) []mapset.Set[uint64] {
	sets := make([]mapset.Set[uint64], len(transactions))
	for i, trn := range transactions {
		sets[i] = mapset.NewThreadUnsafeSet(trn...)
	}
	return sets
}

// FirstPass counts every distinct item over all transactions and
// returns the singletons whose support is strictly above minSupport,
// together with the number of transactions.
func FirstPass(transactions []mapset.Set[uint64], minSupport float64) (*IS.Level, uint64) {
	numTransactions := uint64(len(transactions))
	counts := make(map[uint64]uint64)
	for _, trn := range transactions {
		trn.Each(func(item uint64) bool {
			counts[item]++
			return false
		})
	}
	log.Debugf("first pass: %d transactions, %d distinct items", numTransactions, len(counts))

	large := IS.NewLevel()
	for item, count := range counts {
		s := IS.New(item)
		s.SetCount(count, numTransactions)
		if isFrequent(s, minSupport) {
			large.Add(s)
		}
	}
	return large, numTransactions
}

// Recount rescans all transactions and sets count and support of every
// candidate. Candidates contained in no transaction end at zero.
func Recount(candidates *IS.Level, transactions []mapset.Set[uint64], numTransactions uint64) {
	all := candidates.ItemSets()
	for _, c := range all {
		c.SetCount(0, numTransactions)
	}
	for _, trn := range transactions {
		for _, c := range all {
			if c.IsSubsetOf(trn) {
				c.Increment(numTransactions)
			}
		}
	}
}

// FilterFrequent keeps candidates with support strictly above minSupport.
func FilterFrequent(candidates *IS.Level, minSupport float64) *IS.Level {
	return candidates.Filter(func(s *IS.ItemSet) bool {
		return isFrequent(s, minSupport)
	})
}

func isFrequent(s *IS.ItemSet, minSupport float64) bool {
	return s.Support > minSupport
}
