package apriori

import (
	IS "recommendation/itemset"

	mapset "github.com/deckarep/golang-set/v2"
	log "github.com/sirupsen/logrus"
)

// LevelStats describes one iteration of the level-wise search.
type LevelStats struct {
	Length     int `json:"length"`
	Candidates int `json:"candidates"`
	Frequent   int `json:"frequent"`
}

// Result holds every frequent itemset of a run with its statistics.
type Result struct {
	Frequent        *IS.Level    `json:"-"`
	NumTransactions uint64       `json:"num_transactions"`
	MinSupport      float64      `json:"min_support"`
	Levels          []LevelStats `json:"levels"`
}

// ItemSets lists the frequent itemsets by length and then by ids.
func (r *Result) ItemSets() []*IS.ItemSet {
	return r.Frequent.ItemSets()
}

// MaxLength is the size of the longest frequent itemset, 0 when none.
func (r *Result) MaxLength() int {
	max := 0
	r.Frequent.Each(func(s *IS.ItemSet) {
		if s.Len() > max {
			max = s.Len()
		}
	})
	return max
}

// Apriori returns every itemset whose support over transactions is
// strictly greater than minSupport, each with its count and support.
func Apriori(transactions [][]uint64, minSupport float64) *IS.Level {
	return Mine(transactions, minSupport).Frequent
}

// Mine runs the level-wise search and keeps per-level statistics.
func Mine(transactions [][]uint64, minSupport float64) *Result {
	sets := ToSets(transactions)

	large, numTransactions := FirstPass(sets, minSupport)
	result := &Result{
		Frequent:        IS.NewLevel(),
		NumTransactions: numTransactions,
		MinSupport:      minSupport,
		Levels:          make([]LevelStats, 0),
	}
	if numTransactions == 0 {
		log.Debug("no transactions to mine")
		return result
	}
	result.Levels = append(result.Levels, LevelStats{
		Length:     1,
		Candidates: countDistinctItems(sets),
		Frequent:   large.Len(),
	})

	length := 1
	for !large.IsEmpty() {
		result.Frequent.Merge(large)

		candidates := GenCandidates(large)
		length++
		if candidates.IsEmpty() {
			log.Debugf("level %d: no candidates, stopping", length)
			break
		}

		Recount(candidates, sets, numTransactions)
		large = FilterFrequent(candidates, minSupport)
		log.WithFields(log.Fields{
			"length":     length,
			"candidates": candidates.Len(),
			"frequent":   large.Len(),
		}).Debug("Mined level")
		result.Levels = append(result.Levels, LevelStats{
			Length:     length,
			Candidates: candidates.Len(),
			Frequent:   large.Len(),
		})
	}
	return result
}

func countDistinctItems(transactions []mapset.Set[uint64]) int {
	distinct := mapset.NewThreadUnsafeSet[uint64]()
	for _, trn := range transactions {
		trn.Each(func(item uint64) bool {
			distinct.Add(item)
			return false
		})
	}
	return distinct.Cardinality()
}
