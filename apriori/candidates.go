package apriori

import (
	IS "recommendation/itemset"
)

// GenCandidates builds the next level's candidates from the frequent
// itemsets of the current level.
//
// Join: for every ordered pair (a, b) and every item of a missing from b,
// b plus that item is a candidate. Prune: a candidate survives only if
// every subset obtained by dropping one member is itself in large.
// Candidates are deduplicated by identity.
func GenCandidates(large *IS.Level) *IS.Level {
	candidates := IS.NewLevel()
	if large.IsEmpty() {
		return candidates
	}

	sets := large.ItemSets()
	rejected := make(map[string]bool)
	for _, a := range sets {
		for _, b := range sets {
			a.Items.Difference(b.Items).Each(func(item uint64) bool {
				candidate := b.With(item)
				key := candidate.Key()
				if rejected[key] || candidates.Contains(candidate.Items) {
					return false
				}
				if hasFrequentSubsets(candidate, large) {
					candidates.Add(candidate)
				} else {
					rejected[key] = true
				}
				return false
			})
		}
	}
	return candidates
}

// hasFrequentSubsets checks the Apriori property: all subsets one member
// smaller must be known frequent.
func hasFrequentSubsets(candidate *IS.ItemSet, large *IS.Level) bool {
	for _, item := range candidate.Sorted() {
		if !large.Contains(candidate.Without(item)) {
			return false
		}
	}
	return true
}
