package util

import (
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// SupportPrecision is the number of decimals used when a support
// threshold is rendered into keys and file names.
const SupportPrecision = 4

// SortUint64s sorts in place and returns the slice for chaining.
func SortUint64s(s []uint64) []uint64 {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s
}

// MakeUniqueUint64s drops repeated ids keeping the first occurrence order.
func MakeUniqueUint64s(s []uint64) []uint64 {
	return lo.Uniq(s)
}

// CompareUint64Slices orders sorted id slices by length first and then
// lexicographically. Returns -1, 0 or 1.
func CompareUint64Slices(a, b []uint64) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// JoinUint64s renders ids with the given separator.
func JoinUint64s(s []uint64, sep string) string {
	tokens := make([]string, len(s))
	for i, v := range s {
		tokens[i] = strconv.FormatUint(v, 10)
	}
	return strings.Join(tokens, sep)
}
