package quality

import (
	"cmp"
	"slices"
	"strconv"
)

// compareKeys orders normalized keys numerically when both are integers, textually otherwise.
// Integers sort before text.
func compareKeys(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		return cmp.Compare(ai, bi)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}

// sortKeys sorts keys in place with compareKeys
func sortKeys(keys []string) {
	slices.SortFunc(keys, compareKeys)
}

// pct returns part/total*100, or 0 for an empty total
func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
