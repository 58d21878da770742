// Package stats implements the statistical primitives the scoring pipeline
// decision procedures need: the two-sample Kolmogorov-Smirnov D-statistic
// (canonical and sorted-sample-optimized forms), Pearson correlation, and
// binary cross-entropy loss.
package stats

import "sort"

// KS2Samp computes the canonical two-sample Kolmogorov-Smirnov D-statistic:
// D = max_x |F_a(x) - F_b(x)| over the empirical CDFs of a and b. Neither
// input needs to be pre-sorted; both are sorted internally. Returns 0 for
// any empty input (an empty partition contributes nothing to a max).
func KS2Samp(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	sa := append([]float64(nil), a...)
	sb := append([]float64(nil), b...)
	sort.Float64s(sa)
	sort.Float64s(sb)
	return ks2SampSorted(sa, sb)
}

// KS2SampPreSorted computes the same D-statistic as KS2Samp but assumes a
// is already sorted ascending. b is sorted internally. This avoids
// re-sorting a on every cohort comparison, and is numerically equivalent
// to the canonical statistic.
func KS2SampPreSorted(sortedA, b []float64) float64 {
	if len(sortedA) == 0 || len(b) == 0 {
		return 0
	}
	sb := append([]float64(nil), b...)
	sort.Float64s(sb)
	return ks2SampSorted(sortedA, sb)
}

// ks2SampSorted implements D = max |r_a(x)/n1 - r_b(x)/n2| over the union of
// a and b, where r_a(x) = searchsorted(a, x, side='right'). Both a and b
// must already be sorted ascending.
func ks2SampSorted(a, b []float64) float64 {
	n1 := float64(len(a))
	n2 := float64(len(b))

	all := make([]float64, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)

	var maxDiff float64
	for _, x := range all {
		cdfA := float64(searchSortedRight(a, x)) / n1
		cdfB := float64(searchSortedRight(b, x)) / n2
		if d := abs(cdfA - cdfB); d > maxDiff {
			maxDiff = d
		}
	}
	return maxDiff
}

// searchSortedRight returns the insertion index to keep data sorted,
// inserting x after any equal elements (numpy's side='right').
func searchSortedRight(data []float64, x float64) int {
	return sort.Search(len(data), func(i int) bool { return data[i] > x })
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
