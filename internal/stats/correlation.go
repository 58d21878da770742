package stats

import "gonum.org/v1/gonum/stat"

// PearsonCorrelation computes the Pearson correlation coefficient between
// two equal-length vectors, paired elementwise by position. Callers must
// pass both vectors in the same row-id-sorted order — this function
// performs no reordering of its own.
func PearsonCorrelation(x, y []float64) float64 {
	return stat.Correlation(x, y, nil)
}

// StdDev returns the standard deviation of x. A zero value means x is
// constant, which both decision procedures treat as a special case.
func StdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.StdDev(x, nil)
}
