// Package cluster implements the mini-batch K-Means clustering the Round
// Feature Engine uses to assign tournament rows to clusters. It is a
// from-scratch Lloyd's-algorithm implementation over a gonum/mat matrix
// (Euclidean distance, fixed cluster count) without requiring determinism
// across implementations.
package cluster

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Model is a fitted K-Means model: K centroids over the feature space.
type Model struct {
	centroids *mat.Dense // K x D
	k, d      int
}

// Config controls the mini-batch fitting procedure.
type Config struct {
	K         int // number of clusters
	BatchSize int // rows sampled per iteration (0 = use all rows, classic Lloyd's)
	MaxIters  int
	Seed      int64
}

// DefaultConfig uses K=5, 1000 rows per mini-batch, and 100 iterations.
func DefaultConfig() Config {
	return Config{K: 5, BatchSize: 1000, MaxIters: 100, Seed: 1}
}

// Fit fits a K-Means model on X (n rows, d features) using mini-batch
// Lloyd's algorithm: each iteration samples a batch of rows, assigns each
// to its nearest centroid, and moves that centroid toward the batch mean.
// Determinism is not required across implementations but is stable within
// one process lifetime given a fixed seed, which this function is: the
// same *rand.Rand sequence from Config.Seed always produces the same
// centroids for the same X.
func Fit(X *mat.Dense, cfg Config) *Model {
	n, d := X.Dims()
	k := cfg.K
	if k > n {
		k = n
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	centroids := mat.NewDense(k, d, nil)
	initIdx := rng.Perm(n)[:k]
	for i, row := range initIdx {
		centroids.SetRow(i, rowOf(X, row))
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > n {
		batchSize = n
	}

	counts := make([]int, k) // per-centroid running sample count, for the streaming mean update

	for iter := 0; iter < cfg.MaxIters; iter++ {
		batch := sampleRows(rng, n, batchSize)
		assignments := make([]int, len(batch))
		for i, rowIdx := range batch {
			x := rowOf(X, rowIdx)
			assignments[i] = nearestCentroid(centroids, x)
		}
		for i, rowIdx := range batch {
			c := assignments[i]
			counts[c]++
			x := rowOf(X, rowIdx)
			// Streaming centroid update: move centroid 1/count of the way
			// toward x, the standard mini-batch K-Means update rule.
			lr := 1.0 / float64(counts[c])
			cur := rowOf(centroids, c)
			for j := range cur {
				cur[j] += lr * (x[j] - cur[j])
			}
			centroids.SetRow(c, cur)
		}
	}

	return &Model{centroids: centroids, k: k, d: d}
}

// Predict returns, for each row of X, the index of its nearest centroid.
// A nil X (an empty partition) predicts to an empty slice.
func (m *Model) Predict(X *mat.Dense) []int {
	if X == nil {
		return []int{}
	}
	n, _ := X.Dims()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = nearestCentroid(m.centroids, rowOf(X, i))
	}
	return out
}

// K returns the number of clusters the model was fit with.
func (m *Model) K() int { return m.k }

func nearestCentroid(centroids *mat.Dense, x []float64) int {
	k, _ := centroids.Dims()
	best, bestDist := 0, math.Inf(1)
	for c := 0; c < k; c++ {
		d := sqEuclidean(rowOf(centroids, c), x)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func rowOf(m *mat.Dense, i int) []float64 {
	_, cols := m.Dims()
	out := make([]float64, cols)
	mat.Row(out, i, m)
	return out
}

func sampleRows(rng *rand.Rand, n, batchSize int) []int {
	if batchSize >= n {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	return rng.Perm(n)[:batchSize]
}
