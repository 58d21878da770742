// Package roundfeatures implements the Round Feature Engine: per-round
// memoized K-Means cluster assignments over the tournament partitions, the
// input the concordance decision procedure needs.
package roundfeatures

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/numerai/scoring-engine/internal/blobcache"
	"github.com/numerai/scoring-engine/internal/cluster"
	"github.com/numerai/scoring-engine/internal/dataset"
)

// NumClusters is the fixed cluster count K.
const NumClusters = 5

// Features holds, for one round, the cluster-index assignment vectors for
// the validation / test / live tournament partitions (ascending row-id
// order) plus the row IDs themselves — the IDs are kept so a caller can
// detect a round restart by comparing partition sizes: an explicit
// row-count comparison instead of catching an index-out-of-range.
type Features struct {
	RoundID string

	ValIDs, TestIDs, LiveIDs []string
	CVal, CTest, CLive       []int
	K                        int
}

// SizesMatch reports whether the given partition row-counts match the
// vectors this Features was built from — the round-restart check.
func (f *Features) SizesMatch(numVal, numTest, numLive int) bool {
	return len(f.ValIDs) == numVal && len(f.TestIDs) == numTest && len(f.LiveIDs) == numLive
}

// Engine computes and memoizes Features per round. The memo keeps the two
// most recently used distinct rounds (LRU-2), guarded by a mutex since
// concordance workers share one Engine.
type Engine struct {
	cache *blobcache.Cache

	mu   sync.Mutex
	memo *lru.Cache[string, *Features]
}

// New builds an Engine backed by cache, with an LRU-2 memo.
func New(cache *blobcache.Cache) (*Engine, error) {
	memo, err := lru.New[string, *Features](2)
	if err != nil {
		return nil, fmt.Errorf("create round-features memo: %w", err)
	}
	return &Engine{cache: cache, memo: memo}, nil
}

// Get returns the memoized Features for roundID, computing and caching
// them on first use.
func (e *Engine) Get(ctx context.Context, roundID string) (*Features, error) {
	e.mu.Lock()
	if f, ok := e.memo.Get(roundID); ok {
		e.mu.Unlock()
		return f, nil
	}
	e.mu.Unlock()

	f, err := e.compute(ctx, roundID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.memo.Add(roundID, f)
	e.mu.Unlock()
	return f, nil
}

// Invalidate evicts roundID from the memo, forcing the next Get to
// recompute. Called when a concordance worker detects a round restart
// (partition sizes no longer match the cached vectors).
func (e *Engine) Invalidate(roundID string) {
	e.mu.Lock()
	e.memo.Remove(roundID)
	e.mu.Unlock()
}

func (e *Engine) compute(ctx context.Context, roundID string) (*Features, error) {
	dir, err := e.cache.FetchDataset(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset for round %s: %w", roundID, err)
	}

	training, err := dataset.LoadTraining(dir)
	if err != nil {
		return nil, fmt.Errorf("load training data for round %s: %w", roundID, err)
	}
	tournament, err := dataset.LoadTournament(dir)
	if err != nil {
		return nil, fmt.Errorf("load tournament data for round %s: %w", roundID, err)
	}
	if len(tournament) == 0 {
		return nil, fmt.Errorf("round %s has no tournament rows", roundID)
	}

	dataset.SortTournamentByID(tournament)
	val := dataset.FilterPartition(tournament, dataset.PartitionValidation)
	test := dataset.FilterPartition(tournament, dataset.PartitionTest)
	live := dataset.FilterPartition(tournament, dataset.PartitionLive)

	numFeatures := len(tournament[0].Features)
	X := buildMatrix(training, tournament, numFeatures)

	model := cluster.Fit(X, cluster.Config{K: NumClusters, BatchSize: 1000, MaxIters: 100, Seed: 1})

	f := &Features{
		RoundID: roundID,
		ValIDs:  idsOf(val),
		TestIDs: idsOf(test),
		LiveIDs: idsOf(live),
		CVal:    model.Predict(matrixOf(val, numFeatures)),
		CTest:   model.Predict(matrixOf(test, numFeatures)),
		CLive:   model.Predict(matrixOf(live, numFeatures)),
		K:       model.K(),
	}
	return f, nil
}

func buildMatrix(training []dataset.TrainingRow, tournament []dataset.TournamentRow, numFeatures int) *mat.Dense {
	rows := len(training) + len(tournament)
	data := make([]float64, 0, rows*numFeatures)
	for _, r := range training {
		data = append(data, r.Features...)
	}
	for _, r := range tournament {
		data = append(data, r.Features...)
	}
	return mat.NewDense(rows, numFeatures, data)
}

// matrixOf returns nil for an empty partition — gonum's mat.NewDense
// panics on a zero row count, and Model.Predict treats a nil X as "predict
// nothing" rather than constructing a degenerate matrix.
func matrixOf(rows []dataset.TournamentRow, numFeatures int) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	data := make([]float64, 0, len(rows)*numFeatures)
	for _, r := range rows {
		data = append(data, r.Features...)
	}
	return mat.NewDense(len(rows), numFeatures, data)
}

func idsOf(rows []dataset.TournamentRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
