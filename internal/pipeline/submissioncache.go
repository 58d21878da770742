package pipeline

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/numerai/scoring-engine/internal/blobcache"
	"github.com/numerai/scoring-engine/internal/dataset"
)

// submissionCacheSize is the LRU capacity: roughly 512 entries.
const submissionCacheSize = 512

// SubmissionCache is a capacity-bounded, LRU-evicted map from submission
// blob key to that submission's probability vector, row-id-sorted
// ascending (the same order dataset.SortSubmissionByID produces).
// Concurrent misses on the same key are collapsed by a per-key
// single-flight group so the originality worker pool can fetch distinct
// submissions in parallel while never downloading the same blob twice
// concurrently.
type SubmissionCache struct {
	blobs *blobcache.Cache
	lru   *lru.Cache[string, []float64]
	group singleflight.Group
}

// NewSubmissionCache builds a SubmissionCache backed by blobs.
func NewSubmissionCache(blobs *blobcache.Cache) (*SubmissionCache, error) {
	l, err := lru.New[string, []float64](submissionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create submission LRU cache: %w", err)
	}
	return &SubmissionCache{blobs: blobs, lru: l}, nil
}

// Get returns blobKey's probability vector in row-id-sorted order. A
// transient failure to reach the object store surfaces blobcache.ErrMissing,
// which callers treat as non-fatal — skip this cohort entry.
func (c *SubmissionCache) Get(ctx context.Context, blobKey string) ([]float64, error) {
	if v, ok := c.lru.Get(blobKey); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(blobKey, func() (any, error) {
		if v, ok := c.lru.Get(blobKey); ok {
			return v, nil
		}
		path, err := c.blobs.FetchSubmission(ctx, blobKey)
		if err != nil {
			return nil, err
		}
		rows, err := dataset.LoadSubmission(path)
		if err != nil {
			return nil, fmt.Errorf("parse submission %s: %w", blobKey, err)
		}
		dataset.SortSubmissionByID(rows)
		vec := make([]float64, len(rows))
		for i, r := range rows {
			vec[i] = r.Probability
		}
		c.lru.Add(blobKey, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}
