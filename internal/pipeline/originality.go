package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/numerai/scoring-engine/internal/blobcache"
	"github.com/numerai/scoring-engine/internal/logging"
	"github.com/numerai/scoring-engine/internal/metadata"
	"github.com/numerai/scoring-engine/internal/queue"
	"github.com/numerai/scoring-engine/internal/stats"
)

// Originality decision thresholds.
const (
	isExactDupeThresh = 0.005
	isSimilarThresh   = 0.03
	maxSimilarModels  = 1
	correlationThresh = 0.95
)

// RunOriginalityWorker drains the originality queue on the calling
// goroutine until ctx is cancelled. Callers start a worker pool by calling
// this once per worker goroutine — every worker shares the same Pipeline,
// so the submission LRU cache and its single-flight group are shared too.
func (p *Pipeline) RunOriginalityWorker(ctx context.Context) error {
	log := logging.Stage(p.log, "originality")
	for {
		entry, err := p.Queues.Originality.Get(ctx)
		if err != nil {
			return err
		}
		p.processOriginality(ctx, log, entry)
	}
}

func (p *Pipeline) processOriginality(ctx context.Context, log *logrus.Entry, entry queue.Entry) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 16384)
			n := runtime.Stack(stack, false)
			log.Errorf("originality: recovered panic: %v\n%s", r, stack[:n])
			p.ackOriginality(log, entry)
		}
	}()

	var task queue.SubmissionTask
	if err := json.Unmarshal(entry.Payload, &task); err != nil {
		log.WithError(err).Error("malformed queue entry")
		p.ackOriginality(log, entry)
		return
	}
	slog := logging.Submission(log, task.SubmissionID)

	verdict, err := p.scoreOriginality(ctx, task.SubmissionID)
	if err != nil {
		slog.WithError(err).Error("originality: failed, no verdict written")
		p.ackOriginality(log, entry)
		return
	}
	if err := p.Gateway.WriteVerdict(ctx, task.SubmissionID, metadata.MetricOriginality, verdict); err != nil {
		slog.WithError(err).Error("originality: failed to write verdict")
	}
	p.ackOriginality(log, entry)
}

func (p *Pipeline) ackOriginality(log *logrus.Entry, entry queue.Entry) {
	if err := p.Queues.Originality.TaskDone(entry.Offset); err != nil {
		log.WithError(err).Error("originality: failed to acknowledge entry")
	}
}

// scoreOriginality computes a submission's originality verdict.
func (p *Pipeline) scoreOriginality(ctx context.Context, submissionID string) (bool, error) {
	sub, err := p.Gateway.GetSubmission(ctx, submissionID)
	if err != nil {
		return false, fmt.Errorf("resolve submission: %w", err)
	}

	subject, err := p.Subs.Get(ctx, sub.BlobKey)
	if err != nil {
		return false, fmt.Errorf("fetch subject submission: %w", err)
	}

	// A constant subject vector is non-original without consulting the
	// cohort at all.
	if stats.StdDev(subject) == 0 {
		return false, nil
	}

	sortedSubject := append([]float64(nil), subject...)
	sort.Float64s(sortedSubject)

	cohort, err := p.Gateway.ListCohort(ctx, sub.RoundID, sub.User, sub.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("list cohort: %w", err)
	}

	var similarCount int
	for _, other := range cohort {
		otherVec, err := p.Subs.Get(ctx, other.BlobKey)
		if err != nil {
			if errors.Is(err, blobcache.ErrMissing) {
				continue
			}
			return false, fmt.Errorf("fetch cohort submission %s: %w", other.ID, err)
		}

		ks := stats.KS2SampPreSorted(sortedSubject, otherVec)

		if stats.StdDev(otherVec) > 0 {
			rho := stats.PearsonCorrelation(subject, otherVec)
			if abs(rho) > correlationThresh {
				return false, nil
			}
		}

		if ks < isExactDupeThresh {
			return false, nil
		}
		if ks <= isSimilarThresh {
			similarCount++
			if similarCount >= maxSimilarModels {
				return false, nil
			}
		}
	}

	return true, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
