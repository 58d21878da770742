package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/numerai/scoring-engine/internal/dataset"
	"github.com/numerai/scoring-engine/internal/logging"
	"github.com/numerai/scoring-engine/internal/metadata"
	"github.com/numerai/scoring-engine/internal/queue"
	"github.com/numerai/scoring-engine/internal/stats"
)

// concordanceThreshold is the mean-KS cutoff below which a submission is
// concordant.
const concordanceThreshold = 0.12

// RunConcordance drains the concordance queue on the calling goroutine
// until ctx is cancelled. Single-threaded by design: cluster fitting is
// CPU-heavy and benefits from the Round Feature Engine's memo locality.
func (p *Pipeline) RunConcordance(ctx context.Context) error {
	log := logging.Stage(p.log, "concordance")
	for {
		entry, err := p.Queues.Concordance.Get(ctx)
		if err != nil {
			return err
		}
		p.processConcordance(ctx, log, entry)
	}
}

func (p *Pipeline) processConcordance(ctx context.Context, log *logrus.Entry, entry queue.Entry) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 16384)
			n := runtime.Stack(stack, false)
			log.Errorf("concordance: recovered panic: %v\n%s", r, stack[:n])
			p.ackConcordance(log, entry)
		}
	}()

	var task queue.SubmissionTask
	if err := json.Unmarshal(entry.Payload, &task); err != nil {
		log.WithError(err).Error("malformed queue entry")
		p.ackConcordance(log, entry)
		return
	}
	slog := logging.Submission(log, task.SubmissionID)

	verdict, err := p.scoreConcordance(ctx, task.SubmissionID, true)
	if err != nil {
		// A second round-restart failure, or any other error, writes no
		// verdict and logs fatal for this submission — the entry is still
		// acknowledged so it never blocks the queue.
		slog.WithError(err).Error("concordance: failed, no verdict written")
		p.ackConcordance(log, entry)
		return
	}
	if err := p.Gateway.WriteVerdict(ctx, task.SubmissionID, metadata.MetricConcordance, verdict); err != nil {
		slog.WithError(err).Error("concordance: failed to write verdict")
	}
	p.ackConcordance(log, entry)
}

func (p *Pipeline) ackConcordance(log *logrus.Entry, entry queue.Entry) {
	if err := p.Queues.Concordance.TaskDone(entry.Offset); err != nil {
		log.WithError(err).Error("concordance: failed to acknowledge entry")
	}
}

// scoreConcordance computes a submission's concordance verdict. allowRetry
// gates whether a partition row-count mismatch against the memoized
// RoundFeatures — the round-restart signal — triggers one memo
// invalidation, recompute, and retry.
func (p *Pipeline) scoreConcordance(ctx context.Context, submissionID string, allowRetry bool) (bool, error) {
	sub, err := p.Gateway.GetSubmission(ctx, submissionID)
	if err != nil {
		return false, fmt.Errorf("resolve submission: %w", err)
	}

	features, err := p.Engine.Get(ctx, sub.RoundID)
	if err != nil {
		return false, fmt.Errorf("compute round features: %w", err)
	}

	dir, err := p.Blobs.FetchDataset(ctx, sub.RoundID)
	if err != nil {
		return false, fmt.Errorf("fetch round dataset: %w", err)
	}
	tournament, err := dataset.LoadTournament(dir)
	if err != nil {
		return false, fmt.Errorf("load tournament data: %w", err)
	}
	dataset.SortTournamentByID(tournament)
	val := dataset.FilterPartition(tournament, dataset.PartitionValidation)
	test := dataset.FilterPartition(tournament, dataset.PartitionTest)
	live := dataset.FilterPartition(tournament, dataset.PartitionLive)

	if !features.SizesMatch(len(val), len(test), len(live)) {
		if !allowRetry {
			return false, fmt.Errorf("round restart: partition sizes still mismatch round features after recompute")
		}
		p.Engine.Invalidate(sub.RoundID)
		return p.scoreConcordance(ctx, submissionID, false)
	}

	submissionPath, err := p.Blobs.FetchSubmission(ctx, sub.BlobKey)
	if err != nil {
		return false, fmt.Errorf("fetch submission blob: %w", err)
	}
	submission, err := dataset.LoadSubmission(submissionPath)
	if err != nil {
		return false, fmt.Errorf("parse submission: %w", err)
	}

	pVal, cVal := dataset.JoinClusterProbabilities(val, features.CVal, submission)
	pTest, cTest := dataset.JoinClusterProbabilities(test, features.CTest, submission)
	pLive, cLive := dataset.JoinClusterProbabilities(live, features.CLive, submission)

	present := make(map[int]bool, features.K)
	for _, c := range features.CVal {
		present[c] = true
	}

	var clusterScores []float64
	for i := 0; i < features.K; i++ {
		if !present[i] {
			continue
		}
		valI := valuesForCluster(pVal, cVal, i)
		testI := valuesForCluster(pTest, cTest, i)
		liveI := valuesForCluster(pLive, cLive, i)

		// An empty partition membership for this cluster makes that pair's
		// KS statistic 0 — stats.KS2Samp already returns 0 on an empty
		// input, so no special-casing is needed here.
		s := maxOf(
			stats.KS2Samp(valI, testI),
			stats.KS2Samp(valI, liveI),
			stats.KS2Samp(liveI, testI),
		)
		clusterScores = append(clusterScores, s)
	}

	return mean(clusterScores) < concordanceThreshold, nil
}

func valuesForCluster(values []float64, clusters []int, cluster int) []float64 {
	var out []float64
	for i, c := range clusters {
		if c == cluster {
			out = append(out, values[i])
		}
	}
	return out
}

func maxOf(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
