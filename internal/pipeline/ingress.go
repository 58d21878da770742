package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/numerai/scoring-engine/internal/dataset"
	"github.com/numerai/scoring-engine/internal/logging"
	"github.com/numerai/scoring-engine/internal/queue"
	"github.com/numerai/scoring-engine/internal/stats"
)

// RunIngress drains the ingress queue on the calling goroutine until ctx is
// cancelled. Single-threaded by design: the leaderboard write must precede
// fan-out for a given submission.
func (p *Pipeline) RunIngress(ctx context.Context) error {
	log := logging.Stage(p.log, "ingress")
	for {
		entry, err := p.Queues.Ingress.Get(ctx)
		if err != nil {
			return err
		}
		p.processIngress(ctx, log, entry)
	}
}

func (p *Pipeline) processIngress(ctx context.Context, log *logrus.Entry, entry queue.Entry) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 16384)
			n := runtime.Stack(stack, false)
			log.Errorf("ingress: recovered panic: %v\n%s", r, stack[:n])
			p.ackIngress(log, entry)
		}
	}()

	var task queue.SubmissionTask
	if err := json.Unmarshal(entry.Payload, &task); err != nil {
		log.WithError(err).Error("ingress: malformed queue entry")
		p.ackIngress(log, entry)
		return
	}
	slog := logging.Submission(log, task.SubmissionID)

	if err := p.scoreConsistency(ctx, task.SubmissionID); err != nil {
		// Any failure in the consistency computation is logged and the
		// entry is still acknowledged: the next submission must not block
		// behind a permanently broken one.
		slog.WithError(err).Warn("ingress: failed to score consistency, skipping")
		p.ackIngress(log, entry)
		return
	}

	if err := p.Queues.Originality.Put(task); err != nil {
		slog.WithError(err).Error("ingress: failed to enqueue on originality queue")
	}
	if err := p.Queues.Concordance.Put(task); err != nil {
		slog.WithError(err).Error("ingress: failed to enqueue on concordance queue")
	}
	p.ackIngress(log, entry)
}

func (p *Pipeline) ackIngress(log *logrus.Entry, entry queue.Entry) {
	if err := p.Queues.Ingress.TaskDone(entry.Offset); err != nil {
		log.WithError(err).Error("ingress: failed to acknowledge entry")
	}
}

// scoreConsistency fetches round data and the submission blob, computes the
// validation-era consistency percentage, and marks the leaderboard row
// pending.
func (p *Pipeline) scoreConsistency(ctx context.Context, submissionID string) error {
	sub, err := p.Gateway.GetSubmission(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("resolve submission: %w", err)
	}

	dir, err := p.Blobs.FetchDataset(ctx, sub.RoundID)
	if err != nil {
		return fmt.Errorf("fetch round dataset: %w", err)
	}
	tournament, err := dataset.LoadTournament(dir)
	if err != nil {
		return fmt.Errorf("load tournament data: %w", err)
	}
	validation := dataset.FilterPartition(tournament, dataset.PartitionValidation)

	submissionPath, err := p.Blobs.FetchSubmission(ctx, sub.BlobKey)
	if err != nil {
		return fmt.Errorf("fetch submission blob: %w", err)
	}
	submission, err := dataset.LoadSubmission(submissionPath)
	if err != nil {
		return fmt.Errorf("parse submission: %w", err)
	}

	eras := dataset.DistinctEras(validation)
	if len(eras) == 0 {
		return p.Gateway.MarkLeaderboardPending(ctx, submissionID, 0)
	}

	var consistentEras int
	for _, era := range eras {
		labels, probs := dataset.JoinValidationByEraAndID(validation, era, submission)
		if len(labels) == 0 {
			continue
		}
		if stats.BinaryCrossEntropy(labels, probs) < stats.Ln2 {
			consistentEras++
		}
	}
	consistency := 100 * float64(consistentEras) / float64(len(eras))

	return p.Gateway.MarkLeaderboardPending(ctx, submissionID, consistency)
}
