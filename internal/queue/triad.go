package queue

import "fmt"

// SubmissionTask is the entry put on all three queues: enough to resolve
// the submission via the Metadata Gateway and to log turnaround time.
type SubmissionTask struct {
	SubmissionID string    `json:"submission_id"`
	EnqueuedAt   Timestamp `json:"enqueued_at"`
}

// Timestamp is a wire-safe RFC3339 timestamp, avoiding ambiguity across the
// JSON boundary the durable queue persists entries through.
type Timestamp string

// Triad owns the three durable queues the scoring pipeline fans out across:
// ingress (single consumer), originality (worker pool), and concordance
// (single worker). It is an application-scoped handle rather than
// module-scope globals.
type Triad struct {
	Ingress     *Queue
	Originality *Queue
	Concordance *Queue
}

// OpenTriad opens (or creates) all three queue databases under dir.
func OpenTriad(dir string) (*Triad, error) {
	ingress, err := Open(dir, "ingress")
	if err != nil {
		return nil, fmt.Errorf("open ingress queue: %w", err)
	}
	originality, err := Open(dir, "originality")
	if err != nil {
		ingress.Close()
		return nil, fmt.Errorf("open originality queue: %w", err)
	}
	concordance, err := Open(dir, "concordance")
	if err != nil {
		ingress.Close()
		originality.Close()
		return nil, fmt.Errorf("open concordance queue: %w", err)
	}
	return &Triad{Ingress: ingress, Originality: originality, Concordance: concordance}, nil
}

// Recover redelivers any entry left dequeued-but-not-done across all three
// queues. Call once at startup before workers begin draining.
func (t *Triad) Recover() error {
	for _, q := range []*Queue{t.Ingress, t.Originality, t.Concordance} {
		if err := q.Recover(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all three queue databases.
func (t *Triad) Close() error {
	var firstErr error
	for _, q := range []*Queue{t.Ingress, t.Originality, t.Concordance} {
		if err := q.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
