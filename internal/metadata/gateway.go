// Package metadata provides the Metadata Gateway: a typed façade over the
// submission/round/leaderboard store. Every method maps to one transaction
// in the backing store.
package metadata

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("metadata: not found")

// Submission is the subset of submission metadata the scoring pipeline
// consults.
type Submission struct {
	ID        string
	User      string
	RoundID   string
	CreatedAt time.Time
	BlobKey   string
	Selected  bool
}

// Metric identifies which verdict a write targets.
type Metric string

const (
	MetricConcordance Metric = "concordance"
	MetricOriginality Metric = "originality"
)

// Gateway is the Metadata Gateway's operations. All methods are safe for
// concurrent use by multiple goroutines; each is its own store transaction.
type Gateway interface {
	// GetSubmission resolves a submission's owning user, round, creation
	// time, and blob key. Returns ErrNotFound if no such submission exists.
	GetSubmission(ctx context.Context, id string) (Submission, error)

	// GetRoundNumber returns the round number a submission belongs to.
	GetRoundNumber(ctx context.Context, submissionID string) (int, error)

	// MarkLeaderboardPending sets the consistency metric and resets both
	// verdicts to pending. Idempotent.
	MarkLeaderboardPending(ctx context.Context, submissionID string, consistency float64) error

	// WriteVerdict transitions a verdict from pending to value. Idempotent:
	// calling it twice with the same arguments leaves the store in the
	// same state as one call.
	WriteVerdict(ctx context.Context, submissionID string, metric Metric, value bool) error

	// ListCohort returns the most-recent selected submission per other
	// user in the round, strictly before `before`, sorted by CreatedAt
	// descending. Never includes excludingUser or a submission with
	// CreatedAt >= before.
	ListCohort(ctx context.Context, roundID, excludingUser string, before time.Time) ([]Submission, error)

	// GetCreatedAt returns a submission's creation timestamp.
	GetCreatedAt(ctx context.Context, submissionID string) (time.Time, error)
}
