package metadata

import (
	"context"
	"fmt"
	"time"
)

// InsertRound registers a round. Test and seed-data helper; production
// rounds are created by the (out-of-scope) round-open process this
// repo does not own.
func (g *SQLiteGateway) InsertRound(ctx context.Context, id string, number int, openTime time.Time) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO rounds (id, number, open_time) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, number, formatTime(openTime))
	if err != nil {
		return fmt.Errorf("insert round %s: %w", id, err)
	}
	return nil
}

// InsertSubmission registers a submission. Test and ingestion-boundary
// helper: in production this row is written by the (out-of-scope) upload
// handler before a submission ID ever reaches the ingress queue.
func (g *SQLiteGateway) InsertSubmission(ctx context.Context, s Submission) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO submissions (id, username, round_id, created_at, filename, selected)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username, round_id = excluded.round_id,
			created_at = excluded.created_at, filename = excluded.filename,
			selected = excluded.selected
	`, s.ID, s.User, s.RoundID, formatTime(s.CreatedAt), s.BlobKey, s.Selected)
	if err != nil {
		return fmt.Errorf("insert submission %s: %w", s.ID, err)
	}
	return nil
}
