package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteGateway is the concrete Metadata Gateway adapter: an embedded,
// pure-Go SQLite database holding submissions, rounds, leaderboard,
// originalities, and concordances.
type SQLiteGateway struct {
	db *sql.DB
}

// Open creates or reopens the gateway's backing database at dsn, running
// schema migrations idempotently.
func Open(dsn string) (*SQLiteGateway, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	g := &SQLiteGateway{db: db}
	if err := g.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return g, nil
}

// DB exposes the underlying handle so tests can inspect stored rows
// directly.
func (g *SQLiteGateway) DB() *sql.DB { return g.db }

func (g *SQLiteGateway) Close() error { return g.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS rounds (
	id TEXT PRIMARY KEY,
	number INTEGER NOT NULL,
	open_time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	round_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	filename TEXT NOT NULL,
	selected INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_submissions_round_created
	ON submissions (round_id, created_at DESC);

CREATE TABLE IF NOT EXISTS leaderboard (
	round_id TEXT NOT NULL,
	username TEXT NOT NULL,
	submission_id TEXT NOT NULL,
	consistency REAL,
	concordant_pending INTEGER NOT NULL DEFAULT 1,
	concordant_value INTEGER,
	original_pending INTEGER NOT NULL DEFAULT 1,
	original_value INTEGER,
	PRIMARY KEY (round_id, username)
);

CREATE TABLE IF NOT EXISTS concordances (
	submission_id TEXT PRIMARY KEY,
	pending INTEGER NOT NULL DEFAULT 1,
	value INTEGER
);

CREATE TABLE IF NOT EXISTS originalities (
	submission_id TEXT PRIMARY KEY,
	pending INTEGER NOT NULL DEFAULT 1,
	value INTEGER
);
`

func (g *SQLiteGateway) migrate() error {
	_, err := g.db.Exec(schema)
	return err
}

func (g *SQLiteGateway) GetSubmission(ctx context.Context, id string) (Submission, error) {
	var s Submission
	var createdAt string
	row := g.db.QueryRowContext(ctx, `SELECT id, username, round_id, created_at, filename, selected
		FROM submissions WHERE id = ?`, id)
	if err := row.Scan(&s.ID, &s.User, &s.RoundID, &createdAt, &s.BlobKey, &s.Selected); err != nil {
		if err == sql.ErrNoRows {
			return Submission{}, ErrNotFound
		}
		return Submission{}, fmt.Errorf("get submission %s: %w", id, err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return Submission{}, fmt.Errorf("parse created_at for %s: %w", id, err)
	}
	s.CreatedAt = t
	return s, nil
}

func (g *SQLiteGateway) GetRoundNumber(ctx context.Context, submissionID string) (int, error) {
	var number int
	row := g.db.QueryRowContext(ctx, `
		SELECT r.number FROM submissions s
		JOIN rounds r ON r.id = s.round_id
		WHERE s.id = ?`, submissionID)
	if err := row.Scan(&number); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get round number for %s: %w", submissionID, err)
	}
	return number, nil
}

func (g *SQLiteGateway) GetCreatedAt(ctx context.Context, submissionID string) (time.Time, error) {
	s, err := g.GetSubmission(ctx, submissionID)
	if err != nil {
		return time.Time{}, err
	}
	return s.CreatedAt, nil
}

// MarkLeaderboardPending sets the consistency metric and resets both
// verdicts to pending, for both the submission-scoped tables and the
// denormalized leaderboard row, in one transaction.
func (g *SQLiteGateway) MarkLeaderboardPending(ctx context.Context, submissionID string, consistency float64) error {
	sub, err := g.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"concordances", "originalities"} {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (submission_id, pending, value) VALUES (?, 1, NULL)
			ON CONFLICT(submission_id) DO UPDATE SET pending = 1, value = NULL
		`, table), submissionID)
		if err != nil {
			return fmt.Errorf("reset %s for %s: %w", table, submissionID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leaderboard (round_id, username, submission_id, consistency,
			concordant_pending, concordant_value, original_pending, original_value)
		VALUES (?, ?, ?, ?, 1, NULL, 1, NULL)
		ON CONFLICT(round_id, username) DO UPDATE SET
			submission_id = excluded.submission_id,
			consistency = excluded.consistency,
			concordant_pending = 1, concordant_value = NULL,
			original_pending = 1, original_value = NULL
	`, sub.RoundID, sub.User, submissionID, consistency)
	if err != nil {
		return fmt.Errorf("upsert leaderboard row for %s: %w", submissionID, err)
	}

	return tx.Commit()
}

// WriteVerdict transitions a verdict from pending to value, idempotently,
// updating both the per-metric table and the denormalized leaderboard row.
func (g *SQLiteGateway) WriteVerdict(ctx context.Context, submissionID string, metric Metric, value bool) error {
	sub, err := g.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}

	table, lbPendingCol, lbValueCol, err := verdictColumns(metric)
	if err != nil {
		return err
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (submission_id, pending, value) VALUES (?, 0, ?)
		ON CONFLICT(submission_id) DO UPDATE SET pending = 0, value = excluded.value
	`, table), submissionID, value)
	if err != nil {
		return fmt.Errorf("write %s verdict for %s: %w", metric, submissionID, err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE leaderboard SET %s = 0, %s = ? WHERE round_id = ? AND username = ?
	`, lbPendingCol, lbValueCol), value, sub.RoundID, sub.User)
	if err != nil {
		return fmt.Errorf("update leaderboard %s for %s: %w", metric, submissionID, err)
	}

	return tx.Commit()
}

func verdictColumns(metric Metric) (table, pendingCol, valueCol string, err error) {
	switch metric {
	case MetricConcordance:
		return "concordances", "concordant_pending", "concordant_value", nil
	case MetricOriginality:
		return "originalities", "original_pending", "original_value", nil
	default:
		return "", "", "", fmt.Errorf("unknown metric %q", metric)
	}
}

// ListCohort returns the most-recent selected submission per other user in
// roundID, strictly before `before`, sorted by CreatedAt descending: group
// by user, take the most recent, exclude self — expressed as a single SQL
// query against the relational schema.
func (g *SQLiteGateway) ListCohort(ctx context.Context, roundID, excludingUser string, before time.Time) ([]Submission, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT s.id, s.username, s.round_id, s.created_at, s.filename, s.selected
		FROM submissions s
		INNER JOIN (
			SELECT username, MAX(created_at) AS max_created
			FROM submissions
			WHERE round_id = ? AND created_at < ? AND selected = 1 AND username != ?
			GROUP BY username
		) latest ON s.username = latest.username AND s.created_at = latest.max_created
		WHERE s.round_id = ? AND s.selected = 1
		ORDER BY s.created_at DESC
	`, roundID, formatTime(before), excludingUser, roundID)
	if err != nil {
		return nil, fmt.Errorf("list cohort for round %s: %w", roundID, err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var s Submission
		var createdAt string
		if err := rows.Scan(&s.ID, &s.User, &s.RoundID, &createdAt, &s.BlobKey, &s.Selected); err != nil {
			return nil, fmt.Errorf("scan cohort row: %w", err)
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse cohort created_at: %w", err)
		}
		s.CreatedAt = t
		out = append(out, s)
	}
	return out, rows.Err()
}

// timeLayout is RFC3339 with a fixed nine-digit fraction, so stored
// timestamps compare correctly as strings in SQL (created_at < ?, MAX,
// ORDER BY).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
