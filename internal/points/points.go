// internal/points/points.go
//
// Points ledger: append-only deltas plus an idempotency guard.
//
// The ledger is money-like state: a failed write is propagated, never
// papered over. Award writes are keyed by (user, session) through the
// point_awards table, so a retried or racing completion signal observes
// "already awarded" and writes nothing.
package points

import (
	"context"
	"database/sql"
	"time"
)

// Entry is one ledger row.
type Entry struct {
	UserID    string    `json:"userId"`
	Delta     int       `json:"delta"`
	Week      int       `json:"week"`
	Year      int       `json:"year"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// Award is the outcome of an AwardOnce call.
type Award struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Delta     int    `json:"delta"`
	Duplicate bool   `json:"duplicate"` // true when a prior award already existed
}

type Ledger struct{ db *sql.DB }

func NewLedger(db *sql.DB) *Ledger { return &Ledger{db: db} }

// AwardOnce credits delta to userID for sessionID exactly once. The
// guard insert and the ledger append commit together; the loser of a
// duplicate race sees Duplicate=true and leaves the ledger untouched.
func (l *Ledger) AwardOnce(ctx context.Context, userID, sessionID string, delta int, reason string) (Award, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Award{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO point_awards (user_id, session_id) VALUES (?, ?)`,
		userID, sessionID,
	)
	if err != nil {
		return Award{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Award{}, err
	}
	if n == 0 {
		return Award{UserID: userID, SessionID: sessionID, Duplicate: true}, nil
	}

	now := time.Now().UTC()
	year, week := now.ISOWeek()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO points_ledger (user_id, delta, week, year, reason) VALUES (?, ?, ?, ?, ?)`,
		userID, delta, week, year, reason,
	); err != nil {
		return Award{}, err
	}
	if err := tx.Commit(); err != nil {
		return Award{}, err
	}
	return Award{UserID: userID, SessionID: sessionID, Delta: delta}, nil
}

// Append records a delta with no idempotency guard, for writers that
// carry their own (tasks, referrals). The additive invariant still
// holds: totals are sums of deltas.
func (l *Ledger) Append(ctx context.Context, userID string, delta int, reason string) error {
	now := time.Now().UTC()
	year, week := now.ISOWeek()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO points_ledger (user_id, delta, week, year, reason) VALUES (?, ?, ?, ?, ?)`,
		userID, delta, week, year, reason,
	)
	return err
}

// WeeklyTotal sums a user's deltas for one ISO week.
func (l *Ledger) WeeklyTotal(ctx context.Context, userID string, week, year int) (int, error) {
	var total int
	err := l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM points_ledger WHERE user_id=? AND week=? AND year=?`,
		userID, week, year,
	).Scan(&total)
	return total, err
}

// Total sums every delta ever recorded for a user.
func (l *Ledger) Total(ctx context.Context, userID string) (int, error) {
	var total int
	err := l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM points_ledger WHERE user_id=?`,
		userID,
	).Scan(&total)
	return total, err
}
