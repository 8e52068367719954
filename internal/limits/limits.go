// internal/limits/limits.go
//
// Rate Limiter: per-user per-day play-count gate.
//
// The check and the increment are one SQL statement, so two concurrent
// session starts cannot both observe "remaining > 0" and both proceed.
// Hitting the ceiling is a normal outcome surfaced in the Decision, not
// an error: callers turn it into a "come back tomorrow" message.
//
// Counters are keyed by (user, game type, UTC date). A new day is a
// fresh key; nothing ever resets or carries over.
package limits

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Solvium/SolviumAI-sub003/internal/game"
)

// DefaultCeiling is the per-day session cap per (user, game type).
const DefaultCeiling = 50

// Decision is the outcome of a limit check.
type Decision struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

// Limiter enforces the daily ceiling against the daily_limits table.
type Limiter struct {
	db      *sql.DB
	ceiling int
}

func New(db *sql.DB, ceiling int) *Limiter {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Limiter{db: db, ceiling: ceiling}
}

// CheckAndConsume atomically consumes one play for (userID, gt, dateKey).
// The upsert's WHERE clause is the whole trick: at the ceiling the
// update matches no row, RowsAffected is 0, and nothing is consumed.
func (l *Limiter) CheckAndConsume(ctx context.Context, userID string, gt game.GameType, dateKey string) (Decision, error) {
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO daily_limits (user_id, date, game_type, count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(user_id, date, game_type)
		DO UPDATE SET count = count + 1 WHERE count < ?`,
		userID, dateKey, gt, l.ceiling,
	)
	if err != nil {
		return Decision{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Decision{}, err
	}
	count, err := l.count(ctx, userID, gt, dateKey)
	if err != nil {
		return Decision{}, err
	}
	if n == 0 {
		return Decision{Allowed: false, Remaining: 0}, nil
	}
	return Decision{Allowed: true, Remaining: l.ceiling - count}, nil
}

// Peek reports the remaining plays without consuming one.
func (l *Limiter) Peek(ctx context.Context, userID string, gt game.GameType, dateKey string) (Decision, error) {
	count, err := l.count(ctx, userID, gt, dateKey)
	if err != nil {
		return Decision{}, err
	}
	remaining := l.ceiling - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: remaining > 0, Remaining: remaining}, nil
}

func (l *Limiter) count(ctx context.Context, userID string, gt game.GameType, dateKey string) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx,
		`SELECT count FROM daily_limits WHERE user_id=? AND date=? AND game_type=?`,
		userID, dateKey, gt,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, err
}
