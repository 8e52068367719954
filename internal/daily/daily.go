// internal/daily/daily.go
//
// Daily Selector: maps a UTC calendar date to one entry of a pool, the
// same entry for every client that computes it. The caller passes the
// date key in explicitly so the selection stays reproducible in tests;
// nothing here reads the clock.
package daily

import (
	"errors"
	"time"

	"github.com/Solvium/SolviumAI-sub003/internal/seed"
)

// ErrEmptyPool is returned by Pick when there is nothing to pick from.
var ErrEmptyPool = errors.New("daily: empty pool")

// DateKey returns t as YYYY-MM-DD in UTC. All timezones agree on the
// key, so all timezones agree on the day's puzzle.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Pick selects one element of pool for the given date key. The pool's
// order matters: callers must present it in a stable order.
func Pick[T any](pool []T, dateKey string) (T, error) {
	var zero T
	if len(pool) == 0 {
		return zero, ErrEmptyPool
	}
	return pool[Index(dateKey, len(pool))], nil
}

// Index returns the deterministic pool index for a date key:
// floor(draw * n) clamped to [0, n-1]. n must be positive.
func Index(dateKey string, n int) int {
	idx := int(seed.New(dateKey).Next() * float64(n))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
