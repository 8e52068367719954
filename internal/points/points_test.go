package points

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Solvium/SolviumAI-sub003/internal/dbtest"
)

func TestAwardOnce(t *testing.T) {
	l := NewLedger(dbtest.Open(t))
	ctx := context.Background()

	a, err := l.AwardOnce(ctx, "u1", "sess-1", 30, "game_win")
	require.NoError(t, err)
	assert.False(t, a.Duplicate)
	assert.Equal(t, 30, a.Delta)

	total, err := l.Total(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, total)
}

func TestAwardOnceDuplicateWritesNothing(t *testing.T) {
	l := NewLedger(dbtest.Open(t))
	ctx := context.Background()

	_, err := l.AwardOnce(ctx, "u1", "sess-1", 30, "game_win")
	require.NoError(t, err)

	a, err := l.AwardOnce(ctx, "u1", "sess-1", 30, "game_win")
	require.NoError(t, err)
	assert.True(t, a.Duplicate)

	total, err := l.Total(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, total)
}

func TestAwardOncePerUserPerSession(t *testing.T) {
	l := NewLedger(dbtest.Open(t))
	ctx := context.Background()

	// Same session, different users: both awarded.
	_, err := l.AwardOnce(ctx, "u1", "sess-1", 30, "game_win")
	require.NoError(t, err)
	a, err := l.AwardOnce(ctx, "u2", "sess-1", 30, "game_win")
	require.NoError(t, err)
	assert.False(t, a.Duplicate)

	// Same user, different session: awarded again.
	a, err = l.AwardOnce(ctx, "u1", "sess-2", 10, "game_win")
	require.NoError(t, err)
	assert.False(t, a.Duplicate)

	total, err := l.Total(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 40, total)
}

// Concurrent duplicate completion signals race; exactly one ledger row
// may result.
func TestAwardOnceConcurrent(t *testing.T) {
	l := NewLedger(dbtest.Open(t))
	ctx := context.Background()

	const racers = 8
	awards := make([]Award, racers)
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			awards[i], errs[i] = l.AwardOnce(ctx, "u1", "sess-1", 30, "game_win")
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := range awards {
		require.NoError(t, errs[i])
		if !awards[i].Duplicate {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	total, err := l.Total(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, total)
}

func TestWeeklyAndLifetimeTotals(t *testing.T) {
	l := NewLedger(dbtest.Open(t))
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, "u1", 30, "game_win"))
	require.NoError(t, l.Append(ctx, "u1", 5, "daily_task"))
	require.NoError(t, l.Append(ctx, "u1", -10, "shop_spend"))
	require.NoError(t, l.Append(ctx, "u2", 100, "referral"))

	year, week := time.Now().UTC().ISOWeek()
	wk, err := l.WeeklyTotal(ctx, "u1", week, year)
	require.NoError(t, err)
	assert.Equal(t, 25, wk)

	total, err := l.Total(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 25, total)

	total, err = l.Total(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 100, total)

	// Unknown user sums to zero, not an error.
	total, err = l.Total(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
