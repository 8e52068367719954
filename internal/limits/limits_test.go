package limits

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Solvium/SolviumAI-sub003/internal/dbtest"
	"github.com/Solvium/SolviumAI-sub003/internal/game"
)

func TestConsumeCountsDown(t *testing.T) {
	l := New(dbtest.Open(t), 3)
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		d, err := l.CheckAndConsume(ctx, "u1", game.WordGuess, "2024-06-01")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, want, d.Remaining)
	}

	d, err := l.CheckAndConsume(ctx, "u1", game.WordGuess, "2024-06-01")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(dbtest.Open(t), 1)
	ctx := context.Background()

	d, err := l.CheckAndConsume(ctx, "u1", game.WordGuess, "2024-06-01")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// Same user, exhausted for word-guess today.
	d, err = l.CheckAndConsume(ctx, "u1", game.WordGuess, "2024-06-01")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// Other game type: separate counter.
	d, err = l.CheckAndConsume(ctx, "u1", game.Quiz, "2024-06-01")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// Next day: fresh key, no carry-over.
	d, err = l.CheckAndConsume(ctx, "u1", game.WordGuess, "2024-06-02")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// Other user unaffected.
	d, err = l.CheckAndConsume(ctx, "u2", game.WordGuess, "2024-06-01")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

// Two racers, ceiling one: exactly one may win.
func TestConsumeAtomicUnderRace(t *testing.T) {
	l := New(dbtest.Open(t), 1)
	ctx := context.Background()

	const racers = 2
	decisions := make([]Decision, racers)
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i], errs[i] = l.CheckAndConsume(ctx, "u1", game.WordGuess, "2024-06-01")
		}(i)
	}
	wg.Wait()

	allowed := 0
	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, d := range decisions {
		if d.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestConsumeNeverExceedsCeiling(t *testing.T) {
	const ceiling = 5
	l := New(dbtest.Open(t), ceiling)
	ctx := context.Background()

	const attempts = 20
	decisions := make([]Decision, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i], errs[i] = l.CheckAndConsume(ctx, "u1", game.WordGuess, "2024-06-01")
		}(i)
	}
	wg.Wait()

	n := 0
	for i := range decisions {
		require.NoError(t, errs[i])
		if decisions[i].Allowed {
			n++
		}
	}
	assert.Equal(t, ceiling, n)
}

func TestPeekDoesNotConsume(t *testing.T) {
	l := New(dbtest.Open(t), 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Peek(ctx, "u1", game.WordGuess, "2024-06-01")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2, d.Remaining)
	}

	_, err := l.CheckAndConsume(ctx, "u1", game.WordGuess, "2024-06-01")
	require.NoError(t, err)
	d, err := l.Peek(ctx, "u1", game.WordGuess, "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Remaining)
}
