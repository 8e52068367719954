package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Solvium/SolviumAI-sub003/internal/daily"
	"github.com/Solvium/SolviumAI-sub003/internal/dbtest"
	"github.com/Solvium/SolviumAI-sub003/internal/game"
	"github.com/Solvium/SolviumAI-sub003/internal/limits"
	"github.com/Solvium/SolviumAI-sub003/internal/points"
	"github.com/Solvium/SolviumAI-sub003/internal/room"
)

var testPool = []string{"crane", "toast"}

func testPuzzle(gt game.GameType, dateKey string) (game.Puzzle, error) {
	w, err := daily.Pick(testPool, dateKey)
	if err != nil {
		return game.Puzzle{}, err
	}
	return game.Puzzle{Answer: w, SeedKey: dateKey, Type: gt, CreatedAt: time.Now().UTC()}, nil
}

type fixture struct {
	rooms  *room.Manager
	ledger *points.Ledger
	coord  *Coordinator
}

func newFixture(t *testing.T, ceiling int) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	rooms := room.NewManager(room.DefaultConfig(), room.NewMemoryRegistry())
	ledger := points.NewLedger(db)
	coord := NewCoordinator(DefaultConfig(), rooms, limits.New(db, ceiling), ledger, testPuzzle, nil)
	return &fixture{rooms: rooms, ledger: ledger, coord: coord}
}

func readyRoom(t *testing.T, f *fixture, users ...string) *room.Room {
	t.Helper()
	r, err := f.rooms.Create(users[0], game.WordGuess)
	require.NoError(t, err)
	for _, u := range users[1:] {
		_, err = f.rooms.Join(r.Code, u)
		require.NoError(t, err)
	}
	for _, u := range users {
		_, err = f.rooms.SetReady(r.Code, u, true)
		require.NoError(t, err)
	}
	return r
}

// The full multiplayer scenario: create, join, ready, start, guess the
// deterministic daily answer, settle points exactly once.
func TestRoomPlayEndToEnd(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	r := readyRoom(t, f, "host", "guest")

	s, err := f.coord.StartRoom(ctx, r.Code, "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, room.StatusActive, r.CurrentStatus())
	// "2024-06-01" deterministically picks index 0 of the pool.
	assert.Equal(t, "crane", s.Puzzle.Answer)

	res, err := f.coord.SubmitGuess(ctx, s.ID, "guest", "TOAST")
	require.NoError(t, err)
	require.Len(t, res.Marks, 5)
	assert.False(t, res.Solved)
	assert.Equal(t, 5, res.AttemptsLeft)

	res, err = f.coord.SubmitGuess(ctx, s.ID, "guest", "crane")
	require.NoError(t, err)
	assert.True(t, res.Solved)
	assert.True(t, res.Done)

	a, err := f.coord.Complete(ctx, s.ID, "guest")
	require.NoError(t, err)
	assert.False(t, a.Duplicate)
	assert.Equal(t, 30, a.Delta)

	// Retried completion signal: no second credit.
	a, err = f.coord.Complete(ctx, s.ID, "guest")
	require.NoError(t, err)
	assert.True(t, a.Duplicate)

	total, err := f.ledger.Total(ctx, "guest")
	require.NoError(t, err)
	assert.Equal(t, 30, total)
}

func TestAllPlayersShareOneAnswer(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	r := readyRoom(t, f, "host", "p2", "p3")

	s, err := f.coord.StartRoom(ctx, r.Code, "2024-06-02")
	require.NoError(t, err)
	assert.Equal(t, "toast", s.Puzzle.Answer)

	for _, u := range []string{"host", "p2", "p3"} {
		res, err := f.coord.SubmitGuess(ctx, s.ID, u, "toast")
		require.NoError(t, err)
		assert.True(t, res.Solved, "player %s saw a different answer", u)
	}
}

func TestGuessHistoryOrdered(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	s, err := f.coord.StartSolo(ctx, "u1", game.WordGuess, "2024-06-01", "2024-06-01")
	require.NoError(t, err)

	words := []string{"toast", "llama", "abbey"}
	for _, w := range words {
		_, err := f.coord.SubmitGuess(ctx, s.ID, "u1", w)
		require.NoError(t, err)
	}

	hist, err := f.coord.Guesses(s.ID, "u1")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	for i, w := range words {
		assert.Equal(t, w, hist[i].Word)
	}
}

func TestExhaustedAttempts(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	s, err := f.coord.StartSolo(ctx, "u1", game.WordGuess, "2024-06-01", "2024-06-01")
	require.NoError(t, err)

	var res GuessResult
	for i := 0; i < s.MaxAttempts; i++ {
		res, err = f.coord.SubmitGuess(ctx, s.ID, "u1", "toast")
		require.NoError(t, err)
	}
	assert.True(t, res.Done)
	assert.False(t, res.Solved)
	assert.Equal(t, 0, res.AttemptsLeft)

	_, err = f.coord.SubmitGuess(ctx, s.ID, "u1", "toast")
	require.ErrorIs(t, err, ErrFinished)

	// Losing completion settles at zero with no ledger write.
	a, err := f.coord.Complete(ctx, s.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, a.Delta)
	total, err := f.ledger.Total(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestCompleteBeforeDone(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	s, err := f.coord.StartSolo(ctx, "u1", game.WordGuess, "2024-06-01", "2024-06-01")
	require.NoError(t, err)
	_, err = f.coord.Complete(ctx, s.ID, "u1")
	require.ErrorIs(t, err, ErrNotFinished)
}

func TestCompleteConcurrentAwardsOnce(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	s, err := f.coord.StartSolo(ctx, "u1", game.WordGuess, "2024-06-01", "2024-06-01")
	require.NoError(t, err)
	_, err = f.coord.SubmitGuess(ctx, s.ID, "u1", "crane")
	require.NoError(t, err)

	const racers = 6
	awards := make([]points.Award, racers)
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			awards[i], errs[i] = f.coord.Complete(ctx, s.ID, "u1")
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

	total, err := f.ledger.Total(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, total)
}

func TestStartSoloConsumesDailyLimit(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.coord.StartSolo(ctx, "u1", game.WordGuess, "2024-06-01", "2024-06-01")
	require.NoError(t, err)

	_, err = f.coord.StartSolo(ctx, "u1", game.WordGuess, "2024-06-01", "2024-06-01")
	var lim *LimitReachedError
	require.ErrorAs(t, err, &lim)
	assert.Equal(t, "u1", lim.UserID)

	// Next day is a fresh counter.
	_, err = f.coord.StartSolo(ctx, "u1", game.WordGuess, "2024-06-02", "2024-06-02")
	require.NoError(t, err)
}

func TestStartRoomAbortsWhenMemberOutOfPlays(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	// Burn the guest's allowance with a solo game.
	_, err := f.coord.StartSolo(ctx, "guest", game.WordGuess, "2024-06-01", "2024-06-01")
	require.NoError(t, err)

	r := readyRoom(t, f, "host", "guest")
	_, err = f.coord.StartRoom(ctx, r.Code, "2024-06-01")
	var lim *LimitReachedError
	require.ErrorAs(t, err, &lim)
	assert.Equal(t, "guest", lim.UserID)
	assert.Equal(t, room.StatusFinished, r.CurrentStatus())
}

func TestSubmitGuessErrors(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	s, err := f.coord.StartSolo(ctx, "u1", game.WordGuess, "2024-06-01", "2024-06-01")
	require.NoError(t, err)

	_, err = f.coord.SubmitGuess(ctx, "no-such-session", "u1", "crane")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.coord.SubmitGuess(ctx, s.ID, "stranger", "crane")
	require.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.coord.SubmitGuess(ctx, s.ID, "u1", "too-long-guess")
	require.ErrorIs(t, err, game.ErrLengthMismatch)
}

func TestAllowedListGate(t *testing.T) {
	db := dbtest.Open(t)
	rooms := room.NewManager(room.DefaultConfig(), room.NewMemoryRegistry())
	allow := func(gt game.GameType, guess string) bool { return guess == "crane" || guess == "toast" }
	coord := NewCoordinator(DefaultConfig(), rooms, limits.New(db, 50), points.NewLedger(db), testPuzzle, allow)

	ctx := context.Background()
	s, err := coord.StartSolo(ctx, "u1", game.WordGuess, "2024-06-01", "2024-06-01")
	require.NoError(t, err)

	_, err = coord.SubmitGuess(ctx, s.ID, "u1", "zzzzz")
	require.ErrorIs(t, err, ErrGuessNotAllowed)

	_, err = coord.SubmitGuess(ctx, s.ID, "u1", "toast")
	require.NoError(t, err)
}

func TestRoomFinishesWhenEveryoneDone(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	r := readyRoom(t, f, "host", "guest")

	var finished []room.View
	var mu sync.Mutex
	f.coord.OnRoomFinished = func(v room.View) {
		mu.Lock()
		finished = append(finished, v)
		mu.Unlock()
	}

	s, err := f.coord.StartRoom(ctx, r.Code, "2024-06-01")
	require.NoError(t, err)

	_, err = f.coord.SubmitGuess(ctx, s.ID, "host", "crane")
	require.NoError(t, err)
	assert.Equal(t, room.StatusActive, r.CurrentStatus())

	_, err = f.coord.SubmitGuess(ctx, s.ID, "guest", "crane")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return r.CurrentStatus() == room.StatusFinished
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(finished) == 1 && finished[0].Status == room.StatusFinished
	}, time.Second, 5*time.Millisecond)

	// The room's session binding is released.
	_, err = f.coord.GetByRoom(r.Code)
	assert.ErrorIs(t, err, ErrNotFound)
}

// The last players can finish at the same moment, and each finisher
// checks the room on its own goroutine. However many of them observe
// "everyone is done", the finish signal must fire exactly once.
func TestFinishSignalFiresOnceForConcurrentFinishers(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	r := readyRoom(t, f, "host", "guest")

	var mu sync.Mutex
	callbacks := 0
	f.coord.OnRoomFinished = func(room.View) {
		mu.Lock()
		callbacks++
		mu.Unlock()
	}

	s, err := f.coord.StartRoom(ctx, r.Code, "2024-06-01")
	require.NoError(t, err)

	for _, u := range []string{"host", "guest"} {
		_, err = f.coord.SubmitGuess(ctx, s.ID, u, "crane")
		require.NoError(t, err)
	}

	// Drive the finish check from extra goroutines on top of the ones
	// the guesses spawned, simulating simultaneous last finishers.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.coord.maybeFinishRoom(s)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return callbacks >= 1
	}, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return callbacks > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, room.StatusFinished, r.CurrentStatus())
}

func TestReapRemovesFinishedSessionsAfterRetention(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()

	done, err := f.coord.StartSolo(ctx, "u1", game.WordGuess, "2024-06-01", "2024-06-01")
	require.NoError(t, err)
	_, err = f.coord.SubmitGuess(ctx, done.ID, "u1", "crane")
	require.NoError(t, err)

	playing, err := f.coord.StartSolo(ctx, "u2", game.WordGuess, "2024-06-01", "2024-06-01")
	require.NoError(t, err)

	now := time.Now().UTC()

	// First pass stamps the finished session; nothing is removed yet.
	assert.Equal(t, 0, f.coord.reap(now, time.Hour))
	_, err = f.coord.Get(done.ID)
	require.NoError(t, err)

	// Inside the window the session survives; past it, it goes.
	assert.Equal(t, 0, f.coord.reap(now.Add(30*time.Minute), time.Hour))
	assert.Equal(t, 1, f.coord.reap(now.Add(2*time.Hour), time.Hour))

	_, err = f.coord.Get(done.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.coord.Complete(ctx, done.ID, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	// A session still being played is never reclaimed.
	_, err = f.coord.Get(playing.ID)
	require.NoError(t, err)
	_, err = f.coord.SubmitGuess(ctx, playing.ID, "u2", "crane")
	require.NoError(t, err)
}
