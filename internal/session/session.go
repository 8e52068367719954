// internal/session/session.go
//
// Session Coordinator: binds a puzzle instance to an active room (or a
// solo player), tracks per-player progress, and owns the points-award
// path for game completions.
//
// Concurrency notes:
//   - The session registry is guarded by the coordinator's RWMutex.
//   - Each player's guess history has its own mutex, so one player's
//     guesses apply in submission order while different players in the
//     same room proceed independently.
//   - Completion goes through points.AwardOnce, so duplicate completion
//     signals for the same (user, session) cannot double-credit.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Solvium/SolviumAI-sub003/internal/game"
	"github.com/Solvium/SolviumAI-sub003/internal/limits"
	"github.com/Solvium/SolviumAI-sub003/internal/points"
	"github.com/Solvium/SolviumAI-sub003/internal/room"
)

var (
	ErrNotFound        = errors.New("session: not found")
	ErrNotParticipant  = errors.New("session: user not in session")
	ErrFinished        = errors.New("session: player already finished")
	ErrNotFinished     = errors.New("session: player still playing")
	ErrGuessNotAllowed = errors.New("session: word not in allowed list")
)

// LimitReachedError reports which user ran out of daily plays. It is an
// expected outcome, not a fault.
type LimitReachedError struct {
	UserID string
}

func (e *LimitReachedError) Error() string {
	return fmt.Sprintf("session: daily limit reached for user %s", e.UserID)
}

// PuzzleFunc produces the puzzle instance for a game type and UTC date
// key. Injected so tests control the pool and the date.
type PuzzleFunc func(gt game.GameType, dateKey string) (game.Puzzle, error)

// AllowedFunc validates a guess for a game type before scoring. A nil
// func accepts everything.
type AllowedFunc func(gt game.GameType, guess string) bool

// playerState is one player's progress through a session.
type playerState struct {
	mu      sync.Mutex // serializes this player's guesses
	guesses []game.GuessRecord
	solved  bool
	done    bool
}

// Session is one puzzle instance being played by one or more players.
// Every player sees the same answer.
type Session struct {
	ID          string
	RoomCode    string // empty for solo sessions
	Puzzle      game.Puzzle
	MaxAttempts int
	CreatedAt   time.Time

	// finishOnce guards the room-finish signal: the last players can
	// finish concurrently and each observes "everyone is done".
	finishOnce sync.Once

	// doneAt is stamped and read only by the coordinator's reap pass,
	// under the coordinator's lock.
	doneAt time.Time

	mu      sync.RWMutex
	players map[string]*playerState
}

// allDone reports whether every player has finished.
func (s *Session) allDone() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ps := range s.players {
		ps.mu.Lock()
		done := ps.done
		ps.mu.Unlock()
		if !done {
			return false
		}
	}
	return true
}

// GuessResult is returned for each submitted guess.
type GuessResult struct {
	Marks        []game.Mark `json:"marks"`
	Solved       bool        `json:"solved"`
	AttemptsLeft int         `json:"attemptsLeft"`
	Done         bool        `json:"done"`
}

// Config tunes the coordinator.
type Config struct {
	MaxAttempts int
	WinPoints   int
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 6, WinPoints: 30}
}

// Coordinator drives sessions from start to points award.
type Coordinator struct {
	cfg     Config
	rooms   *room.Manager
	limiter *limits.Limiter
	ledger  *points.Ledger
	puzzle  PuzzleFunc
	allowed AllowedFunc

	// OnRoomFinished runs after a room's session fully completes, with
	// the final room snapshot. Used for archiving and live feeds.
	OnRoomFinished func(room.View)

	mu       sync.RWMutex
	sessions map[string]*Session
	byRoom   map[string]string // room code -> session id
}

func NewCoordinator(cfg Config, rooms *room.Manager, limiter *limits.Limiter, ledger *points.Ledger, puzzle PuzzleFunc, allowed AllowedFunc) *Coordinator {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultConfig()
	}
	return &Coordinator{
		cfg:      cfg,
		rooms:    rooms,
		limiter:  limiter,
		ledger:   ledger,
		puzzle:   puzzle,
		allowed:  allowed,
		sessions: make(map[string]*Session),
		byRoom:   make(map[string]string),
	}
}

// StartRoom transitions the room to active, consumes each member's
// daily allowance, and binds one puzzle instance shared by all members.
// A member out of plays aborts the room (active → finished) and returns
// LimitReachedError.
func (c *Coordinator) StartRoom(ctx context.Context, code, dateKey string) (*Session, error) {
	r, err := c.rooms.Get(code)
	if err != nil {
		return nil, err
	}
	if _, err := c.rooms.Start(code); err != nil {
		return nil, err
	}
	for _, uid := range r.MemberIDs() {
		d, err := c.limiter.CheckAndConsume(ctx, uid, r.Type, dateKey)
		if err != nil {
			_, _ = c.rooms.Finish(code)
			return nil, err
		}
		if !d.Allowed {
			_, _ = c.rooms.Finish(code)
			return nil, &LimitReachedError{UserID: uid}
		}
	}

	p, err := c.puzzle(r.Type, dateKey)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:          uuid.NewString(),
		RoomCode:    code,
		Puzzle:      p,
		MaxAttempts: c.cfg.MaxAttempts,
		CreatedAt:   time.Now().UTC(),
		players:     make(map[string]*playerState),
	}
	for _, uid := range r.MemberIDs() {
		s.players[uid] = &playerState{}
	}

	c.mu.Lock()
	c.sessions[s.ID] = s
	c.byRoom[code] = s.ID
	c.mu.Unlock()

	log.Info().Str("session", s.ID).Str("room", code).Str("gameType", string(r.Type)).Msg("room session started")
	return s, nil
}

// StartSolo consumes the user's daily allowance and opens a
// single-player session. dateKey keys the limit counter; seedKey feeds
// the puzzle supplier (the date key for daily play, a one-off key for
// casual games).
func (c *Coordinator) StartSolo(ctx context.Context, userID string, gt game.GameType, dateKey, seedKey string) (*Session, error) {
	if !gt.Valid() {
		return nil, fmt.Errorf("session: unknown game type %q", gt)
	}
	d, err := c.limiter.CheckAndConsume(ctx, userID, gt, dateKey)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, &LimitReachedError{UserID: userID}
	}
	p, err := c.puzzle(gt, seedKey)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:          uuid.NewString(),
		Puzzle:      p,
		MaxAttempts: c.cfg.MaxAttempts,
		CreatedAt:   time.Now().UTC(),
		players:     map[string]*playerState{userID: {}},
	}
	c.mu.Lock()
	c.sessions[s.ID] = s
	c.mu.Unlock()

	log.Info().Str("session", s.ID).Str("user", userID).Str("gameType", string(gt)).Msg("solo session started")
	return s, nil
}

// Get returns a session by ID.
func (c *Coordinator) Get(sessionID string) (*Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// GetByRoom returns the session bound to a room code.
func (c *Coordinator) GetByRoom(code string) (*Session, error) {
	c.mu.RLock()
	id, ok := c.byRoom[code]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return c.Get(id)
}

// SubmitGuess scores one guess for one player. Guesses from the same
// player apply in submission order; a guess after the player finished
// returns ErrFinished.
func (c *Coordinator) SubmitGuess(ctx context.Context, sessionID, userID, guess string) (GuessResult, error) {
	s, err := c.Get(sessionID)
	if err != nil {
		return GuessResult{}, err
	}
	s.mu.RLock()
	ps, ok := s.players[userID]
	s.mu.RUnlock()
	if !ok {
		return GuessResult{}, ErrNotParticipant
	}

	guess = strings.ToLower(strings.TrimSpace(guess))
	if c.allowed != nil && !c.allowed(s.Puzzle.Type, guess) {
		return GuessResult{}, ErrGuessNotAllowed
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.done {
		return GuessResult{}, ErrFinished
	}

	marks, err := game.Evaluate(s.Puzzle.Answer, guess)
	if err != nil {
		return GuessResult{}, err
	}
	ps.guesses = append(ps.guesses, game.GuessRecord{Word: guess, Marks: marks})

	if game.Solved(marks) {
		ps.solved = true
		ps.done = true
	} else if len(ps.guesses) >= s.MaxAttempts {
		ps.done = true
	}

	res := GuessResult{
		Marks:        marks,
		Solved:       ps.solved,
		AttemptsLeft: s.MaxAttempts - len(ps.guesses),
		Done:         ps.done,
	}

	if ps.done && s.RoomCode != "" {
		go c.maybeFinishRoom(s)
	}
	return res, nil
}

// Guesses returns a player's guess history in submission order.
func (c *Coordinator) Guesses(sessionID, userID string) ([]game.GuessRecord, error) {
	s, err := c.Get(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	ps, ok := s.players[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotParticipant
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]game.GuessRecord, len(ps.guesses))
	copy(out, ps.guesses)
	return out, nil
}

// Complete settles a finished player's points. Solved players get
// WinPoints exactly once per (user, session); concurrent or retried
// calls observe Duplicate=true and write nothing. An unsolved player
// settles at zero with no ledger write.
func (c *Coordinator) Complete(ctx context.Context, sessionID, userID string) (points.Award, error) {
	s, err := c.Get(sessionID)
	if err != nil {
		return points.Award{}, err
	}
	s.mu.RLock()
	ps, ok := s.players[userID]
	s.mu.RUnlock()
	if !ok {
		return points.Award{}, ErrNotParticipant
	}

	ps.mu.Lock()
	done, solved := ps.done, ps.solved
	ps.mu.Unlock()
	if !done {
		return points.Award{}, ErrNotFinished
	}
	if !solved {
		return points.Award{UserID: userID, SessionID: sessionID}, nil
	}
	return c.ledger.AwardOnce(ctx, userID, sessionID, c.cfg.WinPoints, "game_win")
}

// maybeFinishRoom finishes the room once every player is done. The last
// players can cross the line concurrently, so the transition and the
// OnRoomFinished signal are guarded: they happen exactly once per
// session no matter how many finishers observe "everyone is done".
func (c *Coordinator) maybeFinishRoom(s *Session) {
	if !s.allDone() {
		return
	}
	s.finishOnce.Do(func() {
		r, err := c.rooms.Finish(s.RoomCode)
		if err != nil {
			log.Warn().Err(err).Str("room", s.RoomCode).Msg("finish room after session")
			return
		}
		c.mu.Lock()
		delete(c.byRoom, s.RoomCode)
		c.mu.Unlock()

		log.Info().Str("room", s.RoomCode).Str("session", s.ID).Msg("room session finished")
		if c.OnRoomFinished != nil {
			c.OnRoomFinished(r.Snapshot())
		}
	})
}

// reap drops finished sessions after a retention window. A session is
// first stamped on the pass that finds it fully done, then removed once
// the window elapses; late Complete retries after removal get
// ErrNotFound, and the point_awards guard already made any earlier
// retries safe. Returns the number of sessions removed.
func (c *Coordinator) reap(now time.Time, retention time.Duration) int {
	cutoff := now.Add(-retention)
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, s := range c.sessions {
		if !s.allDone() {
			continue
		}
		if s.doneAt.IsZero() {
			s.doneAt = now
			continue
		}
		if s.doneAt.After(cutoff) {
			continue
		}
		delete(c.sessions, id)
		delete(c.byRoom, s.RoomCode)
		removed++
		log.Debug().Str("session", id).Time("doneAt", s.doneAt).Msg("reclaimed finished session")
	}
	return removed
}
