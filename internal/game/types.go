// internal/game/types.go
//
// Core type definitions for the puzzle engine:
//   - GameType: which kind of puzzle a room plays.
//   - Mark: per-letter result of a guess (exact/present/absent).
//   - Puzzle: one concrete answer bound to a room or solo session.
//   - GuessRecord: a scored guess in a player's history.
package game

import "time"

// GameType identifies the puzzle family a room or session plays.
type GameType string

const (
	WordGuess     GameType = "word-guess"
	Quiz          GameType = "quiz"
	PicturePuzzle GameType = "picture-puzzle"
)

// Valid reports whether g is a known game type.
func (g GameType) Valid() bool {
	switch g {
	case WordGuess, Quiz, PicturePuzzle:
		return true
	}
	return false
}

// Mark classifies a single guessed letter.
//   - "exact":   right letter, right position.
//   - "present": letter occurs elsewhere in the answer.
//   - "absent":  letter not in the answer (or its occurrences used up).
type Mark string

const (
	MarkExact   Mark = "exact"
	MarkPresent Mark = "present"
	MarkAbsent  Mark = "absent"
)

// Puzzle is one concrete answer instance. SeedKey records how the
// answer was generated (the date key for daily puzzles, a pool index
// otherwise) so the instance can be reproduced.
type Puzzle struct {
	Answer     string    `json:"-"`
	Prompt     string    `json:"prompt,omitempty"` // quiz question text
	SeedKey    string    `json:"seedKey"`
	Type       GameType  `json:"gameType"`
	Difficulty int       `json:"difficulty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// GuessRecord is one scored guess. Marks are a pure function of
// (answer, guess): recomputing them always yields the same vector.
type GuessRecord struct {
	Word  string `json:"word"`
	Marks []Mark `json:"marks"`
}
