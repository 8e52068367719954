// internal/game/evaluate.go
//
// Guess Evaluator: the standard two-pass, frequency-aware scoring
// algorithm.
//
// Pass 1:
//   - Mark exact matches and count the remaining (non-exact) answer
//     letters.
//
// Pass 2:
//   - For each non-exact guess letter: if that letter still has
//     remaining count, mark present and decrement; otherwise absent.
//
// The two passes guarantee that exact+present marks for any letter
// never exceed that letter's count in the answer, which is what makes
// repeated letters score correctly.
package game

import "errors"

// ErrLengthMismatch is returned when guess and answer differ in length.
var ErrLengthMismatch = errors.New("game: guess length does not match answer")

// Evaluate scores guess against answer. It is pure: the result depends
// only on the two inputs, and calling it again yields the same vector.
func Evaluate(answer, guess string) ([]Mark, error) {
	ans := []rune(answer)
	g := []rune(guess)
	if len(ans) != len(g) {
		return nil, ErrLengthMismatch
	}

	n := len(ans)
	marks := make([]Mark, n)
	remaining := make(map[rune]int, n)

	for i := 0; i < n; i++ {
		if g[i] == ans[i] {
			marks[i] = MarkExact
		} else {
			remaining[ans[i]]++
		}
	}

	for i := 0; i < n; i++ {
		if marks[i] == MarkExact {
			continue
		}
		if remaining[g[i]] > 0 {
			marks[i] = MarkPresent
			remaining[g[i]]--
		} else {
			marks[i] = MarkAbsent
		}
	}
	return marks, nil
}

// Solved reports whether every mark is exact.
func Solved(marks []Mark) bool {
	for _, m := range marks {
		if m != MarkExact {
			return false
		}
	}
	return len(marks) > 0
}
