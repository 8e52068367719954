// internal/words/words.go
//
// Word/question pool supplier consumed by the Daily Selector and the
// session coordinator.
//
// Pools:
//   - "answers": canonical word-guess solutions (5 lowercase letters).
//   - "allowed": valid guesses (always includes answers).
//   - "questions": quiz prompt/answer pairs.
//
// Lists load once from the embedded assets (sync.Once); answer and
// allowed lists can be overridden with WORDS_ANSWERS_FILE /
// WORDS_ALLOWED_FILE pointing at one-word-per-line files. Pool order is
// the file order — it must stay stable, the daily index depends on it.
package words

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/Solvium/SolviumAI-sub003/assets"
)

// WordLen is the fixed word-guess answer length.
const WordLen = 5

// Question is one quiz pool entry.
type Question struct {
	Prompt string `json:"prompt"`
	Answer string `json:"-"`
}

var (
	initOnce   sync.Once
	answers    []string
	allowedSet map[string]struct{}
	questions  []Question
	initialErr error
)

// Init loads all pools exactly once. Returns an error if the answers
// list ends up empty.
func Init() error {
	initOnce.Do(func() {
		ansList, err := loadList("WORDS_ANSWERS_FILE", assets.AnswersList)
		if err != nil {
			initialErr = err
			return
		}
		allowList, err := loadList("WORDS_ALLOWED_FILE", assets.AllowedList)
		if err != nil {
			initialErr = err
			return
		}

		answers = ansList
		allowedSet = make(map[string]struct{}, len(ansList)+len(allowList))
		for _, w := range ansList {
			allowedSet[w] = struct{}{}
		}
		for _, w := range allowList {
			allowedSet[w] = struct{}{}
		}

		raw, err := assets.QuizList()
		if err != nil {
			initialErr = err
			return
		}
		for _, line := range raw {
			prompt, answer, ok := strings.Cut(line, "|")
			if !ok {
				continue
			}
			questions = append(questions, Question{
				Prompt: strings.TrimSpace(prompt),
				Answer: strings.ToLower(strings.TrimSpace(answer)),
			})
		}

		if len(answers) == 0 {
			initialErr = errors.New("words: answers list is empty")
		}
	})
	return initialErr
}

func loadList(envKey string, embedded func() ([]string, error)) ([]string, error) {
	if path := os.Getenv(envKey); path != "" {
		return readWordFile(path)
	}
	return embedded()
}

// readWordFile loads one word per line, lowercased, keeping only
// WordLen-letter alphabetic words.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.TrimSpace(strings.ToLower(sc.Text()))
		if len(w) == WordLen && isAlpha(w) {
			out = append(out, w)
		}
	}
	return out, sc.Err()
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// Answers returns the canonical answer pool in stable order.
func Answers() []string {
	return answers
}

// Questions returns the quiz pool in stable order.
func Questions() []Question {
	return questions
}

// IsAllowed reports whether w is a valid word-guess (answers ∪ guesses).
func IsAllowed(w string) bool {
	_, ok := allowedSet[strings.ToLower(w)]
	return ok
}

// Stats returns counts of loaded entries: (answers, allowed, questions).
func Stats() (int, int, int) {
	return len(answers), len(allowedSet), len(questions)
}
