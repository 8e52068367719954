// internal/httpserver/routes_daily.go
//
// Daily Challenge: one shared word per UTC day, one recorded result per
// user per day, and a per-day leaderboard.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Solvium/SolviumAI-sub003/internal/daily"
	"github.com/Solvium/SolviumAI-sub003/internal/game"
	"github.com/Solvium/SolviumAI-sub003/internal/session"
	"github.com/Solvium/SolviumAI-sub003/internal/words"
)

func (s *Server) mountDaily(r chi.Router) {
	r.Post("/daily/new", s.handleDailyNew)
	r.Post("/daily/guess", s.handleDailyGuess)
	r.Get("/daily/leaderboard", s.handleDailyLeaderboard)
}

type dailyNewRes struct {
	SessionID string `json:"sessionId,omitempty"`
	Date      string `json:"date"`
	Played    bool   `json:"played"`
	WordLen   int    `json:"wordLen"`
}

func (s *Server) handleDailyNew(w http.ResponseWriter, r *http.Request) {
	uid := s.requestUserID(w, r)
	date := daily.DateKey(time.Now())

	played, err := s.dailySt.AlreadyPlayed(r.Context(), uid, date)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if played {
		_ = json.NewEncoder(w).Encode(dailyNewRes{Date: date, Played: true, WordLen: words.WordLen})
		return
	}

	// The date keys both the limiter and the seed: everyone who starts
	// today plays today's word.
	sess, err := s.coord.StartSolo(r.Context(), uid, game.WordGuess, date, date)
	if err != nil {
		var lim *session.LimitReachedError
		if errors.As(err, &lim) {
			_ = json.NewEncoder(w).Encode(limitRes{LimitReached: true, UserID: lim.UserID})
			return
		}
		writeDomainErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(dailyNewRes{SessionID: sess.ID, Date: date, WordLen: words.WordLen})
}

type dailyGuessRes struct {
	session.GuessResult
	ElapsedMs int `json:"elapsedMs,omitempty"`
	Points    int `json:"points,omitempty"`
}

func (s *Server) handleDailyGuess(w http.ResponseWriter, r *http.Request) {
	uid := s.requestUserID(w, r)
	var req soloGuessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	sess, err := s.coord.Get(req.SessionID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	res, err := s.coord.SubmitGuess(r.Context(), req.SessionID, uid, req.Guess)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	out := dailyGuessRes{GuessResult: res}
	if res.Done && res.Solved {
		elapsed := int(time.Since(sess.CreatedAt).Milliseconds())
		date := sess.Puzzle.SeedKey
		if err := s.dailySt.InsertResult(r.Context(), daily.Result{
			UserID:    uid,
			Date:      date,
			WordIndex: daily.Index(date, len(words.Answers())),
			Guesses:   sess.MaxAttempts - res.AttemptsLeft,
			ElapsedMs: elapsed,
		}); err != nil {
			log.Warn().Err(err).Str("user", uid).Str("date", date).Msg("record daily result")
		}
		award, err := s.coord.Complete(r.Context(), req.SessionID, uid)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		out.ElapsedMs = elapsed
		if !award.Duplicate {
			out.Points = award.Delta
		}
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleDailyLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(time.Now())
	}
	rows, err := s.dailySt.Leaderboard(r.Context(), date, 20)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"date": date, "rows": rows})
}
