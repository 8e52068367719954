// internal/httpserver/routes_rooms.go
//
// HTTP routes for multiplayer rooms and sessions:
//   - POST /rooms                  → create a room
//   - GET  /rooms/{code}           → room snapshot
//   - POST /rooms/{code}/join      → join a waiting room
//   - POST /rooms/{code}/ready     → flip readiness
//   - POST /rooms/{code}/start     → start the room's session
//   - POST /rooms/{code}/guess     → submit a guess in the room session
//   - GET  /rooms/{code}/ws        → live room-state feed (websocket)
//   - POST /sessions/{id}/complete → settle points (idempotent)
//   - POST /game/new, /game/guess  → casual solo play
//   - GET  /limits                 → remaining daily plays
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Solvium/SolviumAI-sub003/internal/daily"
	"github.com/Solvium/SolviumAI-sub003/internal/game"
	"github.com/Solvium/SolviumAI-sub003/internal/room"
	"github.com/Solvium/SolviumAI-sub003/internal/session"
)

func (s *Server) mountRooms(r chi.Router) {
	r.Post("/rooms", s.handleCreateRoom)
	r.Route("/rooms/{code}", func(r chi.Router) {
		r.Get("/", s.handleGetRoom)
		r.Post("/join", s.handleJoinRoom)
		r.Post("/ready", s.handleReady)
		r.Post("/start", s.handleStartRoom)
		r.Post("/guess", s.handleRoomGuess)
		r.Get("/ws", s.handleRoomWS)
	})
	r.Post("/sessions/{id}/complete", s.handleComplete)
	r.Post("/game/new", s.handleSoloNew)
	r.Post("/game/guess", s.handleSoloGuess)
	r.Get("/limits", s.handleLimits)
}

// writeDomainErr maps core errors onto HTTP statuses: missing things
// are 404, legitimate state races are 409 for the caller to retry or
// surface, bad input is 400.
func writeDomainErr(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, room.ErrNotFound), errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, room.ErrNotJoinable), errors.Is(err, room.ErrFull),
		errors.Is(err, room.ErrNotReady), errors.Is(err, room.ErrPlayerNotInRoom),
		errors.Is(err, room.ErrAlreadyStarted),
		errors.Is(err, session.ErrFinished), errors.Is(err, session.ErrNotFinished):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNotParticipant):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrLengthMismatch), errors.Is(err, session.ErrGuessNotAllowed),
		errors.Is(err, daily.ErrEmptyPool):
		status = http.StatusBadRequest
	default:
		log.Error().Err(err).Msg("internal error")
		status = http.StatusInternalServerError
	}
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	http.Error(w, string(b), status)
}

type createRoomReq struct {
	GameType game.GameType `json:"gameType"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	uid := s.requestUserID(w, r)
	var req createRoomReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if req.GameType == "" {
		req.GameType = game.WordGuess
	}
	rm, err := s.rooms.Create(uid, req.GameType)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(rm.Snapshot())
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.rooms.Get(chi.URLParam(r, "code"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(rm.Snapshot())
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	uid := s.requestUserID(w, r)
	rm, err := s.rooms.Join(chi.URLParam(r, "code"), uid)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	v := rm.Snapshot()
	s.hub.BroadcastRoom(v)
	_ = json.NewEncoder(w).Encode(v)
}

type readyReq struct {
	Ready bool `json:"ready"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	uid := s.requestUserID(w, r)
	var req readyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	rm, err := s.rooms.SetReady(chi.URLParam(r, "code"), uid, req.Ready)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	v := rm.Snapshot()
	s.hub.BroadcastRoom(v)
	_ = json.NewEncoder(w).Encode(v)
}

// startRoomRes carries the room snapshot plus the bound session. The
// answer never leaves the server; clients get the prompt and metadata.
type startRoomRes struct {
	Room      room.View   `json:"room"`
	SessionID string      `json:"sessionId"`
	Puzzle    game.Puzzle `json:"puzzle"`
	Started   bool        `json:"started"`
}

type limitRes struct {
	Started      bool   `json:"started"`
	LimitReached bool   `json:"limitReached"`
	UserID       string `json:"userId"`
}

func (s *Server) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	sess, err := s.coord.StartRoom(r.Context(), code, daily.DateKey(time.Now()))
	if err != nil {
		var lim *session.LimitReachedError
		if errors.As(err, &lim) {
			// Expected outcome, not a fault: "come back tomorrow".
			_ = json.NewEncoder(w).Encode(limitRes{LimitReached: true, UserID: lim.UserID})
			return
		}
		writeDomainErr(w, err)
		return
	}
	rm, err := s.rooms.Get(code)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	v := rm.Snapshot()
	s.hub.BroadcastRoom(v)
	_ = json.NewEncoder(w).Encode(startRoomRes{Room: v, SessionID: sess.ID, Puzzle: sess.Puzzle, Started: true})
}

type guessReq struct {
	Guess string `json:"guess"`
}

func (s *Server) handleRoomGuess(w http.ResponseWriter, r *http.Request) {
	uid := s.requestUserID(w, r)
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	code := chi.URLParam(r, "code")
	sess, err := s.coord.GetByRoom(code)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	res, err := s.coord.SubmitGuess(r.Context(), sess.ID, uid, req.Guess)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if rm, err := s.rooms.Get(code); err == nil {
		s.hub.BroadcastRoom(rm.Snapshot())
	}
	_ = json.NewEncoder(w).Encode(res)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	uid := s.requestUserID(w, r)
	award, err := s.coord.Complete(r.Context(), chi.URLParam(r, "id"), uid)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(award)
}

// ------------------------------ solo play ----------------------------------

type soloNewReq struct {
	GameType game.GameType `json:"gameType"`
}
type soloNewRes struct {
	SessionID string      `json:"sessionId"`
	Puzzle    game.Puzzle `json:"puzzle"`
}

// handleSoloNew opens a casual solo session with a one-off seed, so
// casual answers vary between games while daily answers stay shared.
func (s *Server) handleSoloNew(w http.ResponseWriter, r *http.Request) {
	uid := s.requestUserID(w, r)
	var req soloNewReq
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.GameType == "" {
		req.GameType = game.WordGuess
	}

	dateKey := daily.DateKey(time.Now())
	sess, err := s.coord.StartSolo(r.Context(), uid, req.GameType, dateKey, "solo-"+uuid.NewString())
	if err != nil {
		var lim *session.LimitReachedError
		if errors.As(err, &lim) {
			_ = json.NewEncoder(w).Encode(limitRes{LimitReached: true, UserID: lim.UserID})
			return
		}
		writeDomainErr(w, err)
		return
	}
	s.insertGameRow(r, sess.ID, uid, req.GameType)
	_ = json.NewEncoder(w).Encode(soloNewRes{SessionID: sess.ID, Puzzle: sess.Puzzle})
}

type soloGuessReq struct {
	SessionID string `json:"sessionId"`
	Guess     string `json:"guess"`
}

func (s *Server) handleSoloGuess(w http.ResponseWriter, r *http.Request) {
	uid := s.requestUserID(w, r)
	var req soloGuessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	res, err := s.coord.SubmitGuess(r.Context(), req.SessionID, uid, req.Guess)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	s.recordGameProgress(req.SessionID, uid, res)
	_ = json.NewEncoder(w).Encode(res)
}

// insertGameRow persists a history row for the session owner
// (best effort, non-fatal).
func (s *Server) insertGameRow(r *http.Request, sessionID, uid string, gt game.GameType) {
	now := time.Now().UTC().Format(time.RFC3339)
	ownerCol := "anonymous_id"
	if me, _ := r.Context().Value(ctxUserKey{}).(*authUser); me != nil {
		ownerCol = "user_id"
	}
	if _, err := s.db.Exec(
		`INSERT INTO games (id, `+ownerCol+`, game_type, started_at, status, guesses) VALUES (?,?,?,?,?,0)`,
		sessionID, uid, string(gt), now, "playing",
	); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("insert game row")
	}
}

// recordGameProgress bumps counters and, when the game ends, settles
// status and user stats (best effort, non-fatal).
func (s *Server) recordGameProgress(sessionID, uid string, res session.GuessResult) {
	tx, err := s.db.Begin()
	if err != nil {
		log.Warn().Err(err).Msg("begin progress tx")
		return
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`UPDATE games SET guesses = guesses + 1 WHERE id=?`, sessionID); err != nil {
		log.Warn().Err(err).Msg("update guesses")
	}
	if res.Done {
		status := "lost"
		if res.Solved {
			status = "won"
		}
		if _, err := tx.Exec(`UPDATE games SET status=?, finished_at=? WHERE id=?`,
			status, time.Now().UTC().Format(time.RFC3339), sessionID); err != nil {
			log.Warn().Err(err).Msg("finish game row")
		}
		var isUser int
		if err := tx.QueryRow(`SELECT COUNT(1) FROM users WHERE id=?`, uid).Scan(&isUser); err == nil && isUser == 1 {
			if err := s.bumpStats(tx, uid, res.Solved); err != nil {
				log.Warn().Err(err).Str("user", uid).Msg("bump stats")
			}
		}
	}
	_ = tx.Commit()
}

// ------------------------------- limits ------------------------------------

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	uid := s.requestUserID(w, r)
	gt := game.GameType(r.URL.Query().Get("gameType"))
	if gt == "" {
		gt = game.WordGuess
	}
	if !gt.Valid() {
		http.Error(w, `{"error":"unknown game type"}`, http.StatusBadRequest)
		return
	}
	d, err := s.limiter.Peek(r.Context(), uid, gt, daily.DateKey(time.Now()))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(d)
}
