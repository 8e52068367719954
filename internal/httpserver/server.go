// internal/httpserver/server.go
//
// HTTP wiring for the game session engine.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/debug/words".
//   - Room + session endpoints (optional auth): mounted in routes_rooms.go.
//   - Daily Challenge endpoints (optional auth): mounted in routes_daily.go.
//   - Auth + profile/stat endpoints (require auth): auth.go.
//   - Websocket room feed: ws.go.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Optional auth decorates requests with user context when a valid
//     token is present; guests fall back to the anonymous-ID cookie.
package httpserver

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Solvium/SolviumAI-sub003/internal/daily"
	"github.com/Solvium/SolviumAI-sub003/internal/limits"
	"github.com/Solvium/SolviumAI-sub003/internal/room"
	"github.com/Solvium/SolviumAI-sub003/internal/session"
	"github.com/Solvium/SolviumAI-sub003/internal/words"
)

// Server bundles the router, core services, and the DB handle.
type Server struct {
	r       *chi.Mux
	db      *sql.DB
	rooms   *room.Manager
	coord   *session.Coordinator
	limiter *limits.Limiter
	dailySt *daily.Store
	hub     *Hub
}

// New constructs a Server, installs middleware, and registers routes.
func New(db *sql.DB, rooms *room.Manager, coord *session.Coordinator, limiter *limits.Limiter) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		db:      db,
		rooms:   rooms,
		coord:   coord,
		limiter: limiter,
		dailySt: daily.NewStore(db),
		hub:     NewHub(),
	}

	// Finished rooms leave the live registry; archive them and tell
	// any connected spectators.
	coord.OnRoomFinished = func(v room.View) {
		s.archiveRoom(v)
		s.hub.BroadcastRoom(v)
	}

	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(corsFromEnv)

	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"solvium-game-engine","endpoints":["/health","POST /rooms","POST /game/new","/daily/*","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
		a, g, q := words.Stats()
		_ = json.NewEncoder(w).Encode(map[string]int{"answers": a, "allowed": g, "questions": q})
	})

	s.r.Group(func(r chi.Router) {
		r.Use(s.withOptionalAuth())
		s.mountRooms(r)
		s.mountDaily(r)
	})
	s.mountAuthRoutes()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})
	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:5173.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------- helpers -----------------------------------

func (s *Server) archiveRoom(v room.View) {
	_, _ = s.db.Exec(
		`INSERT INTO rooms_archive (code, game_type, host_id, created_at, finished_at, members)
		 VALUES (?,?,?,?,?,?)`,
		v.Code, string(v.GameType), v.HostID,
		v.CreatedAt.Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), len(v.Members),
	)
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
