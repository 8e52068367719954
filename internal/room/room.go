// internal/room/room.go
//
// Room Manager: lifecycle for multiplayer rooms.
//
// A room is identified by a short alphanumeric code and moves through
// waiting → active → finished, forward only. Membership is capped and
// a user appears at most once per room. No points are awarded here —
// that is the session coordinator's job; side effects are confined to
// room and membership state.
package room

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Solvium/SolviumAI-sub003/internal/game"
)

// Status is a room's lifecycle phase. Transitions are forward-only.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// MemberState tracks a player's progress within a room.
type MemberState string

const (
	MemberJoined  MemberState = "joined"
	MemberReady   MemberState = "ready"
	MemberPlaying MemberState = "playing"
	MemberDone    MemberState = "done"
)

var (
	ErrNotFound        = errors.New("room: not found")
	ErrNotJoinable     = errors.New("room: not joinable")
	ErrFull            = errors.New("room: full")
	ErrPlayerNotInRoom = errors.New("room: player not in room")
	ErrNotReady        = errors.New("room: players not ready")
	ErrAlreadyStarted  = errors.New("room: already started")
	ErrCodeExhausted   = errors.New("room: could not generate unique code")
)

// Member links a user to a room.
type Member struct {
	UserID   string
	State    MemberState
	Ready    bool
	JoinedAt time.Time
}

// Room is a multiplayer session container. All fields are guarded by
// mu; use the Manager's methods rather than touching them directly.
type Room struct {
	Code      string
	Type      game.GameType
	HostID    string
	CreatedAt time.Time

	mu      sync.Mutex
	status  Status
	members map[string]*Member
	order   []string // join order, for stable views
}

// Config bounds the manager's behavior.
type Config struct {
	Capacity     int // max members per room
	MinPlayers   int // required to start
	CodeLen      int
	CodeAttempts int // bounded retry cap for code generation
}

// DefaultConfig matches the product rules: rooms of 2–8, 6-char codes.
func DefaultConfig() Config {
	return Config{Capacity: 8, MinPlayers: 2, CodeLen: 6, CodeAttempts: 10}
}

// Manager owns the room registry and enforces the lifecycle rules.
type Manager struct {
	cfg Config
	reg Registry
}

func NewManager(cfg Config, reg Registry) *Manager {
	if cfg.Capacity <= 0 {
		cfg = DefaultConfig()
	}
	return &Manager{cfg: cfg, reg: reg}
}

// 0/O and 1/I are excluded: codes get read aloud between players.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randomCode(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}

// Create makes a new waiting room with the host as its first member.
// The code is drawn repeatedly until the insert wins the uniqueness
// race; after CodeAttempts collisions it gives up with ErrCodeExhausted
// rather than looping forever.
func (m *Manager) Create(hostID string, gt game.GameType) (*Room, error) {
	if hostID == "" {
		return nil, fmt.Errorf("room: empty host id")
	}
	if !gt.Valid() {
		return nil, fmt.Errorf("room: unknown game type %q", gt)
	}
	now := time.Now().UTC()
	for attempt := 0; attempt < m.cfg.CodeAttempts; attempt++ {
		r := &Room{
			Code:      randomCode(m.cfg.CodeLen),
			Type:      gt,
			HostID:    hostID,
			CreatedAt: now,
			status:    StatusWaiting,
			members:   map[string]*Member{hostID: {UserID: hostID, State: MemberJoined, JoinedAt: now}},
			order:     []string{hostID},
		}
		if m.reg.PutIfAbsent(r) {
			return r, nil
		}
	}
	return nil, ErrCodeExhausted
}

// Join adds a user to a waiting room. Rejoining is idempotent: a user
// already in the room gets success without a duplicate membership.
func (m *Manager) Join(code, userID string) (*Room, error) {
	r, ok := m.reg.Get(code)
	if !ok {
		return nil, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, member := r.members[userID]; member {
		return r, nil
	}
	if r.status != StatusWaiting {
		return nil, ErrNotJoinable
	}
	if len(r.members) >= m.cfg.Capacity {
		return nil, ErrFull
	}
	r.members[userID] = &Member{UserID: userID, State: MemberJoined, JoinedAt: time.Now().UTC()}
	r.order = append(r.order, userID)
	return r, nil
}

// SetReady flips a member's readiness flag.
func (m *Manager) SetReady(code, userID string, ready bool) (*Room, error) {
	r, ok := m.reg.Get(code)
	if !ok {
		return nil, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	mem, in := r.members[userID]
	if !in {
		return nil, ErrPlayerNotInRoom
	}
	mem.Ready = ready
	if ready {
		mem.State = MemberReady
	} else {
		mem.State = MemberJoined
	}
	return r, nil
}

// Start transitions waiting → active once at least MinPlayers members
// are present and every member is ready.
func (m *Manager) Start(code string) (*Room, error) {
	r, ok := m.reg.Get(code)
	if !ok {
		return nil, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	if len(r.members) < m.cfg.MinPlayers {
		return nil, ErrNotReady
	}
	for _, mem := range r.members {
		if !mem.Ready {
			return nil, ErrNotReady
		}
	}
	r.status = StatusActive
	for _, mem := range r.members {
		mem.State = MemberPlaying
	}
	return r, nil
}

// Finish transitions active → finished. Terminal: no further joins or
// guesses are accepted. Finishing an already-finished room is a no-op.
func (m *Manager) Finish(code string) (*Room, error) {
	r, ok := m.reg.Get(code)
	if !ok {
		return nil, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusFinished {
		return r, nil
	}
	r.status = StatusFinished
	for _, mem := range r.members {
		mem.State = MemberDone
	}
	return r, nil
}

// Get looks a room up by code.
func (m *Manager) Get(code string) (*Room, error) {
	r, ok := m.reg.Get(code)
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// Status returns the room's current phase.
func (r *Room) CurrentStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// HasMember reports whether userID belongs to the room.
func (r *Room) HasMember(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[userID]
	return ok
}

// MemberIDs returns the member user IDs in join order.
func (r *Room) MemberIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// MemberView is the serializable snapshot of one membership.
type MemberView struct {
	UserID string      `json:"userId"`
	State  MemberState `json:"state"`
	Ready  bool        `json:"ready"`
}

// View is the serializable snapshot of a room handed to the API layer.
type View struct {
	Code      string        `json:"code"`
	GameType  game.GameType `json:"gameType"`
	Status    Status        `json:"status"`
	HostID    string        `json:"hostId"`
	CreatedAt time.Time     `json:"createdAt"`
	Members   []MemberView  `json:"members"`
}

// Snapshot copies the room state under its lock.
func (r *Room) Snapshot() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := View{
		Code:      r.Code,
		GameType:  r.Type,
		Status:    r.status,
		HostID:    r.HostID,
		CreatedAt: r.CreatedAt,
		Members:   make([]MemberView, 0, len(r.order)),
	}
	for _, id := range r.order {
		mem := r.members[id]
		v.Members = append(v.Members, MemberView{UserID: mem.UserID, State: mem.State, Ready: mem.Ready})
	}
	return v
}
