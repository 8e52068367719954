// internal/httpserver/ws.go
//
// Websocket feed for room state. Clients subscribe to a room code and
// receive a fresh room snapshot whenever membership, readiness, or
// status changes. The feed is read-only; mutations go through the HTTP
// endpoints.
package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Solvium/SolviumAI-sub003/internal/room"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin is already policed by the CORS middleware for the
	// HTTP surface; the ws handshake carries the same cookie auth.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient is one subscriber connection.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	code string

	mu     sync.Mutex
	closed bool
}

// safeSend queues a message unless the client is closed or its buffer
// is full. A full buffer means a slow reader; dropping a snapshot is
// fine because the next broadcast supersedes it.
func (c *wsClient) safeSend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *wsClient) safeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

// Hub fans room snapshots out to the subscribers of each room code.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*wsClient]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*wsClient]struct{})}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.code] == nil {
		h.rooms[c.code] = make(map[*wsClient]struct{})
	}
	h.rooms[c.code][c] = struct{}{}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.rooms[c.code]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, c.code)
		}
	}
	c.safeClose()
}

// roomEvent is the wire envelope for snapshot pushes.
type roomEvent struct {
	Type string    `json:"type"`
	Room room.View `json:"room"`
}

// BroadcastRoom pushes a snapshot to everyone watching the room.
func (h *Hub) BroadcastRoom(v room.View) {
	msg, err := json.Marshal(roomEvent{Type: "room_state", Room: v})
	if err != nil {
		log.Error().Err(err).Str("room", v.Code).Msg("marshal room event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[v.Code] {
		if !c.safeSend(msg) {
			log.Debug().Str("room", v.Code).Msg("dropping snapshot for slow ws client")
		}
	}
}

// handleRoomWS upgrades the connection and subscribes it to the room.
// The room must exist; the initial snapshot is sent immediately.
func (s *Server) handleRoomWS(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rm, err := s.rooms.Get(code)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("room", code).Msg("ws upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer), code: code}
	s.hub.add(c)

	if msg, err := json.Marshal(roomEvent{Type: "room_state", Room: rm.Snapshot()}); err == nil {
		c.safeSend(msg)
	}

	go c.writePump(s.hub)
	go c.readPump(s.hub)
}

// readPump discards inbound frames and tears the client down on error.
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the send channel onto the socket, pinging to keep
// intermediaries from closing the connection.
func (c *wsClient) writePump(h *Hub) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(c)
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
