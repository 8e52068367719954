// internal/room/registry.go
//
// Registry abstracts the live room store so the Manager never touches a
// process-wide singleton. The memory implementation here is the default;
// implementations may be backed by Redis, SQL, etc.
package room

import "sync"

// Registry is the persistence interface for live rooms.
type Registry interface {
	// PutIfAbsent inserts r keyed by its code. Returns false if the
	// code is already taken (insert loses the uniqueness race).
	PutIfAbsent(r *Room) bool

	// Get retrieves a room by code.
	Get(code string) (*Room, bool)

	// Delete removes a room by code.
	Delete(code string)

	// List snapshots the current rooms, in no particular order.
	List() []*Room
}

type memoryRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewMemoryRegistry returns a map-backed Registry. Concurrency-safe;
// state is lost when the process restarts.
func NewMemoryRegistry() Registry {
	return &memoryRegistry{rooms: make(map[string]*Room)}
}

func (m *memoryRegistry) PutIfAbsent(r *Room) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.rooms[r.Code]; taken {
		return false
	}
	m.rooms[r.Code] = r
	return true
}

func (m *memoryRegistry) Get(code string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	return r, ok
}

func (m *memoryRegistry) Delete(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
}

func (m *memoryRegistry) List() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}
