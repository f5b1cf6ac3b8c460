// Package registry tracks live connections and the fixed set of rooms they belong to.
package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatterbox/internal/chat"
)

type ConnID string

// Socket is the write side of a connection as seen by the rest of the server.
// Send must not block; Close makes the owning session unwind to its closed state.
type Socket interface {
	Send(data []byte) error
	Close() error
}

// Connection is an admitted member of a room.
type Connection struct {
	ID       ConnID
	Socket   Socket
	Username string
	Room     string
	JoinedAt time.Time
}

type Registry struct {
	mu    sync.RWMutex
	conns map[ConnID]Connection
	rooms map[string]map[ConnID]struct{}
	names []string
	now   func() time.Time
}

type Option func(*Registry)

// WithClock overrides the clock used to stamp JoinedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a registry over a fixed room set. Rooms are never created or
// destroyed afterwards.
func New(rooms []string, opts ...Option) *Registry {
	r := &Registry{
		conns: make(map[ConnID]Connection),
		rooms: make(map[string]map[ConnID]struct{}, len(rooms)),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, name := range rooms {
		if _, ok := r.rooms[name]; ok {
			continue
		}
		r.rooms[name] = make(map[ConnID]struct{})
		r.names = append(r.names, name)
	}
	return r
}

// Rooms returns the room names in configuration order.
func (r *Registry) Rooms() []string {
	return slices.Clone(r.names)
}

// HasRoom reports whether name is one of the fixed rooms.
func (r *Registry) HasRoom(name string) bool {
	_, ok := r.rooms[name]
	return ok
}

// Validate normalizes a join request without admitting anything.
func (r *Registry) Validate(username, room string) (string, string, error) {
	username, err := chat.NormalizeUsername(username)
	if err != nil {
		return "", "", err
	}
	room = strings.TrimSpace(room)
	if !r.HasRoom(room) {
		return "", "", fmt.Errorf("%w: %q", chat.ErrUnknownRoom, room)
	}
	return username, room, nil
}

// Admit validates the join and inserts a new connection into its room.
// Announcing the join is left to the caller.
func (r *Registry) Admit(socket Socket, username, room string) (ConnID, error) {
	username, room, err := r.Validate(username, room)
	if err != nil {
		return "", err
	}

	conn := Connection{
		ID:       ConnID(uuid.NewString()),
		Socket:   socket,
		Username: username,
		Room:     room,
		JoinedAt: r.now(),
	}

	r.mu.Lock()
	r.conns[conn.ID] = conn
	r.rooms[room][conn.ID] = struct{}{}
	r.mu.Unlock()

	return conn.ID, nil
}

// Remove drops the connection and its room membership. Removing an unknown id
// is a no-op; the returned bool reports whether anything was removed.
func (r *Registry) Remove(id ConnID) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, id)
	delete(r.rooms[conn.Room], id)
	return conn, true
}

func (r *Registry) Get(id ConnID) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// MembersOf returns a snapshot of the ids currently in room, sorted.
// Membership may change as soon as the snapshot is taken.
func (r *Registry) MembersOf(room string) []ConnID {
	r.mu.RLock()
	members := r.rooms[room]
	ids := make([]ConnID, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Connections returns a snapshot of the connections currently in room.
func (r *Registry) Connections(room string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	conns := make([]Connection, 0, len(members))
	for id := range members {
		conns = append(conns, r.conns[id])
	}
	return conns
}

// Count returns the number of members of room.
func (r *Registry) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}
