package ws

import (
	"log/slog"
	"sync"

	"chatterbox/internal/chat"
	"chatterbox/internal/registry"
)

// Broadcaster fans envelopes out to the members of one room.
//
// Each room has its own lock, held only while envelopes are queued on the
// members' sockets. Queuing never blocks, so the lock is never held across a
// socket write, yet successive broadcasts reach every member in call order.
type Broadcaster struct {
	registry *registry.Registry
	logger   *slog.Logger
	rooms    map[string]*sync.Mutex
}

func NewBroadcaster(reg *registry.Registry, logger *slog.Logger) *Broadcaster {
	b := &Broadcaster{
		registry: reg,
		logger:   logger,
		rooms:    make(map[string]*sync.Mutex),
	}
	for _, room := range reg.Rooms() {
		b.rooms[room] = &sync.Mutex{}
	}
	return b
}

// Broadcast queues msg for every member of room except exclude and returns
// the number of members it was queued for. A member whose socket refuses the
// envelope is closed asynchronously; its session then removes it.
func (b *Broadcaster) Broadcast(room string, msg chat.Outbound, exclude registry.ConnID) int {
	return b.BroadcastWith(room, exclude, func() chat.Outbound { return msg })
}

// BroadcastWith builds the envelope under the room lock, so envelopes derived
// from shared state (such as the online count) reach members in the order the
// state was read.
func (b *Broadcaster) BroadcastWith(room string, exclude registry.ConnID, build func() chat.Outbound) int {
	mu, ok := b.rooms[room]
	if !ok {
		return 0
	}

	mu.Lock()
	defer mu.Unlock()

	msg := build()
	data, err := chat.Encode(msg)
	if err != nil {
		b.logger.Error("failed to encode broadcast", "room", room, "error", err)
		return 0
	}

	delivered := 0
	for _, conn := range b.registry.Connections(room) {
		if conn.ID == exclude {
			continue
		}
		if err := conn.Socket.Send(data); err != nil {
			b.logger.Warn("failed to deliver message", "connID", conn.ID, "room", room, "type", msg.Kind(), "error", err)
			go b.evict(conn)
			continue
		}
		delivered++
	}
	b.logger.Debug("message broadcast", "room", room, "type", msg.Kind(), "recipients", delivered)
	return delivered
}

// SendTo queues msg for a single member, ordered with the room's broadcasts.
func (b *Broadcaster) SendTo(id registry.ConnID, msg chat.Outbound) error {
	conn, ok := b.registry.Get(id)
	if !ok {
		return ErrClientClosed
	}
	mu, ok := b.rooms[conn.Room]
	if !ok {
		return ErrClientClosed
	}
	data, err := chat.Encode(msg)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if err := conn.Socket.Send(data); err != nil {
		go b.evict(conn)
		return err
	}
	return nil
}

// Remove drops id from room under the room lock, so a broadcast already
// queuing to room reaches the member before it can show up anywhere else.
func (b *Broadcaster) Remove(room string, id registry.ConnID) (registry.Connection, bool) {
	if mu, ok := b.rooms[room]; ok {
		mu.Lock()
		defer mu.Unlock()
	}
	return b.registry.Remove(id)
}

func (b *Broadcaster) evict(conn registry.Connection) {
	if err := conn.Socket.Close(); err != nil {
		b.logger.Debug("failed to close evicted connection", "connID", conn.ID, "error", err)
	}
}
