package ws

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"chatterbox/internal/chat"
	"chatterbox/internal/presence"
	"chatterbox/internal/registry"
	"chatterbox/internal/typing"
)

// Manager wires the registry, typing aggregator, presence counter and
// broadcaster together and runs one session per accepted connection.
type Manager struct {
	logger      *slog.Logger
	registry    *registry.Registry
	typing      *typing.Aggregator
	broadcaster *Broadcaster
	presence    *presence.Counter
	reporter    presence.Reporter
	opts        Options
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewManager(ctx context.Context, logger *slog.Logger, reg *registry.Registry, reporter presence.Reporter, opts Options) *Manager {
	opts = opts.withDefaults()
	if reporter == nil {
		reporter = presence.NopReporter{}
	}
	ctx, cancel := context.WithCancelCause(ctx)

	m := &Manager{
		logger:      logger,
		registry:    reg,
		broadcaster: NewBroadcaster(reg, logger),
		presence:    presence.NewCounter(reg),
		reporter:    reporter,
		opts:        opts,
		now:         opts.Clock,
		ctx:         ctx,
		cancel:      cancel,
	}
	m.typing = typing.New(reg.Rooms(), opts.TypingWindow, m.typingChanged, typing.WithClock(opts.Clock))
	return m
}

// Start runs the typing expiry sweep until the manager shuts down.
func (m *Manager) Start() {
	m.typing.Run(m.ctx)
}

// HandleNewConnection serves an accepted websocket until it closes.
func (m *Manager) HandleNewConnection(conn *websocket.Conn) {
	client := NewClient(m.ctx, conn, m.logger, m.opts)
	client.Start()
	m.serve(client)
}

func (m *Manager) serve(conn transport) {
	if !m.track() {
		if err := conn.Close(); err != nil {
			m.logger.Debug("failed to close connection", "error", err)
		}
		return
	}
	defer m.wg.Done()

	stop := context.AfterFunc(m.ctx, func() {
		if err := conn.Close(); err != nil {
			m.logger.Debug("failed to close connection on shutdown", "error", err)
		}
	})
	defer stop()

	newSession(m, conn).Run()
}

func (m *Manager) track() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.wg.Add(1)
	return true
}

func (m *Manager) joined(conn registry.Connection) {
	m.broadcaster.Broadcast(conn.Room, chat.NewSystem(chat.JoinedText(conn.Username), m.now()), "")
	m.presenceChanged(conn.Room)

	m.typing.Replay(conn.Room, func(users []string) {
		if len(users) == 0 {
			return
		}
		if err := m.broadcaster.SendTo(conn.ID, chat.NewTyping(users)); err != nil {
			m.logger.Debug("failed to send typing list", "connID", conn.ID, "error", err)
		}
	})
}

func (m *Manager) left(conn registry.Connection, clean bool) {
	m.typing.MarkStopped(conn.Room, conn.Username)
	m.broadcaster.Broadcast(conn.Room, chat.NewSystem(chat.LeftText(conn.Username, clean), m.now()), "")
	m.presenceChanged(conn.Room)
	m.logger.Info("client left", "connID", conn.ID, "username", conn.Username, "room", conn.Room, "clean", clean)
}

func (m *Manager) presenceChanged(room string) {
	m.broadcaster.BroadcastWith(room, "", func() chat.Outbound {
		return chat.NewStats(m.presence.OnlineCount(room))
	})
	m.reporter.Notify()
}

func (m *Manager) typingChanged(room string, users []string) {
	m.broadcaster.Broadcast(room, chat.NewTyping(users), "")
}

// Announce broadcasts a system message to room, or to every room when room is empty.
func (m *Manager) Announce(room, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("empty announcement")
	}

	rooms := m.registry.Rooms()
	if room != "" {
		if !m.registry.HasRoom(room) {
			return fmt.Errorf("%w: %q", chat.ErrUnknownRoom, room)
		}
		rooms = []string{room}
	}

	msg := chat.NewSystem(message, m.now())
	for _, r := range rooms {
		m.broadcaster.Broadcast(r, msg, "")
	}
	return nil
}

func (m *Manager) Rooms() []string {
	return m.registry.Rooms()
}

func (m *Manager) Stats() presence.Snapshot {
	return m.presence.Snapshot()
}

// Shutdown stops accepting sessions, tears down every live connection and
// waits for their sessions to finish or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel(ErrServerShutdown)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("all connections closed")
		return nil
	case <-ctx.Done():
		m.logger.Warn("shutdown timed out, some connections may still be open")
		return ctx.Err()
	}
}
