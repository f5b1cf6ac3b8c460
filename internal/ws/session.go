package ws

import (
	"errors"
	"log/slog"

	"github.com/coder/websocket"

	"chatterbox/internal/chat"
	"chatterbox/internal/registry"
)

type state int

const (
	stateAwaitingJoin state = iota
	stateActive
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateAwaitingJoin:
		return "awaiting_join"
	case stateActive:
		return "active"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

// transport is a socket whose frames are read by exactly one session.
type transport interface {
	registry.Socket
	Read() ([]byte, error)
}

// Session is the control loop of one connection. Only the session mutates
// its own registry entry.
type Session struct {
	manager  *Manager
	conn     transport
	logger   *slog.Logger
	state    state
	id       registry.ConnID
	username string
	room     string
}

func newSession(m *Manager, conn transport) *Session {
	return &Session{
		manager: m,
		conn:    conn,
		logger:  m.logger,
		state:   stateAwaitingJoin,
	}
}

// Run reads envelopes until the transport fails, then moves to the closed
// state whatever state the session was in.
func (s *Session) Run() {
	var readErr error
	defer func() {
		s.close(readErr)
	}()

	for {
		data, err := s.conn.Read()
		if err != nil {
			readErr = err
			return
		}
		s.handle(data)
	}
}

func (s *Session) handle(data []byte) {
	in, err := chat.Decode(data)
	if err != nil {
		s.logger.Warn("dropping envelope", "state", s.state, "error", err)
		return
	}

	switch s.state {
	case stateAwaitingJoin:
		if !in.IsJoin() {
			s.logger.Debug("ignoring envelope before join", "type", in.Type)
			return
		}
		s.join(in.Username, in.Room)
	case stateActive:
		switch in.Type {
		case chat.KindChat:
			s.chat(in.Text())
		case chat.KindTyping:
			s.manager.typing.MarkTyping(s.room, s.username)
		case chat.KindStopTyping:
			s.manager.typing.MarkStopped(s.room, s.username)
		case chat.KindJoin:
			s.switchRoom(in.Username, in.Room)
		default:
			s.logger.Debug("received unknown type message", "type", in.Type)
		}
	}
}

func (s *Session) join(username, room string) {
	id, err := s.manager.registry.Admit(s.conn, username, room)
	if err != nil {
		s.reject(err)
		return
	}
	conn, ok := s.manager.registry.Get(id)
	if !ok {
		return
	}

	s.id, s.username, s.room = conn.ID, conn.Username, conn.Room
	s.state = stateActive
	s.logger = s.manager.logger.With("connID", conn.ID, "username", conn.Username, "room", conn.Room)
	s.logger.Info("client joined")

	s.manager.joined(conn)
}

// switchRoom leaves the current room and joins another. The target is checked
// first so a bad request leaves the session where it was.
func (s *Session) switchRoom(username, room string) {
	if _, _, err := s.manager.registry.Validate(username, room); err != nil {
		s.reject(err)
		return
	}
	s.leave(true)
	s.join(username, room)
}

func (s *Session) chat(text string) {
	if text == "" {
		return
	}
	msg := chat.NewChat(s.username, text, s.manager.now())
	s.manager.broadcaster.Broadcast(s.room, msg, "")
}

func (s *Session) reject(err error) {
	s.logger.Info("join rejected", "error", err)
	data, encErr := chat.Encode(chat.NewError(err))
	if encErr != nil {
		s.logger.Error("failed to encode error envelope", "error", encErr)
		return
	}
	if err := s.conn.Send(data); err != nil {
		s.logger.Debug("failed to send error envelope", "error", err)
	}
}

// leave removes the session from its room and announces the departure.
func (s *Session) leave(clean bool) {
	if s.state != stateActive {
		return
	}
	if conn, ok := s.manager.broadcaster.Remove(s.room, s.id); ok {
		s.manager.left(conn, clean)
	}
	s.id, s.username, s.room = "", "", ""
	s.state = stateAwaitingJoin
	s.logger = s.manager.logger
}

func (s *Session) close(readErr error) {
	clean := isCleanClose(readErr)
	if !clean {
		s.logger.Warn("connection lost", "error", readErr)
	}
	s.leave(clean)
	s.state = stateClosed

	if err := s.conn.Close(); err != nil {
		s.logger.Debug("failed to close connection", "error", err)
	}
	s.logger.Debug("client disconnected")
}

// isCleanClose reports whether the peer went away deliberately.
func isCleanClose(err error) bool {
	if err == nil || errors.Is(err, ErrServerShutdown) {
		return true
	}
	if errors.Is(err, ErrSendBufferFull) {
		return false
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return true
	}
	return false
}
