package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout renders message times as HH:MM.
const TimestampLayout = "15:04"

type Kind string

const (
	KindJoin       Kind = "join"
	KindChat       Kind = "chat"
	KindTyping     Kind = "typing"
	KindStopTyping Kind = "stop_typing"
	KindSystem     Kind = "system"
	KindStats      Kind = "stats"
	KindError      Kind = "error"
)

// Inbound is an envelope received from a client. The first envelope of a
// connection is the join and may omit its type.
type Inbound struct {
	Type     Kind   `json:"type"`
	Username string `json:"username"`
	Room     string `json:"room"`
	Message  string `json:"message"`
}

// IsJoin reports whether the envelope asks to enter a room.
func (in Inbound) IsJoin() bool {
	return in.Type == "" || in.Type == KindJoin
}

// Text returns the chat text without surrounding whitespace.
func (in Inbound) Text() string {
	return strings.TrimSpace(in.Message)
}

// Decode parses one inbound frame. Anything that is not a JSON object with
// string fields is reported as ErrMalformedEnvelope.
func Decode(data []byte) (Inbound, error) {
	var in *Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if in == nil {
		return Inbound{}, fmt.Errorf("%w: null envelope", ErrMalformedEnvelope)
	}
	return *in, nil
}

// Outbound is an envelope sent from the server to clients.
type Outbound interface {
	Kind() Kind
}

type ChatMessage struct {
	Type      Kind   `json:"type"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (ChatMessage) Kind() Kind { return KindChat }

type SystemMessage struct {
	Type      Kind   `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (SystemMessage) Kind() Kind { return KindSystem }

type TypingMessage struct {
	Type  Kind     `json:"type"`
	Users []string `json:"users"`
}

func (TypingMessage) Kind() Kind { return KindTyping }

type StatsMessage struct {
	Type   Kind `json:"type"`
	Online int  `json:"online"`
}

func (StatsMessage) Kind() Kind { return KindStats }

type ErrorMessage struct {
	Type    Kind   `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ErrorMessage) Kind() Kind { return KindError }

func NewChat(username, message string, at time.Time) ChatMessage {
	return ChatMessage{
		Type:      KindChat,
		Username:  username,
		Message:   message,
		Timestamp: at.Format(TimestampLayout),
	}
}

func NewSystem(message string, at time.Time) SystemMessage {
	return SystemMessage{
		Type:      KindSystem,
		Message:   message,
		Timestamp: at.Format(TimestampLayout),
	}
}

// NewTyping copies users so the envelope never aliases aggregator state.
// An empty list is encoded as [] rather than null.
func NewTyping(users []string) TypingMessage {
	list := make([]string, len(users))
	copy(list, users)
	return TypingMessage{Type: KindTyping, Users: list}
}

func NewStats(online int) StatsMessage {
	return StatsMessage{Type: KindStats, Online: online}
}

func NewError(err error) ErrorMessage {
	return ErrorMessage{Type: KindError, Code: ErrorCode(err), Message: err.Error()}
}

// Encode serializes an outbound envelope.
func Encode(msg Outbound) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s envelope: %w", msg.Kind(), err)
	}
	return data, nil
}

// JoinedText and LeftText are the system notices announcing room membership changes.
func JoinedText(username string) string {
	return fmt.Sprintf("%s joined the room", username)
}

func LeftText(username string, clean bool) string {
	if clean {
		return fmt.Sprintf("%s left the room", username)
	}
	return fmt.Sprintf("%s left the room (connection error)", username)
}
