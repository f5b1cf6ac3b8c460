package chat

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Inbound
		wantJoin  bool
		malformed bool
	}{
		{
			name:     "implicit join",
			input:    `{"username":"Ada","room":"tech"}`,
			want:     Inbound{Username: "Ada", Room: "tech"},
			wantJoin: true,
		},
		{
			name:     "explicit join",
			input:    `{"type":"join","username":"Ada","room":"fun"}`,
			want:     Inbound{Type: KindJoin, Username: "Ada", Room: "fun"},
			wantJoin: true,
		},
		{
			name:  "chat",
			input: `{"type":"chat","message":"hi"}`,
			want:  Inbound{Type: KindChat, Message: "hi"},
		},
		{
			name:  "typing",
			input: `{"type":"typing"}`,
			want:  Inbound{Type: KindTyping},
		},
		{
			name:  "unknown kind is not an error",
			input: `{"type":"dance"}`,
			want:  Inbound{Type: "dance"},
		},
		{name: "not json", input: `hello`, malformed: true},
		{name: "null", input: `null`, malformed: true},
		{name: "array", input: `[1,2]`, malformed: true},
		{name: "wrong field type", input: `{"type":"chat","message":42}`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			if tt.malformed {
				assert.ErrorIs(t, err, ErrMalformedEnvelope)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantJoin, got.IsJoin())
		})
	}
}

func TestEncode(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 7, 0, 0, time.UTC)

	tests := []struct {
		name string
		msg  Outbound
		want string
	}{
		{
			name: "chat",
			msg:  NewChat("Ada", "hi", at),
			want: `{"type":"chat","username":"Ada","message":"hi","timestamp":"09:07"}`,
		},
		{
			name: "system",
			msg:  NewSystem(JoinedText("Ada"), at),
			want: `{"type":"system","message":"Ada joined the room","timestamp":"09:07"}`,
		},
		{
			name: "empty typing list stays an array",
			msg:  NewTyping(nil),
			want: `{"type":"typing","users":[]}`,
		},
		{
			name: "typing",
			msg:  NewTyping([]string{"Ada", "Bob"}),
			want: `{"type":"typing","users":["Ada","Bob"]}`,
		},
		{
			name: "zero online count is kept",
			msg:  NewStats(0),
			want: `{"type":"stats","online":0}`,
		},
		{
			name: "error",
			msg:  NewError(ErrUnknownRoom),
			want: `{"type":"error","code":"unknown_room","message":"unknown room"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestNewTypingCopiesUsers(t *testing.T) {
	users := []string{"Ada"}
	msg := NewTyping(users)
	users[0] = "Mallory"

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"typing","users":["Ada"]}`, string(data))
}

func TestLeftText(t *testing.T) {
	assert.Equal(t, "Ada left the room", LeftText("Ada", true))
	assert.Equal(t, "Ada left the room (connection error)", LeftText("Ada", false))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, CodeInvalidUsername, ErrorCode(errors.Join(errors.New("wrapped"), ErrInvalidUsername)))
	assert.Equal(t, CodeUnknownRoom, ErrorCode(ErrUnknownRoom))
	assert.Equal(t, CodeInternal, ErrorCode(errors.New("boom")))
}
