package chat

import "errors"

var (
	// ErrInvalidUsername is returned for an empty, too long or badly formed username.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrUnknownRoom is returned when a join names a room outside the fixed room set.
	ErrUnknownRoom = errors.New("unknown room")
	// ErrMalformedEnvelope is returned when an inbound frame is not a JSON envelope.
	ErrMalformedEnvelope = errors.New("malformed envelope")
)

// Error codes carried by outbound error envelopes.
const (
	CodeInvalidUsername = "invalid_username"
	CodeUnknownRoom     = "unknown_room"
	CodeInternal        = "internal"
)

// ErrorCode maps a join-time error to the code reported back to the client.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidUsername):
		return CodeInvalidUsername
	case errors.Is(err, ErrUnknownRoom):
		return CodeUnknownRoom
	default:
		return CodeInternal
	}
}
