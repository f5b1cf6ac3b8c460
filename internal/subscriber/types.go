package subscriber

import (
	"errors"
	"strings"
)

// Announcement is a message received on the announcements pub/sub channel.
// An empty Room targets every room.
type Announcement struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

func (a *Announcement) Validate() error {
	if strings.TrimSpace(a.Message) == "" {
		return errors.New("announcement message is empty")
	}
	return nil
}
