// Package presence derives online counts from the registry and reports them.
package presence

// Source is the read side of the connection registry.
type Source interface {
	Rooms() []string
	Count(room string) int
}

// Snapshot is the online count of every room at one instant.
type Snapshot struct {
	Total       int            `json:"total_connections"`
	Rooms       map[string]int `json:"rooms"`
	ActiveRooms int            `json:"active_rooms"`
}

// Counter holds no state of its own: every count is read through the Source.
type Counter struct {
	source Source
}

func NewCounter(source Source) *Counter {
	return &Counter{source: source}
}

func (c *Counter) OnlineCount(room string) int {
	return c.source.Count(room)
}

func (c *Counter) Snapshot() Snapshot {
	rooms := c.source.Rooms()
	s := Snapshot{Rooms: make(map[string]int, len(rooms))}
	for _, room := range rooms {
		n := c.source.Count(room)
		s.Rooms[room] = n
		s.Total += n
		if n > 0 {
			s.ActiveRooms++
		}
	}
	return s
}
