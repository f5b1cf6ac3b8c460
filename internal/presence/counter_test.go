package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatterbox/internal/registry"
)

type nopSocket struct{}

func (nopSocket) Send([]byte) error { return nil }
func (nopSocket) Close() error      { return nil }

func TestCounter(t *testing.T) {
	reg := registry.New([]string{"general", "tech", "fun"})
	counter := NewCounter(reg)

	var ids []registry.ConnID
	for _, name := range []string{"Ada", "Bob", "Eve"} {
		id, err := reg.Admit(nopSocket{}, name, "tech")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := reg.Admit(nopSocket{}, "Zed", "general")
	require.NoError(t, err)

	reg.Remove(ids[0])

	assert.Equal(t, 2, counter.OnlineCount("tech"))
	assert.Equal(t, 1, counter.OnlineCount("general"))
	assert.Zero(t, counter.OnlineCount("fun"))
	assert.Zero(t, counter.OnlineCount("lobby"))

	assert.Equal(t, Snapshot{
		Total:       3,
		Rooms:       map[string]int{"general": 1, "tech": 2, "fun": 0},
		ActiveRooms: 2,
	}, counter.Snapshot())
}
