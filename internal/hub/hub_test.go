package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistered(h *Hub, rooms ...string) *Connection {
	conn := h.NewConnection(nil)
	h.Register(conn)
	for _, room := range rooms {
		h.Join(conn, room)
	}
	return conn
}

func drain(conn *Connection) [][]byte {
	var frames [][]byte
	for {
		select {
		case data, ok := <-conn.Send:
			if !ok {
				return frames
			}
			frames = append(frames, data)
		default:
			return frames
		}
	}
}

func TestPublishReachesJoinedConnectionsOnly(t *testing.T) {
	h := NewHub(8)
	member := newRegistered(h, "s1")
	other := newRegistered(h, "s2")
	inert := newRegistered(h)

	n := h.Publish([]byte("hi"), "s1")

	assert.Equal(t, 1, n)
	assert.Equal(t, [][]byte{[]byte("hi")}, drain(member))
	assert.Empty(t, drain(other))
	assert.Empty(t, drain(inert))
}

func TestPublishDeliversOncePerConnectionAcrossRooms(t *testing.T) {
	h := NewHub(8)
	both := newRegistered(h, "s1", "admins")
	admin := newRegistered(h, "admins")

	n := h.Publish([]byte("evt"), "s1", "admins")

	assert.Equal(t, 2, n)
	assert.Len(t, drain(both), 1)
	assert.Len(t, drain(admin), 1)
}

func TestJoinAfterPublishReceivesNothing(t *testing.T) {
	h := NewHub(8)
	h.Publish([]byte("old"), "s1")

	late := newRegistered(h, "s1")
	assert.Empty(t, drain(late))

	h.Publish([]byte("new"), "s1")
	assert.Equal(t, [][]byte{[]byte("new")}, drain(late))
}

func TestUnregisterReleasesRooms(t *testing.T) {
	h := NewHub(8)
	conn := newRegistered(h, "s1", "admins")
	require.Equal(t, 2, h.GetRoomCount())

	h.Unregister(conn)
	h.Unregister(conn)

	assert.Equal(t, 0, h.GetConnectionCount())
	assert.Equal(t, 0, h.GetRoomCount())
	assert.Equal(t, 0, h.Publish([]byte("x"), "s1", "admins"))

	_, ok := <-conn.Send
	assert.False(t, ok, "send channel should be closed")
	assert.ErrorIs(t, h.SendToConnection(conn, []byte("x")), ErrConnectionClosed)
}

func TestLeaveAndCloseRoom(t *testing.T) {
	h := NewHub(8)
	a := newRegistered(h, "s1", "admins")
	b := newRegistered(h, "s1")

	h.Leave(b, "s1")
	assert.Equal(t, 1, h.RoomSize("s1"))

	h.CloseRoom("s1")
	assert.Equal(t, 0, h.RoomSize("s1"))
	assert.Equal(t, []string{"admins"}, h.Rooms(a))
	assert.Equal(t, 0, h.Publish([]byte("late"), "s1"))
	assert.Equal(t, 2, h.GetConnectionCount())
}

func TestPublishDropsSlowConsumer(t *testing.T) {
	h := NewHub(1)
	slow := newRegistered(h, "s1")

	assert.Equal(t, 1, h.Publish([]byte("1"), "s1"))
	assert.Equal(t, 0, h.Publish([]byte("2"), "s1"))

	require.Eventually(t, func() bool {
		return h.GetConnectionCount() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.RoomSize("s1"))
	_ = slow
}

func TestConcurrentJoinLeavePublish(t *testing.T) {
	h := NewHub(1024)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := newRegistered(h, "s1", "admins")
			for j := 0; j < 50; j++ {
				h.Publish([]byte("x"), "s1", "admins")
			}
			h.Leave(conn, "s1")
			h.Unregister(conn)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, h.GetConnectionCount())
	assert.Equal(t, 0, h.GetRoomCount())
}
