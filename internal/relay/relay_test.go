package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/hub"
)

func newLocal(t *testing.T) (*hub.Hub, *hub.Connection) {
	t.Helper()
	h := hub.NewHub(8)
	conn := h.NewConnection(nil)
	h.Register(conn)
	h.Join(conn, "s1")
	h.Join(conn, domain.AdminsRoom)
	return h, conn
}

// unreachable points at a closed port so every command fails fast.
func unreachable(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestApplyPublishDeliversOnceAcrossRooms(t *testing.T) {
	h, conn := newLocal(t)
	r := NewWithClient(unreachable(t), "livechat:rooms", h)

	payload, err := json.Marshal(envelope{Origin: "other", Op: opPublish, Rooms: []string{"s1", domain.AdminsRoom}, Data: []byte(`{"type":"message"}`)})
	require.NoError(t, err)
	r.apply(payload)

	require.Len(t, conn.Send, 1)
	assert.JSONEq(t, `{"type":"message"}`, string(<-conn.Send))
}

func TestApplyClose(t *testing.T) {
	h, conn := newLocal(t)
	r := NewWithClient(unreachable(t), "livechat:rooms", h)

	payload, err := json.Marshal(envelope{Op: opClose, Rooms: []string{"s1"}})
	require.NoError(t, err)
	r.apply(payload)

	assert.Equal(t, 0, h.RoomSize("s1"))
	assert.ElementsMatch(t, []string{domain.AdminsRoom}, h.Rooms(conn))
}

func TestApplyIgnoresGarbage(t *testing.T) {
	h, conn := newLocal(t)
	r := NewWithClient(unreachable(t), "livechat:rooms", h)

	r.apply([]byte("not json"))
	r.apply([]byte(`{"op":"explode","rooms":["s1"]}`))

	assert.Len(t, conn.Send, 0)
	assert.Equal(t, 1, h.RoomSize("s1"))
}

func TestPublishFallsBackToLocal(t *testing.T) {
	h, conn := newLocal(t)
	r := NewWithClient(unreachable(t), "livechat:rooms", h)

	r.Publish([]byte(`{"type":"typing"}`), "s1")
	assert.Len(t, conn.Send, 1)

	r.CloseRoom("s1")
	assert.Equal(t, 0, h.RoomSize("s1"))
}

func startRelay(t *testing.T, mr *miniredis.Miniredis, h *hub.Hub) *Relay {
	t.Helper()
	r, err := New(context.Background(), Options{Addr: mr.Addr(), Channel: "livechat:rooms"}, h)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	r.retryDelay = 10 * time.Millisecond
	return r
}

func TestPublishBeforeSubscribeDeliversLocally(t *testing.T) {
	mr := miniredis.RunT(t)
	h, conn := newLocal(t)
	r := startRelay(t, mr, h)

	assert.Equal(t, 1, r.Publish([]byte(`{"type":"message"}`), "s1"))
	require.Len(t, conn.Send, 1)

	r.CloseRoom("s1")
	assert.Equal(t, 0, h.RoomSize("s1"))
}

func TestPublishThroughSubscriptionDeliversOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	h, conn := newLocal(t)
	r := startRelay(t, mr, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, r.subscribed.Load, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, r.Publish([]byte(`{"type":"message"}`), "s1", domain.AdminsRoom))
	require.Eventually(t, func() bool { return len(conn.Send) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, conn.Send, 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.False(t, r.subscribed.Load())
}

func TestRunRetriesUntilRedisIsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	h, conn := newLocal(t)
	r := startRelay(t, mr, h)

	mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Publish([]byte(`{"type":"typing"}`), "s1")
	require.Len(t, conn.Send, 1)
	<-conn.Send

	require.NoError(t, mr.Restart())
	require.Eventually(t, r.subscribed.Load, 5*time.Second, 10*time.Millisecond)

	r.Publish([]byte(`{"type":"typing"}`), "s1")
	require.Eventually(t, func() bool { return len(conn.Send) == 1 }, time.Second, 5*time.Millisecond)
}
