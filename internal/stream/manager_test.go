package stream

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/hub"
)

type published struct {
	frame map[string]json.RawMessage
	rooms []string
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	sent   []published
	closed []string
}

func (f *fakeBroadcaster) Publish(data []byte, rooms ...string) int {
	var frame map[string]json.RawMessage
	_ = json.Unmarshal(data, &frame)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, published{frame: frame, rooms: rooms})
	return len(rooms)
}

func (f *fakeBroadcaster) CloseRoom(room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, room)
}

func (f *fakeBroadcaster) last(t *testing.T) published {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func eventType(p published) string {
	var s string
	_ = json.Unmarshal(p.frame["type"], &s)
	return s
}

func guestMessage() domain.MessageView {
	return domain.MessageView{ChatMessage: domain.ChatMessage{
		MessageID: "m1", SessionID: "s1", Content: "Xin chào", SenderType: domain.SenderTypeGuest, CreatedAt: time.Now(),
	}}
}

func TestEmitMessageRooms(t *testing.T) {
	fb := &fakeBroadcaster{}
	m := NewManager(fb)

	m.EmitMessage(guestMessage())
	p := fb.last(t)
	assert.Equal(t, "message", eventType(p))
	assert.Equal(t, []string{"s1", domain.AdminsRoom}, p.rooms)

	adminMsg := guestMessage()
	adminMsg.SenderType = domain.SenderTypeAdmin
	m.EmitMessage(adminMsg)
	assert.Equal(t, []string{"s1"}, fb.last(t).rooms)
}

func TestEmitTypingRooms(t *testing.T) {
	fb := &fakeBroadcaster{}
	m := NewManager(fb)

	m.EmitTyping(domain.TypingSignal{SessionID: "s1", SenderType: domain.SenderTypeGuest, IsTyping: true})
	assert.Equal(t, []string{"s1", domain.AdminsRoom}, fb.last(t).rooms)

	m.EmitTyping(domain.TypingSignal{SessionID: "s1", SenderType: domain.SenderTypeAdmin, IsTyping: false})
	p := fb.last(t)
	assert.Equal(t, "typing", eventType(p))
	assert.Equal(t, []string{"s1"}, p.rooms)
}

func TestEmitUpdatesReachBothRooms(t *testing.T) {
	fb := &fakeBroadcaster{}
	m := NewManager(fb)

	msg := guestMessage()
	msg.SenderType = domain.SenderTypeAdmin
	msg.IsDeleted = true
	msg.Content = ""
	m.EmitMessageUpdate(msg)
	assert.Equal(t, "message_update", eventType(fb.last(t)))
	assert.Equal(t, []string{"s1", domain.AdminsRoom}, fb.last(t).rooms)

	m.EmitSessionUpdate(domain.ChatSession{SessionID: "s1", IsActive: true})
	assert.Equal(t, "session_update", eventType(fb.last(t)))
	assert.Equal(t, []string{"s1", domain.AdminsRoom}, fb.last(t).rooms)
}

func TestEmitSessionRemovedCarriesOnlyID(t *testing.T) {
	fb := &fakeBroadcaster{}
	m := NewManager(fb)

	m.EmitSessionRemoved("s1")

	p := fb.last(t)
	assert.Equal(t, "session_removed", eventType(p))
	assert.Equal(t, []string{"s1", domain.AdminsRoom}, p.rooms)
	assert.JSONEq(t, `{"session_id":"s1"}`, string(p.frame["data"]))
	assert.Equal(t, []string{"s1"}, fb.closed)
}

func TestEmitAfterSessionRemovedIsDropped(t *testing.T) {
	fb := &fakeBroadcaster{}
	m := NewManager(fb)

	m.EmitSessionRemoved("s1")
	m.EmitMessage(guestMessage())
	m.EmitTyping(domain.TypingSignal{SessionID: "s1", SenderType: domain.SenderTypeGuest, IsTyping: true})
	m.EmitSessionUpdate(domain.ChatSession{SessionID: "s1"})

	require.Len(t, fb.sent, 1)
	assert.Equal(t, "session_removed", eventType(fb.sent[0]))

	other := guestMessage()
	other.SessionID = "s2"
	m.EmitMessage(other)
	assert.Len(t, fb.sent, 2)
}

func TestConcurrentEmitNeverFollowsSessionRemoved(t *testing.T) {
	fb := &fakeBroadcaster{}
	m := NewManager(fb)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.EmitMessage(guestMessage())
		}()
	}
	m.EmitSessionRemoved("s1")
	wg.Wait()

	fb.mu.Lock()
	defer fb.mu.Unlock()
	removedAt := -1
	for i, p := range fb.sent {
		if eventType(p) == "session_removed" {
			removedAt = i
		}
	}
	require.NotEqual(t, -1, removedAt)
	assert.Equal(t, len(fb.sent)-1, removedAt)
}

func TestEmitWithoutBroadcasterIsNoop(t *testing.T) {
	m := NewManager(nil)
	assert.NotPanics(t, func() {
		m.EmitMessage(guestMessage())
		m.EmitSessionRemoved("s2")
	})

	fb := &fakeBroadcaster{}
	m.SetBroadcaster(fb)
	m.EmitMessage(guestMessage())
	assert.Len(t, fb.sent, 1)

	m.SetBroadcaster(nil)
	m.EmitMessage(guestMessage())
	assert.Len(t, fb.sent, 1)
}

func TestGuestMessageObservedOnceByAdminViewingSession(t *testing.T) {
	h := hub.NewHub(8)
	m := NewManager(h)

	viewing := h.NewConnection(nil)
	h.Register(viewing)
	h.Join(viewing, "s1")
	h.Join(viewing, domain.AdminsRoom)

	guest := h.NewConnection(nil)
	h.Register(guest)
	h.Join(guest, "s1")

	m.EmitMessage(guestMessage())

	assert.Len(t, viewing.Send, 1)
	assert.Len(t, guest.Send, 1)

	m.EmitSessionRemoved("s1")
	assert.Len(t, viewing.Send, 2)
	assert.Len(t, guest.Send, 2)

	m.EmitTyping(domain.TypingSignal{SessionID: "s1", SenderType: domain.SenderTypeAdmin, IsTyping: true})
	assert.Len(t, guest.Send, 2, "closed session room must not deliver")
}
