// Package stream decides which rooms each chat event reaches and formats its frame.
package stream

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/protocol"
)

// Broadcaster is the room transport events are published on. Publish returns
// the number of receivers: connections for the hub, instances for the relay.
type Broadcaster interface {
	Publish(data []byte, rooms ...string) int
	CloseRoom(room string)
}

// Manager emits chat events. Every method is best-effort: with no broadcaster
// attached, or on an encoding failure, it logs and returns.
//
// Once a session is removed, no further event scoped to it is published.
// Session-scoped publishes hold mu for reading, removal takes it for writing,
// so a publish either completes before session_removed or is dropped.
type Manager struct {
	mu          sync.RWMutex
	broadcaster Broadcaster
	removed     map[string]struct{}
}

// NewManager creates a manager. b may be nil and attached later.
func NewManager(b Broadcaster) *Manager {
	return &Manager{broadcaster: b, removed: make(map[string]struct{})}
}

// SetBroadcaster attaches or detaches (nil) the transport.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.mu.Lock()
	m.broadcaster = b
	m.mu.Unlock()
}

// EmitMessage announces a newly created message. Guest messages also reach the admins room.
func (m *Manager) EmitMessage(msg domain.MessageView) {
	m.emitScoped(msg.SessionID, domain.EventTypeMessage, msg, roomsFor(msg.SessionID, msg.SenderType)...)
}

// EmitMessageUpdate announces a delete-flag change.
func (m *Manager) EmitMessageUpdate(msg domain.MessageView) {
	m.emitScoped(msg.SessionID, domain.EventTypeMessageUpdate, msg, msg.SessionID, domain.AdminsRoom)
}

// EmitSessionUpdate announces a changed session row.
func (m *Manager) EmitSessionUpdate(session domain.ChatSession) {
	m.emitScoped(session.SessionID, domain.EventTypeSessionUpdate, session, session.SessionID, domain.AdminsRoom)
}

// EmitSessionRemoved announces a hard-deleted session, then closes its room so
// nothing else for it can be delivered.
func (m *Manager) EmitSessionRemoved(sessionID string) {
	m.mu.Lock()
	m.removed[sessionID] = struct{}{}
	b := m.broadcaster
	m.mu.Unlock()

	if m.publish(b, domain.EventTypeSessionRemoved, domain.SessionRemoved{SessionID: sessionID}, sessionID, domain.AdminsRoom) {
		b.CloseRoom(sessionID)
	}
}

// EmitTyping relays a typing signal. Guest signals also reach the admins room.
func (m *Manager) EmitTyping(signal domain.TypingSignal) {
	m.emitScoped(signal.SessionID, domain.EventTypeTyping, signal, roomsFor(signal.SessionID, signal.SenderType)...)
}

func roomsFor(sessionID string, sender domain.SenderType) []string {
	if sender == domain.SenderTypeGuest {
		return []string{sessionID, domain.AdminsRoom}
	}
	return []string{sessionID}
}

func (m *Manager) emitScoped(sessionID string, eventType domain.EventType, payload interface{}, rooms ...string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.removed[sessionID]; ok {
		log.Printf("WARN: session %s was removed, dropping %s event", sessionID, eventType)
		return
	}
	m.publish(m.broadcaster, eventType, payload, rooms...)
}

// publish reports whether a broadcaster was attached.
func (m *Manager) publish(b Broadcaster, eventType domain.EventType, payload interface{}, rooms ...string) bool {
	if b == nil {
		log.Printf("WARN: no broadcaster attached, dropping %s event for rooms %v", eventType, rooms)
		return false
	}
	data, err := json.Marshal(protocol.NewEvent(string(eventType), payload))
	if err != nil {
		log.Printf("WARN: failed to encode %s event: %v", eventType, err)
		return true
	}
	b.Publish(data, rooms...)
	return true
}
