// Package protocol defines the WebSocket frames exchanged between chat clients and the server.
package protocol

import (
	"encoding/json"
	"time"
)

// Message types from client to server
const (
	TypeTyping = "typing"
	TypePing   = "ping"
)

// Message types from server to client only. Event frames reuse the event name as type.
const (
	TypePong  = "pong"
	TypeError = "error"
)

// Event is an outbound frame. Data carries the event payload.
type Event struct {
	Type string      `json:"type"`
	Ts   int64       `json:"ts"`
	Data interface{} `json:"data,omitempty"`
}

// NewEvent builds an outbound frame stamped with the current time.
func NewEvent(eventType string, data interface{}) Event {
	return Event{Type: eventType, Ts: time.Now().UnixMilli(), Data: data}
}

// BaseMessage contains common fields for all inbound messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// TypingMessage is sent by a client while its user composes a message.
type TypingMessage struct {
	BaseMessage
	SenderType string `json:"sender_type"`
	IsTyping   bool   `json:"is_typing"`
}

// ErrorMessage is sent to a single connection when one of its frames is rejected.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError builds an error frame.
func NewError(code, message string) ErrorMessage {
	return ErrorMessage{
		BaseMessage: BaseMessage{Type: TypeError, Ts: time.Now().UnixMilli()},
		Code:        code,
		Message:     message,
	}
}

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeUnknownType     = "unknown_type"
	ErrorCodeForbidden       = "forbidden"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeInternalError   = "internal_error"
)

// Parse decodes the envelope of an inbound frame so it can be dispatched by type.
func Parse(data []byte) (BaseMessage, error) {
	var base BaseMessage
	err := json.Unmarshal(data, &base)
	return base, err
}
