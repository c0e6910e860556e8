package domain

import "time"

// ChatSession is one guest conversation with the administrative staff.
type ChatSession struct {
	SessionID       string     `json:"id"`
	GuestID         string     `json:"guest_id"`
	GuestName       string     `json:"guest_name,omitempty"`
	LastMessageAt   time.Time  `json:"last_message_at"`
	IsActive        bool       `json:"is_active"`
	AdminLastSeenAt *time.Time `json:"admin_last_seen_at"`
	GuestLastSeenAt *time.Time `json:"guest_last_seen_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// LastSeenBy returns the last instant the given party viewed the session.
func (s ChatSession) LastSeenBy(party SenderType) *time.Time {
	if party == SenderTypeAdmin {
		return s.AdminLastSeenAt
	}
	return s.GuestLastSeenAt
}

// SessionSummary is a session row as listed in the admin console.
type SessionSummary struct {
	ChatSession
	UnreadCount int          `json:"unread_count"`
	LastMessage *MessageView `json:"last_message,omitempty"`
}

// SessionRemoved is the payload of a session_removed event. It carries no content.
type SessionRemoved struct {
	SessionID string `json:"session_id"`
}

// TypingSignal is an ephemeral presence event. It is never persisted.
type TypingSignal struct {
	SessionID  string     `json:"session_id"`
	SenderType SenderType `json:"sender_type"`
	IsTyping   bool       `json:"is_typing"`
}
