// Package domain defines the core domain models for the live chat service.
package domain

import "strings"

// SenderType identifies which party authored a message or signal.
type SenderType string

const (
	SenderTypeGuest SenderType = "guest"
	SenderTypeAdmin SenderType = "admin"
)

// Valid reports whether t is a known sender type.
func (t SenderType) Valid() bool {
	return t == SenderTypeGuest || t == SenderTypeAdmin
}

// ParseSenderType normalizes raw input into a SenderType.
func ParseSenderType(raw string) (SenderType, error) {
	t := SenderType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", ErrInvalidSenderType
	}
	return t, nil
}

// NotificationType tags an administrative notification with its origin.
type NotificationType string

const (
	NotificationTypeComment     NotificationType = "comment"
	NotificationTypeContact     NotificationType = "contact"
	NotificationTypeApplication NotificationType = "application"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeComment, NotificationTypeContact, NotificationTypeApplication:
		return true
	}
	return false
}

// EventType is the name of an outbound realtime event.
type EventType string

const (
	EventTypeMessage         EventType = "message"
	EventTypeMessageUpdate   EventType = "message_update"
	EventTypeSessionUpdate   EventType = "session_update"
	EventTypeSessionRemoved  EventType = "session_removed"
	EventTypeTyping          EventType = "typing"
	EventTypeNewNotification EventType = "new-notification"
)

// AdminsRoom is the shared room every admin console joins.
const AdminsRoom = "admins"

// DeletedMessagePlaceholder is shown in place of removed message content.
const DeletedMessagePlaceholder = "Tin nhắn đã bị gỡ"
