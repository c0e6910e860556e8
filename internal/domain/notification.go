package domain

import "time"

// Notification is a one-way administrative notice about a back-office event.
type Notification struct {
	NotificationID string           `json:"id"`
	Type           NotificationType `json:"type"`
	Title          string           `json:"title"`
	Body           string           `json:"body"`
	Link           string           `json:"link,omitempty"`
	IsRead         bool             `json:"is_read"`
	CreatedAt      time.Time        `json:"created_at"`
}
