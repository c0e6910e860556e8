// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"time"

	"github.com/xiaot623/livechat/internal/domain"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Store defines the interface for data persistence.
// Lookups return nil, nil when the row does not exist.
type Store interface {
	// Session operations
	CreateSessionIfAbsent(ctx context.Context, session *domain.ChatSession) (*domain.ChatSession, bool, error)
	GetSession(ctx context.Context, sessionID string) (*domain.ChatSession, error)
	GetSessionByGuestID(ctx context.Context, guestID string) (*domain.ChatSession, error)
	ListSessions(ctx context.Context, limit int, activeOnly bool) ([]domain.SessionSummary, error)
	TouchSessionLastMessage(ctx context.Context, sessionID string, at time.Time) error
	UpdateSessionSeen(ctx context.Context, sessionID string, party domain.SenderType, at time.Time) error
	UpdateSessionProfile(ctx context.Context, sessionID string, guestName *string, active *bool, at time.Time) error
	DeleteSession(ctx context.Context, sessionID string) (bool, error)

	// Message operations
	CreateMessage(ctx context.Context, message *domain.ChatMessage) error
	GetMessage(ctx context.Context, messageID string) (*domain.ChatMessage, error)
	GetMessagesByIDs(ctx context.Context, messageIDs []string) (map[string]domain.ChatMessage, error)
	GetLastMessage(ctx context.Context, sessionID string) (*domain.ChatMessage, error)
	ListMessages(ctx context.Context, sessionID string, limit int, before string) ([]domain.ChatMessage, error)
	SoftDeleteMessage(ctx context.Context, messageID string) (bool, error)

	// Notification operations
	CreateNotification(ctx context.Context, notification *domain.Notification) error
	GetNotification(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListNotifications(ctx context.Context, limit int, unreadOnly bool) ([]domain.Notification, error)
	CountUnreadNotifications(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, notificationID string) (bool, error)
	MarkAllNotificationsRead(ctx context.Context) (int64, error)

	// Lifecycle
	Close() error
}

// NormalizeLimit clamps a requested page size into [1, MaxPageSize].
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
