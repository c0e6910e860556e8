package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/livechat/internal/domain"
)

// Notify creates a notification on behalf of a trusted internal caller.
func (s *Service) Notify(ctx context.Context, req domain.NotifyRequest) (*domain.Notification, error) {
	return s.notifier.Notify(ctx, domain.NotificationType(req.Type), req.Title, req.Body, req.Link)
}

func (s *Service) ListNotifications(ctx context.Context, limit int, unreadOnly bool) ([]domain.Notification, error) {
	notifications, err := s.store.ListNotifications(ctx, limit, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (s *Service) CountUnreadNotifications(ctx context.Context) (int, error) {
	count, err := s.store.CountUnreadNotifications(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead flips the read flag. Marking twice is a no-op success.
func (s *Service) MarkNotificationRead(ctx context.Context, notificationID string) (*domain.Notification, error) {
	if _, err := s.store.MarkNotificationRead(ctx, notificationID); err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	if n == nil {
		return nil, domain.ErrNotificationNotFound
	}
	return n, nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	marked, err := s.store.MarkAllNotificationsRead(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return marked, nil
}
