// Package notify persists back-office notifications and pushes them to the admins room.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/protocol"
	"github.com/xiaot623/livechat/internal/stream"
)

// Store is the persistence the notifier needs.
type Store interface {
	CreateNotification(ctx context.Context, notification *domain.Notification) error
}

// Notifier creates notifications for trusted internal callers.
type Notifier struct {
	store       Store
	broadcaster stream.Broadcaster
	now         func() time.Time
	newID       func() string
}

// New creates a notifier. broadcaster may be nil, in which case notifications are only persisted.
func New(store Store, broadcaster stream.Broadcaster) *Notifier {
	return &Notifier{
		store:       store,
		broadcaster: broadcaster,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return "ntf_" + uuid.New().String() },
	}
}

// Notify validates and persists a notification, then publishes a
// new-notification event to the admins room. The returned error reflects the
// persistence step only.
func (n *Notifier) Notify(ctx context.Context, typ domain.NotificationType, title, body, link string) (*domain.Notification, error) {
	if !typ.Valid() {
		return nil, domain.ErrInvalidNotificationType
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.ErrTitleRequired
	}

	notification := &domain.Notification{
		NotificationID: n.newID(),
		Type:           typ,
		Title:          title,
		Body:           body,
		Link:           strings.TrimSpace(link),
		CreatedAt:      n.now(),
	}
	if err := n.store.CreateNotification(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	n.publish(notification)
	return notification, nil
}

func (n *Notifier) publish(notification *domain.Notification) {
	if n.broadcaster == nil {
		log.Printf("WARN: no broadcaster attached, notification %s not pushed", notification.NotificationID)
		return
	}
	data, err := json.Marshal(protocol.NewEvent(string(domain.EventTypeNewNotification), notification))
	if err != nil {
		log.Printf("WARN: failed to encode notification %s: %v", notification.NotificationID, err)
		return
	}
	receivers := n.broadcaster.Publish(data, domain.AdminsRoom)
	log.Printf("Notification %s (%s) published to the admins room (%d receivers)", notification.NotificationID, notification.Type, receivers)
}
