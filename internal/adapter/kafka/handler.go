package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/IBM/sarama"

	"github.com/xiaot623/livechat/internal/domain"
)

// BackofficeEvent is published by the comment, contact and application flows
// once their own write has committed.
type BackofficeEvent struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Link  string `json:"link,omitempty"`
}

// Notifier creates notifications.
type Notifier interface {
	Notify(ctx context.Context, req domain.NotifyRequest) (*domain.Notification, error)
}

// NotificationHandler turns back-office events into admin notifications.
type NotificationHandler struct {
	notifier Notifier
}

func NewNotificationHandler(notifier Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

// Handle notifies for one event. Malformed or invalid events are logged and
// skipped. Persistence failures are returned, and the consumer retries the
// record before moving past it.
func (h *NotificationHandler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event BackofficeEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		log.Printf("WARN: skipping malformed event at %s/%d@%d: %v", message.Topic, message.Partition, message.Offset, err)
		return nil
	}

	n, err := h.notifier.Notify(ctx, domain.NotifyRequest{
		Type:  event.Type,
		Title: event.Title,
		Body:  event.Body,
		Link:  event.Link,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidNotificationType) || errors.Is(err, domain.ErrTitleRequired) {
			log.Printf("WARN: skipping invalid event at %s/%d@%d: %v", message.Topic, message.Partition, message.Offset, err)
			return nil
		}
		return err
	}

	log.Printf("Notification %s created from %s/%d@%d", n.NotificationID, message.Topic, message.Partition, message.Offset)
	return nil
}
