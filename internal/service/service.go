package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/livechat/internal/notify"
	"github.com/xiaot623/livechat/internal/repository"
	"github.com/xiaot623/livechat/internal/stream"
)

const defaultMaxMessageLength = 4000

// Service implements the chat session, message and notification operations.
// Each operation performs its store write first and then emits the matching
// realtime event; emit failures never fail the operation.
type Service struct {
	store            store.Store
	stream           *stream.Manager
	notifier         *notify.Notifier
	maxMessageLength int

	now   func() time.Time
	newID func(prefix string) string
}

func New(store store.Store, streamManager *stream.Manager, notifier *notify.Notifier, maxMessageLength int) *Service {
	if maxMessageLength <= 0 {
		maxMessageLength = defaultMaxMessageLength
	}
	return &Service{
		store:            store,
		stream:           streamManager,
		notifier:         notifier,
		maxMessageLength: maxMessageLength,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            func(prefix string) string { return prefix + uuid.New().String() },
	}
}
