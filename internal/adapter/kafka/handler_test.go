package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/notify"
	"github.com/xiaot623/livechat/tests/helpers"
)

type notifierFunc func(ctx context.Context, req domain.NotifyRequest) (*domain.Notification, error)

func (f notifierFunc) Notify(ctx context.Context, req domain.NotifyRequest) (*domain.Notification, error) {
	return f(ctx, req)
}

func record(value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "backoffice.events", Partition: 0, Offset: 7, Value: []byte(value)}
}

func TestHandleCreatesNotification(t *testing.T) {
	db := helpers.NewTestSQLiteStore(t)
	n := notify.New(db, nil)
	h := NewNotificationHandler(notifierFunc(func(ctx context.Context, req domain.NotifyRequest) (*domain.Notification, error) {
		return n.Notify(ctx, domain.NotificationType(req.Type), req.Title, req.Body, req.Link)
	}))

	err := h.Handle(context.Background(), record(`{"type":"application","title":"New application","body":"Backend engineer","link":"/admin/jobs/4"}`))
	require.NoError(t, err)

	count, err := db.CountUnreadNotifications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandleSkipsBadEvents(t *testing.T) {
	calls := 0
	h := NewNotificationHandler(notifierFunc(func(context.Context, domain.NotifyRequest) (*domain.Notification, error) {
		calls++
		return nil, domain.ErrInvalidNotificationType
	}))

	assert.NoError(t, h.Handle(context.Background(), record(`{`)))
	assert.Equal(t, 0, calls)

	assert.NoError(t, h.Handle(context.Background(), record(`{"type":"order","title":"x"}`)))
	assert.Equal(t, 1, calls)
}

func TestHandleReturnsPersistenceErrors(t *testing.T) {
	h := NewNotificationHandler(notifierFunc(func(context.Context, domain.NotifyRequest) (*domain.Notification, error) {
		return nil, errors.New("database is locked")
	}))

	assert.Error(t, h.Handle(context.Background(), record(`{"type":"comment","title":"x"}`)))
}
