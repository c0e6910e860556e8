package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) markedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func newClaim(offsets ...int64) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(offsets))
	for _, offset := range offsets {
		ch <- &sarama.ConsumerMessage{Topic: "backoffice.events", Offset: offset}
	}
	close(ch)
	return &fakeClaim{messages: ch}
}

type handlerFunc func(ctx context.Context, message *sarama.ConsumerMessage) error

func (f handlerFunc) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	return f(ctx, message)
}

func TestConsumeClaimRetriesFailedRecordBeforeMovingOn(t *testing.T) {
	var handled []int64
	failures := 2
	c := &Consumer{
		retryBackoff: time.Millisecond,
		handler: handlerFunc(func(_ context.Context, message *sarama.ConsumerMessage) error {
			handled = append(handled, message.Offset)
			if message.Offset == 7 && failures > 0 {
				failures--
				return errors.New("database is locked")
			}
			return nil
		}),
	}
	session := &fakeSession{ctx: context.Background()}

	require.NoError(t, c.ConsumeClaim(session, newClaim(7, 8)))

	assert.Equal(t, []int64{7, 7, 7, 8}, handled)
	assert.Equal(t, []int64{7, 8}, session.markedOffsets())
}

func TestConsumeClaimStopsWithoutMarkingWhenSessionEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	c := &Consumer{
		retryBackoff: time.Millisecond,
		handler: handlerFunc(func(context.Context, *sarama.ConsumerMessage) error {
			attempts++
			if attempts == 3 {
				cancel()
			}
			return errors.New("database is locked")
		}),
	}
	session := &fakeSession{ctx: ctx}

	done := make(chan error, 1)
	go func() { done <- c.ConsumeClaim(session, newClaim(7, 8)) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not return after the session ended")
	}
	assert.Empty(t, session.markedOffsets())
}
