// Package kafka consumes back-office events and turns them into admin notifications.
package kafka

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// MessageHandler processes one consumed record. A nil error marks it consumed.
type MessageHandler interface {
	Handle(ctx context.Context, message *sarama.ConsumerMessage) error
}

const (
	defaultRetryBackoff = 500 * time.Millisecond
	maxRetryBackoff     = 30 * time.Second
)

type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	topics        []string
	handler       MessageHandler
	retryBackoff  time.Duration
}

// NewConfig returns the consumer group configuration used by the service.
func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	return cfg
}

func NewConsumer(brokers []string, groupID string, topics []string, config *sarama.Config, handler MessageHandler) (*Consumer, error) {
	if config == nil {
		config = NewConfig()
	}
	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		consumerGroup: consumerGroup,
		topics:        topics,
		handler:       handler,
		retryBackoff:  defaultRetryBackoff,
	}, nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim handles records in offset order. A record is marked only after
// it was handled; a failing record is retried until it succeeds or the session
// ends, so no later offset is committed past it.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if !c.handleWithRetry(session.Context(), message) {
			return nil
		}
		session.MarkMessage(message, "")
	}
	return nil
}

// handleWithRetry reports false when ctx ended before the record was handled.
func (c *Consumer) handleWithRetry(ctx context.Context, message *sarama.ConsumerMessage) bool {
	backoff := c.retryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	for {
		err := c.handler.Handle(ctx, message)
		if err == nil {
			return true
		}
		log.Printf("WARN: failed to process message %s/%d@%d, retrying in %s: %v", message.Topic, message.Partition, message.Offset, backoff, err)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}

// Start consumes until ctx is cancelled or the group is closed.
func (c *Consumer) Start(ctx context.Context) error {
	go func() {
		for err := range c.consumerGroup.Errors() {
			log.Printf("WARN: kafka consumer error: %v", err)
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.consumerGroup.Consume(ctx, c.topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			log.Printf("WARN: kafka consume failed: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumerGroup.Close()
}
