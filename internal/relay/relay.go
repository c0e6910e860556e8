// Package relay fans room operations out to every service instance through Redis pub/sub.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	opPublish = "publish"
	opClose   = "close"
)

// Local is the in-process room transport each instance applies relayed operations to.
type Local interface {
	Publish(data []byte, rooms ...string) int
	CloseRoom(room string)
}

// envelope is one relayed room operation.
type envelope struct {
	Origin string   `json:"origin"`
	Op     string   `json:"op"`
	Rooms  []string `json:"rooms"`
	Data   []byte   `json:"data,omitempty"`
}

// Relay publishes room operations on a Redis channel and applies the ones it
// receives to the local hub, so connections on any instance observe them.
// Until its own subscription is live, operations are also applied locally.
type Relay struct {
	client     *redis.Client
	channel    string
	local      Local
	origin     string
	retryDelay time.Duration
	subscribed atomic.Bool
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, opts Options, local Local) (*Relay, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection test failed: %w", err)
	}

	return NewWithClient(client, opts.Channel, local), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, channel string, local Local) *Relay {
	return &Relay{
		client:     client,
		channel:    channel,
		local:      local,
		origin:     uuid.New().String(),
		retryDelay: time.Second,
	}
}

// Publish relays data to the rooms on every instance. It returns the number
// of subscribed instances, not connections. When this instance is not
// subscribed, or Redis is unreachable, the event is delivered locally.
func (r *Relay) Publish(data []byte, rooms ...string) int {
	n, err := r.send(envelope{Op: opPublish, Rooms: rooms, Data: data})
	switch {
	case err != nil:
		log.Printf("WARN: redis relay publish failed, delivering locally: %v", err)
	case !r.subscribed.Load() || n == 0:
		log.Printf("WARN: redis relay not subscribed on this instance, delivering locally")
	default:
		return n
	}
	r.local.Publish(data, rooms...)
	return n + 1
}

// CloseRoom releases the room on every instance.
func (r *Relay) CloseRoom(room string) {
	n, err := r.send(envelope{Op: opClose, Rooms: []string{room}})
	switch {
	case err != nil:
		log.Printf("WARN: redis relay close failed, closing locally: %v", err)
	case !r.subscribed.Load() || n == 0:
		log.Printf("WARN: redis relay not subscribed on this instance, closing locally")
	default:
		return
	}
	r.local.CloseRoom(room)
}

func (r *Relay) send(env envelope) (int, error) {
	env.Origin = r.origin
	payload, err := json.Marshal(env)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	n, err := r.client.Publish(ctx, r.channel, payload).Result()
	return int(n), err
}

// Run subscribes to the channel and applies relayed operations until ctx is
// done. A failed subscription is retried.
func (r *Relay) Run(ctx context.Context) error {
	for {
		err := r.subscribe(ctx)
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("WARN: redis relay subscription lost, retrying in %s: %v", r.retryDelay, err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.retryDelay):
		}
	}
}

func (r *Relay) subscribe(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.subscribed.Store(true)
	defer r.subscribed.Store(false)
	log.Printf("Redis relay subscribed to %s", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("channel %s closed", r.channel)
			}
			r.apply([]byte(msg.Payload))
		}
	}
}

// apply executes one relayed operation against the local hub.
func (r *Relay) apply(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Printf("WARN: dropping malformed relay payload: %v", err)
		return
	}

	switch env.Op {
	case opPublish:
		r.local.Publish(env.Data, env.Rooms...)
	case opClose:
		for _, room := range env.Rooms {
			r.local.CloseRoom(room)
		}
	default:
		log.Printf("WARN: dropping relay op %q from %s", env.Op, env.Origin)
	}
}

// Close closes the Redis client.
func (r *Relay) Close() error {
	return r.client.Close()
}
