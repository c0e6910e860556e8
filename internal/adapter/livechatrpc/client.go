// Package livechatrpc is the client back-office services use to raise admin notifications.
package livechatrpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/rpc/jsonrpc"
	"net/url"
	"strings"
	"time"

	"github.com/xiaot623/livechat/internal/domain"
)

var ErrNotConfigured = errors.New("livechat rpc address not configured")

type Client struct {
	addr        string
	dialTimeout time.Duration
	callTimeout time.Duration
}

func NewClient(baseURL string) *Client {
	return &Client{
		addr:        resolveRPCAddr(baseURL),
		dialTimeout: 5 * time.Second,
		callTimeout: 5 * time.Second,
	}
}

// NotifyResponse mirrors the server reply of LiveChat.Notify.
type NotifyResponse struct {
	OK           bool                 `json:"ok"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

// Notify raises an admin notification.
func (c *Client) Notify(ctx context.Context, req domain.NotifyRequest) (*domain.Notification, error) {
	if c.addr == "" {
		return nil, ErrNotConfigured
	}

	var resp NotifyResponse
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	if err := c.call(ctx, "LiveChat.Notify", &req, &resp); err != nil {
		return nil, fmt.Errorf("failed to notify livechat: %w", err)
	}
	if !resp.OK || resp.Notification == nil {
		log.Printf("WARN: livechat rpc returned ok=%v", resp.OK)
		return nil, fmt.Errorf("livechat rpc returned ok=false")
	}

	return resp.Notification, nil
}

func (c *Client) call(ctx context.Context, method string, args, reply interface{}) error {
	conn, err := net.DialTimeout("tcp", c.addr, c.dialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else if c.callTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.callTimeout))
	}

	client := jsonrpc.NewClient(conn)
	call := client.Go(method, args, reply, nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-call.Done:
		return call.Error
	}
}

func resolveRPCAddr(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		parsed, err := url.Parse(raw)
		if err == nil && parsed.Host != "" {
			return parsed.Host
		}
	}
	return raw
}
