// Package rpc exposes notification intake over JSON-RPC for back-office services.
package rpc

import (
	"context"
	"errors"
	"log"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/xiaot623/livechat/internal/domain"
)

const callTimeout = 10 * time.Second

// Notifier creates notifications.
type Notifier interface {
	Notify(ctx context.Context, req domain.NotifyRequest) (*domain.Notification, error)
}

// Server exposes live chat RPC endpoints.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	done      chan struct{}
}

// NewServer creates a new RPC server.
func NewServer(notifier Notifier) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{notifier: notifier}
	if err := rpcServer.RegisterName("LiveChat", handler); err != nil {
		return nil, err
	}

	return &Server{
		rpcServer: rpcServer,
		done:      make(chan struct{}),
	}, nil
}

// Listen binds the server to addr without accepting connections yet.
func (s *Server) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.listener = ln
	return ln.Addr(), nil
}

// Serve accepts RPC connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			log.Printf("RPC accept error: %v", err)
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	if _, err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements LiveChat RPC methods.
type Handler struct {
	notifier Notifier
}

// NotifyResponse is the reply of LiveChat.Notify.
type NotifyResponse struct {
	OK           bool                 `json:"ok"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

// Notify persists a notification and pushes it to connected admins.
func (h *Handler) Notify(req *domain.NotifyRequest, resp *NotifyResponse) error {
	if req == nil {
		return errors.New("notify request is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	n, err := h.notifier.Notify(ctx, *req)
	if err != nil {
		return err
	}

	log.Printf("Notification received over RPC: id=%s type=%s", n.NotificationID, n.Type)
	if resp != nil {
		resp.OK = true
		resp.Notification = n
	}
	return nil
}
