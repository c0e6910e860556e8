// Package ws provides WebSocket server functionality for chat clients.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/livechat/internal/auth"
	"github.com/xiaot623/livechat/internal/config"
	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/hub"
	"github.com/xiaot623/livechat/internal/protocol"
)

const signalTimeout = 5 * time.Second

// TypingRelay relays inbound typing signals.
type TypingRelay interface {
	SetTyping(ctx context.Context, sessionID string, party domain.SenderType, isTyping bool) error
}

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	typing   TypingRelay
	verifier *auth.Verifier
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, typing TypingRelay, verifier *auth.Verifier) *Server {
	return &Server{
		cfg:      cfg,
		hub:      h,
		typing:   typing,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The widget is embedded on the public site.
				return true
			},
		},
	}
}

// Handshake is the identity a connection declares when it opens.
type Handshake struct {
	SessionID string
	IsAdmin   bool
}

// ParseHandshake reads the connection-time parameters. Malformed values
// resolve to "no room" instead of failing the connection.
func (s *Server) ParseHandshake(r *http.Request) Handshake {
	q := r.URL.Query()

	var hs Handshake
	if raw := strings.TrimSpace(q.Get("sessionId")); raw != "" {
		if _, err := uuid.Parse(raw); err == nil {
			hs.SessionID = raw
		} else {
			log.Printf("WARN: ignoring malformed sessionId %q", raw)
		}
	}

	wantAdmin, err := strconv.ParseBool(strings.TrimSpace(q.Get("isAdmin")))
	if err != nil {
		wantAdmin = false
	}
	token := q.Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	hs.IsAdmin = s.verifier.IsAdmin(wantAdmin, token)
	if wantAdmin && !hs.IsAdmin {
		log.Printf("WARN: admin flag rejected for connection from %s", r.RemoteAddr)
	}
	return hs
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	hs := s.ParseHandshake(c.Request())

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	conn.SessionID = hs.SessionID
	conn.IsAdmin = hs.IsAdmin
	s.hub.Register(conn)

	s.hub.Join(conn, hs.SessionID)
	if hs.IsAdmin {
		s.hub.Join(conn, domain.AdminsRoom)
	}

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection. Leaving it releases
// every room membership of the connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	base, err := protocol.Parse(data)
	if err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case protocol.TypeTyping:
		s.handleTyping(conn, data)
	case protocol.TypePing:
		s.hub.SendJSONToConnection(conn, protocol.NewEvent(protocol.TypePong, nil))
	default:
		s.sendError(conn, protocol.ErrorCodeUnknownType, "unknown message type: "+base.Type)
	}
}

// handleTyping relays a typing signal. A guest connection may only signal as
// a guest in the session it joined.
func (s *Server) handleTyping(conn *hub.Connection, data []byte) {
	var msg protocol.TypingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "invalid typing message")
		return
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = conn.SessionID
	}
	if sessionID == "" {
		s.sendError(conn, protocol.ErrorCodeSessionRequired, "session_id is required")
		return
	}

	party, err := domain.ParseSenderType(msg.SenderType)
	if err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, err.Error())
		return
	}
	if !conn.IsAdmin && (party != domain.SenderTypeGuest || sessionID != conn.SessionID) {
		s.sendError(conn, protocol.ErrorCodeForbidden, "guests may only signal their own session")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), signalTimeout)
	defer cancel()

	if err := s.typing.SetTyping(ctx, sessionID, party, msg.IsTyping); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			s.sendError(conn, protocol.ErrorCodeSessionRequired, err.Error())
			return
		}
		log.Printf("Typing relay failed: %v", err)
		s.sendError(conn, protocol.ErrorCodeInternalError, "typing relay failed")
	}
}

// sendError sends an error message to the offending connection only.
func (s *Server) sendError(conn *hub.Connection, code, message string) {
	errMsg := protocol.NewError(code, message)
	errMsg.SessionID = conn.SessionID
	if err := s.hub.SendJSONToConnection(conn, errMsg); err != nil {
		log.Printf("WARN: failed to send error to %s: %v", conn.ID, err)
	}
}
