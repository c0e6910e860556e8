// Package hub provides room-based fan-out for WebSocket clients.
package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const defaultSendBuffer = 256

// Connection represents a single WebSocket connection.
type Connection struct {
	ID        string
	SessionID string // session room joined at handshake, if any
	IsAdmin   bool
	Conn      *websocket.Conn
	Send      chan []byte

	rooms  map[string]struct{} // guarded by hub.mu
	closed bool                // guarded by hub.mu
	mu     sync.Mutex
}

// Hub manages all WebSocket connections and their room memberships.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Rooms maps room name to the connections currently joined
	rooms map[string]map[string]*Connection

	sendBuffer int
	mu         sync.RWMutex
}

// NewHub creates a new Hub whose connections buffer up to sendBuffer frames.
func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Hub{
		connections: make(map[string]*Connection),
		rooms:       make(map[string]map[string]*Connection),
		sendBuffer:  sendBuffer,
	}
}

// NewConnection creates a new connection. It is not registered yet.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:    uuid.New().String(),
		Conn:  ws,
		Send:  make(chan []byte, h.sendBuffer),
		rooms: make(map[string]struct{}),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID] = conn
	h.mu.Unlock()
	log.Printf("Connection registered: %s (session: %q, admin: %v)", conn.ID, conn.SessionID, conn.IsAdmin)
}

// Unregister releases every room membership of the connection and closes its
// send channel. Calling it more than once is safe.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	if conn.closed {
		h.mu.Unlock()
		return
	}
	for room := range conn.rooms {
		h.removeMemberLocked(room, conn)
	}
	delete(h.connections, conn.ID)
	conn.closed = true
	close(conn.Send)
	h.mu.Unlock()
	log.Printf("Connection unregistered: %s", conn.ID)
}

// Join adds the connection to a room. Events published before the join are never delivered to it.
func (h *Hub) Join(conn *Connection, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn.closed {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Connection)
		h.rooms[room] = members
	}
	members[conn.ID] = conn
	conn.rooms[room] = struct{}{}
}

// Leave removes the connection from a room.
func (h *Hub) Leave(conn *Connection, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeMemberLocked(room, conn)
}

func (h *Hub) removeMemberLocked(room string, conn *Connection) {
	delete(conn.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, conn.ID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// CloseRoom releases every membership of a room. Connections stay open.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	for _, conn := range members {
		delete(conn.rooms, room)
	}
	delete(h.rooms, room)
	log.Printf("Room closed: %s (%d connections released)", room, len(members))
}

// Publish delivers data once to every connection joined to at least one of the
// given rooms, and returns how many connections it was queued for. Delivery is
// best-effort: a connection whose buffer is full is dropped.
func (h *Hub) Publish(data []byte, rooms ...string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	seen := make(map[string]struct{})
	for _, room := range rooms {
		for connID, conn := range h.rooms[room] {
			if _, dup := seen[connID]; dup {
				continue
			}
			seen[connID] = struct{}{}

			select {
			case conn.Send <- data:
				delivered++
			default:
				// Buffer full, close the connection
				log.Printf("Connection %s buffer full, closing", connID)
				go h.Unregister(conn)
			}
		}
	}
	return delivered
}

// SendToConnection sends a message to a specific connection.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if conn.closed {
		return ErrConnectionClosed
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// GetRoomCount returns the number of rooms with at least one member.
func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RoomSize returns the number of connections joined to a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Rooms returns the rooms a connection is currently joined to.
func (h *Hub) Rooms(conn *Connection) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(conn.rooms))
	for room := range conn.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ErrBufferFull is returned when the send buffer is full.
var ErrBufferFull = &BufferFullError{}

// BufferFullError represents a buffer full error.
type BufferFullError struct{}

func (e *BufferFullError) Error() string {
	return "send buffer full"
}

// ErrConnectionClosed is returned when sending to an unregistered connection.
var ErrConnectionClosed = &ConnectionClosedError{}

// ConnectionClosedError represents a send to a closed connection.
type ConnectionClosedError struct{}

func (e *ConnectionClosedError) Error() string {
	return "connection closed"
}
