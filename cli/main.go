// Package main provides a simple CLI client for the live chat service.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/livechat/internal/adapter/livechatrpc"
	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/protocol"
)

// Client talks to the chat API as a guest or an admin.
type Client struct {
	baseURL   string
	token     string
	admin     bool
	sessionID string
	http      *http.Client
	conn      *websocket.Conn
	done      chan struct{}
}

func (c *Client) sender() domain.SenderType {
	if c.admin {
		return domain.SenderTypeAdmin
	}
	return domain.SenderTypeGuest
}

func (c *Client) do(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.admin {
		req.Header.Set("X-Chat-Role", "admin")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, errResp["error"])
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// OpenSession creates or resumes the guest session.
func (c *Client) OpenSession(guestID, name string) error {
	var session domain.ChatSession
	req := domain.CreateSessionRequest{GuestID: guestID, GuestName: name}
	if err := c.do(http.MethodPost, "/v1/chat/sessions", req, &session); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	c.sessionID = session.SessionID
	return nil
}

// Connect opens the realtime connection.
func (c *Client) Connect() error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"
	q := url.Values{}
	if c.sessionID != "" {
		q.Set("sessionId", c.sessionID)
	}
	if c.admin {
		q.Set("isAdmin", "true")
		if c.token != "" {
			q.Set("token", c.token)
		}
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.conn = conn
	return nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) Send(content string) error {
	req := domain.PostMessageRequest{Content: content, SenderType: string(c.sender())}
	return c.do(http.MethodPost, "/v1/chat/sessions/"+c.sessionID+"/messages", req, nil)
}

func (c *Client) Seen() error {
	req := domain.SeenRequest{SenderType: string(c.sender())}
	return c.do(http.MethodPost, "/v1/chat/sessions/"+c.sessionID+"/seen", req, nil)
}

// Typing sends a typing frame over the realtime connection.
func (c *Client) Typing(isTyping bool) error {
	msg := protocol.TypingMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeTyping,
			Ts:        time.Now().UnixMilli(),
			SessionID: c.sessionID,
		},
		SenderType: string(c.sender()),
		IsTyping:   isTyping,
	}
	return c.conn.WriteJSON(msg)
}

// ReadMessages reads and prints frames from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			var base protocol.BaseMessage
			if err := json.Unmarshal(data, &base); err != nil {
				log.Printf("Unmarshal error: %v", err)
				continue
			}

			// Pretty print the message
			var prettyJSON map[string]interface{}
			json.Unmarshal(data, &prettyJSON)
			formatted, _ := json.MarshalIndent(prettyJSON, "", "  ")
			fmt.Printf("\n[%s] Received:\n%s\n", base.Type, string(formatted))
		}
	}
}

func runNotify(addr, typ, title, body, link string) {
	client := livechatrpc.NewClient(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := client.Notify(ctx, domain.NotifyRequest{Type: typ, Title: title, Body: body, Link: link})
	if err != nil {
		log.Fatalf("Notify failed: %v", err)
	}
	fmt.Printf("Notification %s created at %s\n", n.NotificationID, n.CreatedAt.Format(time.RFC3339))
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Chat API base URL")
	guestID := flag.String("guest", "", "Guest identifier (guest mode)")
	name := flag.String("name", "", "Guest display name")
	admin := flag.Bool("admin", false, "Connect as admin")
	token := flag.String("token", "", "Admin bearer token")
	sessionID := flag.String("session", "", "Session to view (admin mode)")

	notifyMode := flag.Bool("notify", false, "Send a notification over RPC and exit")
	rpcAddr := flag.String("rpc", "localhost:8082", "RPC address for -notify")
	notifyType := flag.String("type", "comment", "Notification type")
	title := flag.String("title", "", "Notification title")
	body := flag.String("body", "", "Notification body")
	link := flag.String("link", "", "Notification link")
	flag.Parse()

	log.SetFlags(log.Ltime)

	if *notifyMode {
		runNotify(*rpcAddr, *notifyType, *title, *body, *link)
		return
	}

	client := &Client{
		baseURL:   strings.TrimRight(*server, "/"),
		token:     *token,
		admin:     *admin,
		sessionID: *sessionID,
		http:      &http.Client{Timeout: 10 * time.Second},
		done:      make(chan struct{}),
	}

	if !client.admin {
		if *guestID == "" {
			log.Fatalf("-guest is required in guest mode")
		}
		if err := client.OpenSession(*guestID, *name); err != nil {
			log.Fatalf("Failed to open session: %v", err)
		}
	}

	fmt.Printf("Connecting to %s...\n", client.baseURL)
	if err := client.Connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if client.sessionID != "" {
		fmt.Printf("Session: %s\n", client.sessionID)
	}
	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /typing, /stop, /seen, /quit")
	fmt.Println()

	// Start reading messages in background
	go client.ReadMessages()

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// Read user input
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			var err error
			switch input {
			case "/quit":
				fmt.Println("Bye!")
				return
			case "/typing":
				err = client.Typing(true)
			case "/stop":
				err = client.Typing(false)
			case "/seen":
				err = client.Seen()
			default:
				if client.sessionID == "" {
					log.Printf("No session selected; start with -session to send messages")
					continue
				}
				err = client.Send(input)
			}
			if err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}
