// Package websocket relays chatbot conversations over websocket connections.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"sleep-better/internal/backend"
	"sleep-better/internal/domain"
	"sleep-better/internal/observability"
	"sleep-better/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // Must be less than pongWait
	maxMessageSize = 4096
	replyTimeout   = 30 * time.Second
)

// Message types
const (
	TypeMessage  = "message"
	TypeBotReply = "bot_reply"
	TypeError    = "error"
)

// Responder answers chat messages.
type Responder interface {
	Greeting() service.ChatReply
	Ask(ctx context.Context, token, username, message string) (service.ChatReply, error)
}

// Session is the signed-in visitor a socket belongs to. The socket stops
// relaying once ExpiresAt has passed.
type Session struct {
	ID        string
	Token     string
	Username  string
	ExpiresAt time.Time
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	username  string
	token     string
	expiresAt time.Time
	responder Responder
	writeMu   sync.Mutex
	closed    atomic.Bool
	sendMu    sync.Mutex
	sendDone  bool
	writeDone chan struct{}
	ctx       context.Context
	ctxCancel context.CancelFunc
	now       func() time.Time
}

type ClientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type ServerMessage struct {
	Type    string   `json:"type"`
	Content string   `json:"content,omitempty"`
	Options []string `json:"options,omitempty"`
	Message string   `json:"message,omitempty"`
}

func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, session Session, responder Responder) *Client {
	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 16),
		sessionID: session.ID,
		username:  session.Username,
		token:     session.Token,
		expiresAt: session.ExpiresAt,
		responder: responder,
		writeDone: make(chan struct{}),
		ctx:       clientCtx,
		ctxCancel: cancel,
		now:       time.Now,
	}
}

// ReadPump reads user messages and answers each one in turn. It sends the
// greeting first.
func (c *Client) ReadPump() {
	defer func() {
		c.ctxCancel()
		c.hub.Unregister(c)
		c.closeConnection()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn("failed to set read deadline",
			slog.String("error", err.Error()),
			slog.String("user", c.username))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.reply(c.responder.Greeting())

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket error",
					slog.String("error", err.Error()),
					slog.String("user", c.username))
			}
			return
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil || clientMsg.Type != TypeMessage {
			c.fail("Unsupported message")
			continue
		}
		observability.ChatMessagesTotal.WithLabelValues("in").Inc()

		if c.expired() {
			c.fail("Session expired, please sign in again")
			c.end()
			return
		}

		if !c.answer(clientMsg.Content) {
			c.end()
			return
		}
	}
}

// answer relays one message and reports whether the socket should stay open.
func (c *Client) answer(content string) bool {
	ctx, cancel := context.WithTimeout(c.ctx, replyTimeout)
	defer cancel()

	reply, err := c.responder.Ask(ctx, c.token, c.username, content)
	switch {
	case err == nil:
		c.reply(reply)
		return true
	case errors.Is(err, domain.ErrInvalidInput):
		c.fail("Please send a message between 1 and 1000 characters")
		return true
	case errors.Is(err, backend.ErrUnauthorized):
		c.fail("Session no longer valid, please sign in again")
		return false
	default:
		slog.Error("chat relay failed",
			slog.String("error", err.Error()),
			slog.String("user", c.username))
		c.fail("The sleep assistant is unavailable right now")
		return true
	}
}

func (c *Client) expired() bool {
	return !c.expiresAt.IsZero() && !c.now().Before(c.expiresAt)
}

func (c *Client) reply(r service.ChatReply) {
	if c.enqueue(ServerMessage{Type: TypeBotReply, Content: r.Content, Options: r.Options}) {
		observability.ChatMessagesTotal.WithLabelValues("out").Inc()
	}
}

func (c *Client) fail(msg string) {
	c.enqueue(ServerMessage{Type: TypeError, Message: msg})
}

func (c *Client) enqueue(msg ServerMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal chat message", slog.String("error", err.Error()))
		return false
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendDone {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		slog.Warn("chat send buffer full, dropping message", slog.String("user", c.username))
		return false
	}
}

// end flushes queued messages and waits for the write pump to close the
// socket.
func (c *Client) end() {
	c.closeSend()
	select {
	case <-c.writeDone:
	case <-time.After(writeWait):
	}
}

// closeSend is called by the hub; the write pump then closes the socket.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendDone {
		c.sendDone = true
		close(c.send)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
		close(c.writeDone)
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.writeMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}

			if err := c.writeMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeMessage writes a message to the WebSocket connection in a thread-safe manner
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return websocket.ErrCloseSent
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// closeConnection safely closes the WebSocket connection
func (c *Client) closeConnection() {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		c.conn.Close()
		c.writeMu.Unlock()
	}
}
