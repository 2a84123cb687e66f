package realtime

import (
	"auction-engine/utils"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// DefaultSendBuffer is the number of outbound events queued per client before new ones are dropped.
	DefaultSendBuffer = 64
)

// MessageHandler processes one inbound frame. Frames from a client are handled one at a time in arrival order.
type MessageHandler func(ctx context.Context, c *Client, msg Message)

// Client is an Observer backed by a websocket connection.
// Outbound events are queued and written by a single goroutine, so a client sees
// events in the order they were delivered.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan Event
	done   chan struct{}
	once   sync.Once
}

// NewClient wraps an upgraded connection for an authenticated user
func NewClient(conn *websocket.Conn, userID string, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Client{
		id:     utils.GenerateID(),
		userID: userID,
		conn:   conn,
		send:   make(chan Event, sendBuffer),
		done:   make(chan struct{}),
	}
}

// ID returns the connection id
func (c *Client) ID() string { return c.id }

// UserID returns the authenticated identity of the connection
func (c *Client) UserID() string { return c.userID }

// Deliver queues ev for writing. It never blocks; a full queue or closed client drops the event.
func (c *Client) Deliver(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Done is closed once the client stopped reading
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) shutdown() {
	c.once.Do(func() { close(c.done) })
}

// Run pumps frames until the peer disconnects or ctx is cancelled, then calls onClose.
// It blocks for the lifetime of the connection.
func (c *Client) Run(ctx context.Context, handle MessageHandler, onClose func(*Client)) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	go func() {
		select {
		case <-ctx.Done():
			// unblock the reader
			c.conn.Close()
		case <-c.done:
		}
	}()

	c.readPump(ctx, handle)

	c.shutdown()
	onClose(c)
	<-writerDone
	c.conn.Close()
}

func (c *Client) readPump(ctx context.Context, handle MessageHandler) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Warn("Client: unexpected close", map[string]any{"client_id": c.id, "error": err.Error()})
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			c.Deliver(errorEvent("", "Malformed message"))
			continue
		}
		handle(ctx, c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				utils.Debug("Client: write failed", map[string]any{"client_id": c.id, "error": err.Error()})
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
