package relay

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/landrop/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Enough for SDP blobs.
	maxMessageSize = 64 * 1024

	// DefaultSendBuffer is the per-connection outbound queue length.
	DefaultSendBuffer = 256
)

// Client is a wrapper for a single websocket connection.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn

	// Send is the outbound queue. Only the hub writes to it and only the hub
	// closes it; WritePump drains it.
	Send chan *protocol.Envelope
}

// NewClient creates a client with an outbound queue of the given length.
func NewClient(hub *Hub, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		Hub:  hub,
		Conn: conn,
		Send: make(chan *protocol.Envelope, buffer),
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. All reads on
// the connection happen here.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "remote", c.Conn.RemoteAddr().String(), "error", err)
			}
			return
		}

		env, err := protocol.Parse(data)
		if err != nil {
			slog.Warn("dropping malformed message", "remote", c.Conn.RemoteAddr().String(), "error", err)
			continue
		}

		if !c.Hub.Deliver(c, env) {
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. All writes
// on the connection happen here.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the queue.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(env); err != nil {
				slog.Debug("websocket write failed", "remote", c.Conn.RemoteAddr().String(), "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
