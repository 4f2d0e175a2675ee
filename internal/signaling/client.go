package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/landrop/internal/dns"
	"github.com/BioHazard786/landrop/internal/protocol"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 64 * 1024
	handshakeTimeout = 5 * time.Second
	queueSize        = 64
)

// ErrClosed is returned by Send after the connection has gone away.
var ErrClosed = errors.New("signaling connection closed")

// Client manages the WebSocket connection to the relay.
type Client struct {
	conn     *websocket.Conn
	incoming chan *protocol.Envelope
	outgoing chan *protocol.Envelope
	done     chan struct{}
	once     sync.Once
}

// Dial connects to the relay at serverURL. Host names go through the
// fallback resolver.
func Dial(ctx context.Context, serverURL string) (*Client, error) {
	dialer := websocket.Dialer{
		NetDialContext:   dns.DialContext,
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   maxMessageSize,
		WriteBufferSize:  maxMessageSize,
	}

	conn, _, err := dialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", serverURL, err)
	}

	c := &Client{
		conn:     conn,
		incoming: make(chan *protocol.Envelope, queueSize),
		outgoing: make(chan *protocol.Envelope, queueSize),
		done:     make(chan struct{}),
	}
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()
	return c, nil
}

// readPump reads envelopes until the connection fails. It closes Incoming.
func (c *Client) readPump() {
	defer func() {
		close(c.incoming)
		c.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("signaling read failed", "error", err)
			}
			return
		}
		// The relay answers pings from browsers too, so any message counts.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := protocol.Parse(data)
		if err != nil {
			slog.Warn("ignoring malformed signaling message", "error", err)
			continue
		}

		select {
		case c.incoming <- env:
		case <-c.done:
			return
		}
	}
}

// writePump writes queued envelopes and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				slog.Debug("signaling write failed", "error", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues env for the relay.
func (c *Client) Send(env *protocol.Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- env:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Incoming yields envelopes from the relay. It is closed when the
// connection ends.
func (c *Client) Incoming() <-chan *protocol.Envelope {
	return c.incoming
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close shuts the connection down. It is safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}
