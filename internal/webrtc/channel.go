package webrtc

import (
	"sync"

	pion "github.com/pion/webrtc/v4"
)

// Channel wraps a pion data channel. Messages that arrive before a handler
// is registered are held and replayed in order.
type Channel struct {
	*pion.DataChannel

	inbox inbox

	mu      sync.Mutex
	closed  bool
	onClose func()
}

func newChannel(dc *pion.DataChannel) *Channel {
	return &Channel{DataChannel: dc}
}

// OnMessage registers the message handler.
func (c *Channel) OnMessage(f func(isString bool, data []byte)) {
	c.inbox.setHandler(f)
}

// OnClose registers f to run when the channel closes, or runs it now if it
// already has.
func (c *Channel) OnClose(f func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		f()
		return
	}
	c.onClose = f
	c.mu.Unlock()
}

func (c *Channel) markClosed() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	f := c.onClose
	c.mu.Unlock()

	if f != nil {
		f()
	}
}

type inboundMessage struct {
	isString bool
	data     []byte
}

// inbox delivers messages serially to a handler that may be set late.
type inbox struct {
	mu      sync.Mutex
	handler func(isString bool, data []byte)
	backlog []inboundMessage
}

func (b *inbox) push(isString bool, data []byte) {
	b.mu.Lock()
	h := b.handler
	if h == nil {
		b.backlog = append(b.backlog, inboundMessage{isString, append([]byte(nil), data...)})
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	h(isString, data)
}

// setHandler replays the backlog and then installs f. Messages pushed while
// replaying join the backlog, so order is kept.
func (b *inbox) setHandler(f func(isString bool, data []byte)) {
	for {
		b.mu.Lock()
		if len(b.backlog) == 0 {
			b.handler = f
			b.mu.Unlock()
			return
		}
		pending := b.backlog
		b.backlog = nil
		b.mu.Unlock()

		for _, m := range pending {
			f(m.isString, m.data)
		}
	}
}
