package app

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BioHazard786/landrop/internal/negotiation"
	"github.com/BioHazard786/landrop/internal/protocol"
	"github.com/BioHazard786/landrop/internal/transfer"
)

// memNet connects peer connections in memory. The SDP of a description is
// the token of the connection that produced it.
type memNet struct {
	mu    sync.Mutex
	next  int
	peers map[string]*memPeer
}

func newMemNet() *memNet {
	return &memNet{peers: make(map[string]*memPeer)}
}

func (n *memNet) NewPeer(peerID string, initiator bool, events negotiation.PeerEvents) (negotiation.PeerConnection, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	p := &memPeer{net: n, events: events, token: fmt.Sprintf("mem-%d", n.next)}
	n.peers[p.token] = p
	return p, nil
}

func (n *memNet) get(token string) (*memPeer, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.peers[token]
	return p, ok
}

type memPeer struct {
	net    *memNet
	events negotiation.PeerEvents
	token  string

	mu      sync.Mutex
	channel *memChannel
}

func (p *memPeer) describe(sdpType string) protocol.SessionDescription {
	mid := "0"
	go p.events.LocalCandidate(protocol.ICECandidate{Candidate: "candidate:" + p.token, SDPMid: &mid})
	return protocol.SessionDescription{Type: sdpType, SDP: p.token}
}

func (p *memPeer) CreateOffer() (protocol.SessionDescription, error) {
	return p.describe("offer"), nil
}

func (p *memPeer) CreateAnswer() (protocol.SessionDescription, error) {
	return p.describe("answer"), nil
}

func (p *memPeer) SetRemoteDescription(desc protocol.SessionDescription) error {
	remote, ok := p.net.get(desc.SDP)
	if !ok {
		return errors.New("unknown description")
	}
	if desc.Type != "answer" {
		return nil
	}

	local, far := newChannelPair(p.events, remote.events)
	p.mu.Lock()
	p.channel = local
	p.mu.Unlock()
	remote.mu.Lock()
	remote.channel = far
	remote.mu.Unlock()

	go p.events.ChannelOpen(local)
	go remote.events.ChannelOpen(far)
	return nil
}

func (p *memPeer) AddICECandidate(protocol.ICECandidate) error { return nil }

func (p *memPeer) Close() error {
	p.mu.Lock()
	ch := p.channel
	p.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
	return nil
}

type memMessage struct {
	isString bool
	data     []byte
	close    bool
}

// memChannel is one end of an in-memory ordered channel. A pump goroutine
// delivers inbound messages, holding them until a handler is set.
type memChannel struct {
	events negotiation.PeerEvents
	peer   *memChannel
	queue  chan memMessage
	once   *sync.Once

	mu      sync.Mutex
	closed  bool
	onClose func()

	deliver sync.Mutex
	handler func(bool, []byte)
	backlog []memMessage
}

func newChannelPair(a, b negotiation.PeerEvents) (*memChannel, *memChannel) {
	once := &sync.Once{}
	x := &memChannel{events: a, queue: make(chan memMessage, 4096), once: once}
	y := &memChannel{events: b, queue: make(chan memMessage, 4096), once: once}
	x.peer, y.peer = y, x
	go x.pump()
	go y.pump()
	return x, y
}

func (c *memChannel) pump() {
	for msg := range c.queue {
		if msg.close {
			c.mu.Lock()
			c.closed = true
			f := c.onClose
			c.mu.Unlock()
			if f != nil {
				f()
			}
			c.events.ChannelClosed()
			return
		}
		c.deliver.Lock()
		if c.handler == nil {
			c.backlog = append(c.backlog, msg)
		} else {
			c.handler(msg.isString, msg.data)
		}
		c.deliver.Unlock()
	}
}

func (c *memChannel) push(isString bool, data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return transfer.ErrChannelClosed
	}
	c.peer.queue <- memMessage{isString: isString, data: append([]byte(nil), data...)}
	return nil
}

func (c *memChannel) Send(data []byte) error { return c.push(false, data) }
func (c *memChannel) SendText(s string) error { return c.push(true, []byte(s)) }
func (c *memChannel) BufferedAmount() uint64 { return 0 }
func (c *memChannel) SetBufferedAmountLowThreshold(uint64) {}
func (c *memChannel) OnBufferedAmountLow(func()) {}

func (c *memChannel) OnMessage(f func(bool, []byte)) {
	c.deliver.Lock()
	defer c.deliver.Unlock()
	c.handler = f
	for _, msg := range c.backlog {
		f(msg.isString, msg.data)
	}
	c.backlog = nil
}

func (c *memChannel) OnClose(f func()) {
	c.mu.Lock()
	c.onClose = f
	c.mu.Unlock()
}

// Close closes both ends after the messages already sent.
func (c *memChannel) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.queue <- memMessage{close: true}
		c.peer.queue <- memMessage{close: true}
	})
	return nil
}
