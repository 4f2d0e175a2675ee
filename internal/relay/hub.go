package relay

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BioHazard786/landrop/internal/protocol"
)

// ErrHubStopped is returned by calls made after Run has returned.
var ErrHubStopped = errors.New("hub stopped")

type inboundMessage struct {
	client *Client
	env    *protocol.Envelope
}

// Hub is the relay's router. A single goroutine running Run owns the
// registry; every other goroutine talks to it over channels.
type Hub struct {
	registry *Registry

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage
	snapshot   chan chan []protocol.PeerSummary

	done chan struct{}
}

// NewHub creates a hub around a fresh registry.
func NewHub(opts ...RegistryOption) *Hub {
	return &Hub{
		registry:   NewRegistry(opts...),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundMessage),
		snapshot:   make(chan chan []protocol.PeerSummary),
		done:       make(chan struct{}),
	}
}

// Register hands a new connection to the hub. It reports false if the hub
// has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a connection. Unknown clients are ignored.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Deliver queues a parsed envelope from c for routing.
func (h *Hub) Deliver(c *Client, env *protocol.Envelope) bool {
	select {
	case h.inbound <- inboundMessage{client: c, env: env}:
		return true
	case <-h.done:
		return false
	}
}

// Snapshot returns the current peer list as computed by the hub loop.
func (h *Hub) Snapshot(ctx context.Context) ([]protocol.PeerSummary, error) {
	reply := make(chan []protocol.PeerSummary, 1)
	select {
	case h.snapshot <- reply:
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case peers := <-reply:
		return peers, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run is the hub's processing loop. It returns when ctx is cancelled, after
// closing every connected client's queue.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			if s, ok := h.registry.Unregister(c); ok {
				slog.Info("client left", "id", s.ID, "name", s.DisplayName)
				close(c.Send)
				h.broadcastPeerList()
			}

		case msg := <-h.inbound:
			h.route(msg.client, msg.env)

		case reply := <-h.snapshot:
			reply <- h.registry.ListPeers()

		case <-ctx.Done():
			for _, s := range h.registry.Sessions() {
				h.registry.Unregister(s.Client)
				close(s.Client.Send)
			}
			return
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	s, err := h.registry.Register(c)
	if err != nil {
		slog.Error("client rejected", "error", err)
		close(c.Send)
		return
	}
	slog.Info("client joined", "id", s.ID, "name", s.DisplayName)

	welcome, err := protocol.NewEnvelope(protocol.TypeWelcome, protocol.Welcome{ID: s.ID, DeviceName: s.DisplayName})
	if err != nil {
		slog.Error("failed to build welcome", "error", err)
		return
	}
	if !h.deliver(s, welcome) {
		h.evict(s)
	}
	h.broadcastPeerList()
}

// broadcastPeerList sends the current membership to everyone. Clients that
// cannot keep up are evicted and the list is sent again.
func (h *Hub) broadcastPeerList() {
	for {
		env, err := protocol.NewEnvelope(protocol.TypeUpdatePeers, protocol.UpdatePeers{Peers: h.registry.ListPeers()})
		if err != nil {
			slog.Error("failed to build peer list", "error", err)
			return
		}

		var slow []*Session
		for _, s := range h.registry.Sessions() {
			if !h.deliver(s, env) {
				slow = append(slow, s)
			}
		}
		if len(slow) == 0 {
			return
		}
		for _, s := range slow {
			h.evict(s)
		}
	}
}

func (h *Hub) route(c *Client, env *protocol.Envelope) {
	sender, ok := h.registry.byClient[c]
	if !ok {
		slog.Debug("message from unregistered client dropped", "type", env.Type)
		return
	}

	if err := env.ValidateRoutable(); err != nil {
		slog.Warn("dropping message", "from", sender.ID, "error", err)
		return
	}

	target, ok := h.registry.Lookup(env.TargetID)
	if !ok {
		slog.Debug("target not connected", "from", sender.ID, "target", env.TargetID, "type", env.Type)
		return
	}

	slog.Debug("relaying", "type", env.Type, "from", sender.ID, "to", target.ID)
	if !h.deliver(target, env.Forwarded(sender.ID)) {
		h.evict(target)
		h.broadcastPeerList()
	}
}

// deliver queues env without blocking the loop.
func (h *Hub) deliver(s *Session, env *protocol.Envelope) bool {
	select {
	case s.Client.Send <- env:
		return true
	default:
		return false
	}
}

func (h *Hub) evict(s *Session) {
	if _, ok := h.registry.Unregister(s.Client); !ok {
		return
	}
	slog.Warn("evicting slow client", "id", s.ID, "name", s.DisplayName)
	close(s.Client.Send)
}
