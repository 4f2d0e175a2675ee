package relay

import (
	"errors"

	"github.com/google/uuid"

	"github.com/BioHazard786/landrop/internal/protocol"
)

// ErrIDCollision means the id source produced an id that is already registered.
var ErrIDCollision = errors.New("session id collision")

// Session is a connected client as the relay sees it.
type Session struct {
	ID          string
	DisplayName string
	Client      *Client
}

// Summary projects the session to the value broadcast to peers.
func (s *Session) Summary() protocol.PeerSummary {
	return protocol.PeerSummary{ID: s.ID, DeviceName: s.DisplayName}
}

// Registry tracks connected sessions. It is not safe for concurrent use; the
// hub goroutine owns it.
type Registry struct {
	byClient map[*Client]*Session
	byID     map[string]*Session
	names    map[string]bool
	order    []*Session

	pool  []string
	newID func() string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithNamePool replaces the default display-name pool.
func WithNamePool(names []string) RegistryOption {
	return func(r *Registry) {
		r.pool = append([]string(nil), names...)
	}
}

// WithIDSource replaces the uuid id source.
func WithIDSource(f func() string) RegistryOption {
	return func(r *Registry) {
		r.newID = f
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byClient: make(map[*Client]*Session),
		byID:     make(map[string]*Session),
		names:    make(map[string]bool),
		pool:     deviceNames,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a session for c. Registering the same client twice returns
// the existing session.
func (r *Registry) Register(c *Client) (*Session, error) {
	if s, ok := r.byClient[c]; ok {
		return s, nil
	}

	id := r.newID()
	if _, taken := r.byID[id]; taken {
		return nil, ErrIDCollision
	}

	s := &Session{
		ID:          id,
		DisplayName: pickName(r.pool, r.names, len(r.order)),
		Client:      c,
	}
	r.byClient[c] = s
	r.byID[id] = s
	r.names[s.DisplayName] = true
	r.order = append(r.order, s)
	return s, nil
}

// Unregister removes the session for c, reporting whether one existed.
func (r *Registry) Unregister(c *Client) (*Session, bool) {
	s, ok := r.byClient[c]
	if !ok {
		return nil, false
	}

	delete(r.byClient, c)
	delete(r.byID, s.ID)
	delete(r.names, s.DisplayName)
	for i, cur := range r.order {
		if cur == s {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return s, true
}

// Lookup finds a session by id.
func (r *Registry) Lookup(id string) (*Session, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// ListPeers returns a fresh snapshot in registration order.
func (r *Registry) ListPeers() []protocol.PeerSummary {
	peers := make([]protocol.PeerSummary, len(r.order))
	for i, s := range r.order {
		peers[i] = s.Summary()
	}
	return peers
}

// Sessions returns the registered sessions in registration order.
func (r *Registry) Sessions() []*Session {
	return append([]*Session(nil), r.order...)
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	return len(r.order)
}
