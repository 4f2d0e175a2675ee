package negotiation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/landrop/internal/protocol"
)

// DefaultTimeout bounds a negotiation from start to open channel,
// including the time a user takes to decide.
const DefaultTimeout = 30 * time.Second

// Manager owns one negotiation session per remote peer.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	signaler Signaler
	factory  PeerFactory
	observer Observer
	handoff  Handoff
	timeout  time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewManager creates a manager.
func NewManager(signaler Signaler, factory PeerFactory, observer Observer, handoff Handoff, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		signaler: signaler,
		factory:  factory,
		observer: observer,
		handoff:  handoff,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initiate starts a negotiation towards peerID announcing files.
func (m *Manager) Initiate(peerID string, files []protocol.FileEntry, codec string) error {
	s := m.replace(peerID, Initiator)
	s.files = files
	s.codec = codec

	s.mu.Lock()
	err := s.initiate()
	after := s.failOnError(err)
	s.mu.Unlock()
	after()
	return err
}

// HandleOffer starts a responder session for an offer, replacing any session
// with that peer, and asks the observer for a decision.
func (m *Manager) HandleOffer(senderID string, offer protocol.Offer) {
	s := m.replace(senderID, Responder)
	s.files = offer.Files
	s.codec = offer.Codec
	s.remoteOffer = offer.Offer

	s.mu.Lock()
	err := s.receiveOffer()
	after := s.failOnError(err)
	s.mu.Unlock()
	after()
	if err != nil {
		return
	}

	m.observer.IncomingTransfer(Request{
		PeerID:  senderID,
		Files:   offer.Files,
		Codec:   offer.Codec,
		session: s,
	})
}

// HandleAnswer applies the answer to a session waiting for one. Answers in
// any other state are stale and dropped.
func (m *Manager) HandleAnswer(senderID string, answer protocol.Answer) {
	s, ok := m.lookup(senderID)
	if !ok {
		slog.Debug("answer without session", "peer", senderID)
		return
	}

	s.mu.Lock()
	if s.state != OfferCreated {
		s.mu.Unlock()
		slog.Debug("stale answer dropped", "peer", senderID, "state", s.state)
		return
	}
	err := s.applyAnswer(answer.Answer)
	after := s.failOnError(err)
	s.mu.Unlock()
	after()
}

// HandleCandidate applies a remote candidate, or queues it until the remote
// description is set.
func (m *Manager) HandleCandidate(senderID string, c protocol.Candidate) {
	s, ok := m.lookup(senderID)
	if !ok {
		slog.Debug("candidate without session", "peer", senderID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	if !s.remoteSet {
		s.pending = append(s.pending, c.Candidate)
		return
	}
	if err := s.pc.AddICECandidate(c.Candidate); err != nil {
		slog.Warn("remote candidate rejected", "peer", senderID, "error", err)
	}
}

// Close ends the session with peerID. An open channel closes normally; a
// negotiation still in progress is cancelled.
func (m *Manager) Close(peerID string) {
	s, ok := m.lookup(peerID)
	if !ok {
		return
	}

	s.mu.Lock()
	var after func()
	if s.state == ChannelOpen {
		after = s.terminate(Closed, nil)
	} else {
		after = s.terminate(Failed, ErrCancelled)
	}
	s.mu.Unlock()
	after()
}

// Cancel abandons the session with peerID. A negotiation still in progress
// fails with ErrCancelled. An open channel belongs to the transfer, so it is
// closed without a negotiation failure and the transfer reports the
// interrupted batch.
func (m *Manager) Cancel(peerID string) {
	m.Close(peerID)
}

// PeerLeft fails a negotiation still in progress with a peer that
// disconnected from the relay. Open channels are left to the transport.
func (m *Manager) PeerLeft(peerID string) {
	s, ok := m.lookup(peerID)
	if !ok {
		return
	}

	s.mu.Lock()
	var after func()
	if s.state != ChannelOpen {
		after = s.terminate(Failed, ErrDeclined)
	} else {
		after = func() {}
	}
	s.mu.Unlock()
	after()
}

// CloseAll tears down every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	peers := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		peers = append(peers, id)
	}
	m.mu.Unlock()

	for _, id := range peers {
		m.Close(id)
	}
}

// State reports the state of the session with peerID.
func (m *Manager) State(peerID string) (State, bool) {
	s, ok := m.lookup(peerID)
	if !ok {
		return Idle, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, true
}

// replace installs a fresh session for peerID and fails the one it replaces.
func (m *Manager) replace(peerID string, role Role) *Session {
	s := &Session{manager: m, peerID: peerID, role: role, state: Idle}

	m.mu.Lock()
	old := m.sessions[peerID]
	m.sessions[peerID] = s
	m.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		after := old.terminate(Failed, ErrSuperseded)
		old.mu.Unlock()
		after()
	}
	return s
}

func (m *Manager) lookup(peerID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[peerID]
	return s, ok
}

// remove drops s from the map if it is still the current session.
func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.peerID] == s {
		delete(m.sessions, s.peerID)
	}
}

func (m *Manager) send(msgType, targetID string, payload any) error {
	env, err := protocol.NewEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	env.TargetID = targetID
	if err := m.signaler.Send(env); err != nil {
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	return nil
}
