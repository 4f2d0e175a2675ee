package negotiation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/landrop/internal/protocol"
)

// Session is the negotiation with one remote peer. Its mutex serializes
// every operation and transport callback touching it.
type Session struct {
	mu      sync.Mutex
	manager *Manager

	peerID string
	role   Role
	state  State

	pc          PeerConnection
	remoteOffer protocol.SessionDescription
	remoteSet   bool
	pending     []protocol.ICECandidate
	timer       *time.Timer
	decided     bool

	files []protocol.FileEntry
	codec string
}

func (s *Session) transition(to State) error {
	if !s.state.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.state, to)
	}
	slog.Debug("negotiation state", "peer", s.peerID, "from", s.state, "to", to)
	s.state = to
	return nil
}

func (s *Session) startTimer() {
	s.timer = time.AfterFunc(s.manager.timeout, s.expire)
}

func (s *Session) expire() {
	s.mu.Lock()
	if s.state == ChannelOpen || s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	after := s.terminate(Failed, ErrTimeout)
	s.mu.Unlock()
	after()
}

func (s *Session) newPeer() error {
	pc, err := s.manager.factory.NewPeer(s.peerID, s.role == Initiator, sessionEvents{s})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	s.pc = pc
	return nil
}

func (s *Session) initiate() error {
	if err := s.newPeer(); err != nil {
		return err
	}
	offer, err := s.pc.CreateOffer()
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.transition(OfferCreated); err != nil {
		return err
	}
	s.startTimer()

	return s.manager.send(protocol.TypeOffer, s.peerID, protocol.Offer{
		Offer: offer,
		Files: s.files,
		Codec: s.codec,
	})
}

func (s *Session) receiveOffer() error {
	if err := s.newPeer(); err != nil {
		return err
	}
	if err := s.transition(OfferReceived); err != nil {
		return err
	}
	s.startTimer()
	return nil
}

func (s *Session) decide(accept bool) {
	s.mu.Lock()
	if s.decided || s.state != OfferReceived {
		s.mu.Unlock()
		return
	}
	s.decided = true

	var after func()
	if !accept {
		after = s.terminate(Declined, nil)
	} else {
		after = s.failOnError(s.accept())
	}
	s.mu.Unlock()
	after()
}

func (s *Session) accept() error {
	if err := s.setRemote(s.remoteOffer); err != nil {
		return err
	}
	answer, err := s.pc.CreateAnswer()
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := s.manager.send(protocol.TypeAnswer, s.peerID, protocol.Answer{Answer: answer}); err != nil {
		return err
	}
	return s.transition(AnswerExchanged)
}

func (s *Session) applyAnswer(answer protocol.SessionDescription) error {
	if err := s.setRemote(answer); err != nil {
		return err
	}
	return s.transition(AnswerExchanged)
}

// setRemote applies desc and then every queued candidate in arrival order.
func (s *Session) setRemote(desc protocol.SessionDescription) error {
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteDescription, err)
	}
	s.remoteSet = true

	for _, c := range s.pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			slog.Warn("queued candidate rejected", "peer", s.peerID, "error", err)
		}
	}
	s.pending = nil
	return nil
}

// failOnError fails the session when err is set.
func (s *Session) failOnError(err error) func() {
	if err == nil {
		return func() {}
	}
	return s.terminate(Failed, err)
}

// terminate moves the session to a terminal state. It returns the work that
// must run after s.mu is released: closing the connection and notifying the
// observer.
func (s *Session) terminate(to State, cause error) func() {
	if s.state.Terminal() {
		return func() {}
	}
	if err := s.transition(to); err != nil {
		slog.Error("bad terminal transition", "peer", s.peerID, "error", err)
		s.state = Failed
		to = Failed
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = nil
	s.manager.remove(s)

	pc := s.pc
	peerID := s.peerID
	observer := s.manager.observer
	if to == Failed {
		slog.Warn("negotiation failed", "peer", peerID, "role", s.role, "error", cause)
	}

	return func() {
		if pc != nil {
			if err := pc.Close(); err != nil {
				slog.Debug("peer connection close", "peer", peerID, "error", err)
			}
		}
		if to == Failed {
			observer.NegotiationFailed(peerID, cause)
		}
	}
}

// sessionEvents binds transport callbacks to one session. Once the session
// has ended they do nothing.
type sessionEvents struct {
	s *Session
}

func (e sessionEvents) LocalCandidate(c protocol.ICECandidate) {
	s := e.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	if err := s.manager.send(protocol.TypeCandidate, s.peerID, protocol.Candidate{Candidate: c}); err != nil {
		slog.Warn("failed to send candidate", "peer", s.peerID, "error", err)
	}
}

func (e sessionEvents) ChannelOpen(dc DataChannel) {
	s := e.s
	s.mu.Lock()
	if s.state != AnswerExchanged {
		s.mu.Unlock()
		slog.Debug("channel open ignored", "peer", s.peerID, "state", s.state)
		return
	}
	if err := s.transition(ChannelOpen); err != nil {
		s.mu.Unlock()
		return
	}
	s.timer.Stop()
	opened := Opened{
		PeerID:  s.peerID,
		Role:    s.role,
		Channel: dc,
		Files:   s.files,
		Codec:   s.codec,
	}
	s.mu.Unlock()

	s.manager.handoff.ChannelOpened(opened)
}

func (e sessionEvents) ChannelClosed() {
	s := e.s
	s.mu.Lock()
	var after func()
	if s.state == ChannelOpen {
		after = s.terminate(Closed, nil)
	} else {
		after = s.terminate(Failed, ErrConnectionFailed)
	}
	s.mu.Unlock()
	after()
}

func (e sessionEvents) ConnectionFailed(err error) {
	s := e.s
	s.mu.Lock()
	after := s.terminate(Failed, fmt.Errorf("%w: %v", ErrConnectionFailed, err))
	s.mu.Unlock()
	after()
}
