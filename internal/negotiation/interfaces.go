package negotiation

import (
	"github.com/BioHazard786/landrop/internal/protocol"
	"github.com/BioHazard786/landrop/internal/transfer"
)

// PeerConnection is the part of a WebRTC peer connection negotiation drives.
// CreateOffer and CreateAnswer also apply the result as local description.
type PeerConnection interface {
	CreateOffer() (protocol.SessionDescription, error)
	CreateAnswer() (protocol.SessionDescription, error)
	SetRemoteDescription(desc protocol.SessionDescription) error
	AddICECandidate(c protocol.ICECandidate) error
	Close() error
}

// DataChannel is an open transfer channel.
type DataChannel interface {
	transfer.Channel
	OnMessage(f func(isString bool, data []byte))
	OnClose(f func())
	Close() error
}

// PeerEvents receives transport callbacks for one session.
type PeerEvents interface {
	LocalCandidate(c protocol.ICECandidate)
	ChannelOpen(dc DataChannel)
	ChannelClosed()
	ConnectionFailed(err error)
}

// PeerFactory creates peer connections. An initiator's connection also
// creates the transfer data channel.
type PeerFactory interface {
	NewPeer(peerID string, initiator bool, events PeerEvents) (PeerConnection, error)
}

// Signaler sends envelopes to the relay.
type Signaler interface {
	Send(env *protocol.Envelope) error
}

// Request is an incoming offer awaiting the user's decision.
type Request struct {
	PeerID string
	Files  []protocol.FileEntry
	Codec  string

	session *Session
}

// Decide accepts or declines the offer. Only the first call counts and a
// call after the session ended does nothing.
func (r Request) Decide(accept bool) {
	if r.session != nil {
		r.session.decide(accept)
	}
}

// Opened hands an open channel over to the transfer layer.
type Opened struct {
	PeerID  string
	Role    Role
	Channel DataChannel
	Files   []protocol.FileEntry
	Codec   string
}

// Observer is told about offers and failures.
type Observer interface {
	IncomingTransfer(req Request)
	NegotiationFailed(peerID string, err error)
}

// Handoff receives channels once they open.
type Handoff interface {
	ChannelOpened(o Opened)
}
