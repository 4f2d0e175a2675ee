package webrtc

import (
	"fmt"
	"log/slog"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/landrop/internal/negotiation"
	"github.com/BioHazard786/landrop/internal/protocol"
)

// ChannelLabel is the label of the single transfer data channel.
const ChannelLabel = "file-transfer"

// Factory creates pion peer connections for the negotiation manager.
type Factory struct {
	config pion.Configuration
}

// NewFactory builds a factory using the given STUN/TURN URLs. No URLs means
// host candidates only, which is enough on one LAN.
func NewFactory(iceURLs []string) *Factory {
	var servers []pion.ICEServer
	if len(iceURLs) > 0 {
		servers = []pion.ICEServer{{URLs: iceURLs}}
	}
	return &Factory{config: pion.Configuration{ICEServers: servers}}
}

// NewPeer creates a peer connection. The initiator creates the ordered
// transfer channel; the responder waits for it.
func (f *Factory) NewPeer(peerID string, initiator bool, events negotiation.PeerEvents) (negotiation.PeerConnection, error) {
	pc, err := pion.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	p := &Peer{pc: pc, peerID: peerID}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		events.LocalCandidate(candidateFromPion(c.ToJSON()))
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		slog.Debug("peer connection state", "peer", peerID, "state", state.String())
		if state == pion.PeerConnectionStateFailed {
			events.ConnectionFailed(fmt.Errorf("connection state %s", state))
		}
	})

	if initiator {
		ordered := true
		dc, err := pc.CreateDataChannel(ChannelLabel, &pion.DataChannelInit{Ordered: &ordered})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("create data channel: %w", err)
		}
		wireChannel(dc, events)
	} else {
		pc.OnDataChannel(func(dc *pion.DataChannel) {
			if dc.Label() != ChannelLabel {
				slog.Debug("ignoring data channel", "peer", peerID, "label", dc.Label())
				return
			}
			wireChannel(dc, events)
		})
	}

	return p, nil
}

// Peer adapts *pion.PeerConnection to negotiation.PeerConnection.
type Peer struct {
	pc     *pion.PeerConnection
	peerID string
}

func (p *Peer) CreateOffer() (protocol.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return protocol.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return protocol.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return descriptionFromPion(*p.pc.LocalDescription()), nil
}

func (p *Peer) CreateAnswer() (protocol.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return protocol.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return protocol.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return descriptionFromPion(*p.pc.LocalDescription()), nil
}

func (p *Peer) SetRemoteDescription(desc protocol.SessionDescription) error {
	sd, err := descriptionToPion(desc)
	if err != nil {
		return err
	}
	return p.pc.SetRemoteDescription(sd)
}

func (p *Peer) AddICECandidate(c protocol.ICECandidate) error {
	return p.pc.AddICECandidate(candidateToPion(c))
}

func (p *Peer) Close() error {
	return p.pc.Close()
}

func wireChannel(dc *pion.DataChannel, events negotiation.PeerEvents) {
	ch := newChannel(dc)
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		ch.inbox.push(msg.IsString, msg.Data)
	})
	dc.OnOpen(func() {
		events.ChannelOpen(ch)
	})
	dc.OnClose(func() {
		ch.markClosed()
		events.ChannelClosed()
	})
}

func descriptionFromPion(sd pion.SessionDescription) protocol.SessionDescription {
	return protocol.SessionDescription{Type: sd.Type.String(), SDP: sd.SDP}
}

func descriptionToPion(desc protocol.SessionDescription) (pion.SessionDescription, error) {
	typ := pion.NewSDPType(desc.Type)
	if typ == pion.SDPTypeUnknown {
		return pion.SessionDescription{}, fmt.Errorf("unknown sdp type %q", desc.Type)
	}
	return pion.SessionDescription{Type: typ, SDP: desc.SDP}, nil
}

func candidateFromPion(c pion.ICECandidateInit) protocol.ICECandidate {
	return protocol.ICECandidate{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func candidateToPion(c protocol.ICECandidate) pion.ICECandidateInit {
	return pion.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}
