// Package app ties the relay connection, negotiation and the transfer engine
// together for one local participant.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/landrop/internal/negotiation"
	"github.com/BioHazard786/landrop/internal/protocol"
	"github.com/BioHazard786/landrop/internal/transfer"
)

// closeGrace is how long a sender waits for the receiver to hang up after the
// last byte has been handed to the transport.
const closeGrace = 10 * time.Second

var ErrUnknownPeer = errors.New("peer is not connected to the relay")

// Signaling is the relay connection a Node runs on.
type Signaling interface {
	Send(env *protocol.Envelope) error
	Incoming() <-chan *protocol.Envelope
}

// Node is one participant: it follows the relay's peer list, negotiates
// channels and moves file batches over them.
type Node struct {
	signaling   Signaling
	negotiation *negotiation.Manager
	observer    Observer

	chunkSize   int
	maxFileSize int64
	endMarker   bool
	timeout     time.Duration

	mu       sync.Mutex
	self     protocol.PeerSummary
	peers    []protocol.PeerSummary
	outgoing map[string][]transfer.Source
	ctx      context.Context
}

// Option configures a Node.
type Option func(*Node)

// WithChunkSize sets the sender's chunk payload size.
func WithChunkSize(n int) Option {
	return func(node *Node) { node.chunkSize = n }
}

// WithMaxFileSize bounds the size of a single incoming file.
func WithMaxFileSize(size int64) Option {
	return func(n *Node) { n.maxFileSize = size }
}

// WithNegotiationTimeout bounds each negotiation.
func WithNegotiationTimeout(d time.Duration) Option {
	return func(n *Node) { n.timeout = d }
}

// WithEndMarker controls whether batches end with an explicit end message.
func WithEndMarker(on bool) Option {
	return func(n *Node) { n.endMarker = on }
}

// NewNode creates a node. Run must be called to process relay messages.
func NewNode(sig Signaling, factory negotiation.PeerFactory, observer Observer, opts ...Option) *Node {
	n := &Node{
		signaling:   sig,
		observer:    observer,
		chunkSize:   transfer.DefaultChunkSize,
		maxFileSize: transfer.DefaultMaxFileSize,
		endMarker:   true,
		timeout:     negotiation.DefaultTimeout,
		outgoing:    make(map[string][]transfer.Source),
		ctx:         context.Background(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.negotiation = negotiation.NewManager(sig, factory, n, n, negotiation.WithTimeout(n.timeout))
	return n
}

// Run dispatches relay messages until the connection closes or ctx is done.
// Every session is torn down on return.
func (n *Node) Run(ctx context.Context) error {
	n.mu.Lock()
	n.ctx = ctx
	n.mu.Unlock()
	defer n.negotiation.CloseAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-n.signaling.Incoming():
			if !ok {
				return nil
			}
			n.dispatch(env)
		}
	}
}

// Self returns the identity assigned by the relay, if any yet.
func (n *Node) Self() protocol.PeerSummary {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.self
}

// Peers returns the other peers on the relay.
func (n *Node) Peers() []protocol.PeerSummary {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]protocol.PeerSummary(nil), n.peers...)
}

// Send offers sources to peerID. The batch starts once the peer accepts.
func (n *Node) Send(peerID string, sources []transfer.Source, codec string) error {
	if _, err := transfer.CodecFor(codec); err != nil {
		return err
	}
	if !n.knows(peerID) {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peerID)
	}

	manifest := transfer.ManifestOf(sources)
	entries := make([]protocol.FileEntry, len(manifest))
	for i, m := range manifest {
		entries[i] = protocol.FileEntry{Name: m.Name, Size: m.Size, Type: m.MimeType}
	}

	n.mu.Lock()
	n.outgoing[peerID] = sources
	n.mu.Unlock()

	if err := n.negotiation.Initiate(peerID, entries, codec); err != nil {
		n.takeOutgoing(peerID)
		return err
	}
	return nil
}

// Cancel abandons whatever is in progress with peerID.
func (n *Node) Cancel(peerID string) {
	n.negotiation.Cancel(peerID)
}

func (n *Node) knows(peerID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.peers {
		if p.ID == peerID {
			return true
		}
	}
	return false
}

func (n *Node) dispatch(env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeWelcome:
		var w protocol.Welcome
		if err := env.DecodePayload(&w); err != nil {
			slog.Warn("bad welcome", "error", err)
			return
		}
		self := protocol.PeerSummary{ID: w.ID, DeviceName: w.DeviceName}
		n.mu.Lock()
		n.self = self
		n.mu.Unlock()
		n.observer.Welcomed(self)

	case protocol.TypeUpdatePeers:
		var list protocol.UpdatePeers
		if err := env.DecodePayload(&list); err != nil {
			slog.Warn("bad peer list", "error", err)
			return
		}
		n.updatePeers(list.Peers)

	case protocol.TypeOffer:
		var offer protocol.Offer
		if err := env.DecodePayload(&offer); err != nil {
			slog.Warn("bad offer", "peer", env.SenderID, "error", err)
			return
		}
		n.negotiation.HandleOffer(env.SenderID, offer)

	case protocol.TypeAnswer:
		var answer protocol.Answer
		if err := env.DecodePayload(&answer); err != nil {
			slog.Warn("bad answer", "peer", env.SenderID, "error", err)
			return
		}
		n.negotiation.HandleAnswer(env.SenderID, answer)

	case protocol.TypeCandidate:
		var c protocol.Candidate
		if err := env.DecodePayload(&c); err != nil {
			slog.Warn("bad candidate", "peer", env.SenderID, "error", err)
			return
		}
		n.negotiation.HandleCandidate(env.SenderID, c)

	default:
		slog.Debug("ignoring relay message", "type", env.Type)
	}
}

// updatePeers stores the list without ourselves and fails negotiations with
// peers that are gone.
func (n *Node) updatePeers(all []protocol.PeerSummary) {
	n.mu.Lock()
	current := make(map[string]bool, len(all))
	peers := make([]protocol.PeerSummary, 0, len(all))
	for _, p := range all {
		current[p.ID] = true
		if p.ID != n.self.ID {
			peers = append(peers, p)
		}
	}
	var departed []string
	for _, p := range n.peers {
		if !current[p.ID] {
			departed = append(departed, p.ID)
		}
	}
	n.peers = peers
	n.mu.Unlock()

	for _, id := range departed {
		slog.Debug("peer left", "peer", id)
		n.negotiation.PeerLeft(id)
	}
	n.observer.PeersChanged(append([]protocol.PeerSummary(nil), peers...))
}

// IncomingTransfer implements negotiation.Observer.
func (n *Node) IncomingTransfer(req negotiation.Request) {
	n.observer.IncomingTransfer(req)
}

// NegotiationFailed implements negotiation.Observer.
func (n *Node) NegotiationFailed(peerID string, err error) {
	n.takeOutgoing(peerID)
	n.observer.NegotiationFailed(peerID, err)
}

// ChannelOpened implements negotiation.Handoff.
func (n *Node) ChannelOpened(o negotiation.Opened) {
	codec, err := transfer.CodecFor(o.Codec)
	if err != nil {
		n.observer.TransferFailed(o.PeerID, "", err)
		go n.negotiation.Close(o.PeerID)
		return
	}

	if o.Role == negotiation.Initiator {
		sources, ok := n.takeOutgoing(o.PeerID)
		if !ok {
			slog.Warn("channel open without a pending batch", "peer", o.PeerID)
			go n.negotiation.Close(o.PeerID)
			return
		}
		n.mu.Lock()
		ctx := n.ctx
		n.mu.Unlock()
		go n.runSender(ctx, o, codec, sources)
		return
	}

	r := transfer.NewReceiver(codec, receiveHandler{node: n, peerID: o.PeerID},
		transfer.WithMaxFileSize(n.maxFileSize))

	o.Channel.OnClose(r.HandleClose)
	o.Channel.OnMessage(r.HandleMessage)
}

func (n *Node) runSender(ctx context.Context, o negotiation.Opened, codec transfer.Codec, sources []transfer.Source) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	closed := make(chan struct{})
	var once sync.Once
	o.Channel.OnClose(func() {
		once.Do(func() { close(closed) })
		cancel()
	})

	sender := transfer.NewSender(o.Channel, codec,
		transfer.WithChunkSize(n.chunkSize),
		transfer.WithEndMarker(n.endMarker),
		transfer.WithSendProgress(func(pct int) {
			n.observer.Progress(o.PeerID, pct, transfer.Sending)
		}),
	)

	err := sender.SendFiles(ctx, sources)
	if err != nil {
		select {
		case <-closed:
			err = transfer.NewError("send", transfer.ErrPeerDisconnected)
		default:
		}
		n.observer.TransferFailed(o.PeerID, "", err)
		n.negotiation.Close(o.PeerID)
		return
	}
	n.observer.BatchComplete(o.PeerID, transfer.Sending)

	// The receiver hangs up once it has everything.
	select {
	case <-closed:
	case <-time.After(closeGrace):
		slog.Debug("receiver did not close the channel", "peer", o.PeerID)
	case <-ctx.Done():
	}
	n.negotiation.Close(o.PeerID)
}

func (n *Node) takeOutgoing(peerID string) ([]transfer.Source, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	sources, ok := n.outgoing[peerID]
	delete(n.outgoing, peerID)
	return sources, ok
}

// receiveHandler forwards one receiver's events for peerID. Teardown runs on
// its own goroutine because these calls arrive on the transport's read loop.
type receiveHandler struct {
	node   *Node
	peerID string
}

func (h receiveHandler) Progress(pct int) {
	h.node.observer.Progress(h.peerID, pct, transfer.Receiving)
}

func (h receiveHandler) FileReceived(meta transfer.FileMeta, data []byte) {
	h.node.observer.FileReceived(h.peerID, meta.Name, data)
}

func (h receiveHandler) BatchComplete() {
	h.node.observer.BatchComplete(h.peerID, transfer.Receiving)
	go h.node.negotiation.Close(h.peerID)
}

func (h receiveHandler) TransferFailed(file string, err error) {
	h.node.observer.TransferFailed(h.peerID, file, err)
	go h.node.negotiation.Close(h.peerID)
}
