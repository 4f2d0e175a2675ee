package app

import (
	"github.com/BioHazard786/landrop/internal/negotiation"
	"github.com/BioHazard786/landrop/internal/protocol"
	"github.com/BioHazard786/landrop/internal/transfer"
)

// Observer is told everything the user interface shows.
type Observer interface {
	Welcomed(self protocol.PeerSummary)
	PeersChanged(peers []protocol.PeerSummary)
	IncomingTransfer(req negotiation.Request)
	Progress(peerID string, pct int, dir transfer.Direction)
	FileReceived(peerID, name string, data []byte)
	BatchComplete(peerID string, dir transfer.Direction)
	TransferFailed(peerID, name string, err error)
	NegotiationFailed(peerID string, err error)
}

// EventKind identifies an Event.
type EventKind int

const (
	EventWelcomed EventKind = iota
	EventPeersChanged
	EventIncomingTransfer
	EventProgress
	EventFileReceived
	EventBatchComplete
	EventTransferFailed
	EventNegotiationFailed
)

// Event is one Observer call captured as a value.
type Event struct {
	Kind      EventKind
	PeerID    string
	Self      protocol.PeerSummary
	Peers     []protocol.PeerSummary
	Request   negotiation.Request
	Percent   int
	Direction transfer.Direction
	Name      string
	Data      []byte
	Err       error
}

// EventQueue is an Observer that turns calls into events on a channel, for
// callers that prefer a select loop.
type EventQueue struct {
	ch chan Event
}

// NewEventQueue creates a queue with the given buffer. Observer calls block
// when it is full.
func NewEventQueue(size int) *EventQueue {
	return &EventQueue{ch: make(chan Event, size)}
}

// C returns the event channel.
func (q *EventQueue) C() <-chan Event {
	return q.ch
}

func (q *EventQueue) Welcomed(self protocol.PeerSummary) {
	q.ch <- Event{Kind: EventWelcomed, Self: self}
}

func (q *EventQueue) PeersChanged(peers []protocol.PeerSummary) {
	q.ch <- Event{Kind: EventPeersChanged, Peers: peers}
}

func (q *EventQueue) IncomingTransfer(req negotiation.Request) {
	q.ch <- Event{Kind: EventIncomingTransfer, PeerID: req.PeerID, Request: req}
}

func (q *EventQueue) Progress(peerID string, pct int, dir transfer.Direction) {
	q.ch <- Event{Kind: EventProgress, PeerID: peerID, Percent: pct, Direction: dir}
}

func (q *EventQueue) FileReceived(peerID, name string, data []byte) {
	q.ch <- Event{Kind: EventFileReceived, PeerID: peerID, Name: name, Data: data}
}

func (q *EventQueue) BatchComplete(peerID string, dir transfer.Direction) {
	q.ch <- Event{Kind: EventBatchComplete, PeerID: peerID, Direction: dir}
}

func (q *EventQueue) TransferFailed(peerID, name string, err error) {
	q.ch <- Event{Kind: EventTransferFailed, PeerID: peerID, Name: name, Err: err}
}

func (q *EventQueue) NegotiationFailed(peerID string, err error) {
	q.ch <- Event{Kind: EventNegotiationFailed, PeerID: peerID, Err: err}
}
