package transfer

import (
	"sync"

	"github.com/BioHazard786/landrop/internal/files"
)

// ReceiveHandler gets the receiver's events. Calls are made without the
// receiver's lock held, in the order the events happened.
type ReceiveHandler interface {
	Progress(pct int)
	FileReceived(meta FileMeta, data []byte)
	BatchComplete()
	TransferFailed(file string, err error)
}

type receiverState int

const (
	awaitingStart receiverState = iota
	receiving
	completed
	failed
)

// Receiver reassembles one batch from channel messages.
type Receiver struct {
	mu      sync.Mutex
	codec   Codec
	handler ReceiveHandler
	maxSize int64

	state    receiverState
	manifest Manifest
	index    int
	received int64
	chunks   [][]byte
	progress *progressCounter

	pending []func()
}

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// WithMaxFileSize bounds the declared size of any single file.
func WithMaxFileSize(n int64) ReceiverOption {
	return func(r *Receiver) {
		r.maxSize = n
	}
}

// NewReceiver creates a receiver waiting for a start message.
func NewReceiver(codec Codec, handler ReceiveHandler, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		codec:   codec,
		handler: handler,
		maxSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleMessage processes one channel message. Messages after completion or
// failure are ignored.
func (r *Receiver) HandleMessage(isString bool, data []byte) {
	r.mu.Lock()
	r.handleLocked(isString, data)
	events := r.takeEvents()
	r.mu.Unlock()

	for _, ev := range events {
		ev()
	}
}

// HandleClose reports the channel closing. Before completion it fails the
// batch with ErrChannelClosed.
func (r *Receiver) HandleClose() {
	r.mu.Lock()
	if r.state == awaitingStart || r.state == receiving {
		r.fail(ErrChannelClosed)
	}
	events := r.takeEvents()
	r.mu.Unlock()

	for _, ev := range events {
		ev()
	}
}

// Done reports whether the batch has completed or failed.
func (r *Receiver) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == completed || r.state == failed
}

// Manifest returns the announced files, or nil before start.
func (r *Receiver) Manifest() Manifest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(Manifest(nil), r.manifest...)
}

func (r *Receiver) handleLocked(isString bool, data []byte) {
	if r.state == completed || r.state == failed {
		return
	}

	frame, err := r.codec.Decode(isString, data)
	if err != nil {
		r.fail(err)
		return
	}

	if frame.Control != nil {
		r.handleControl(frame.Control)
		return
	}
	r.handleChunk(frame.Chunk)
}

func (r *Receiver) handleControl(c *Control) {
	switch c.Type {
	case MessageTypeStart:
		if r.state != awaitingStart {
			r.fail(WrapError("start", ErrMalformedControl, "batch already started"))
			return
		}
		for _, f := range c.Files {
			if f.Size < 0 {
				r.fail(NewFileError("start", f.Name, ErrSizeMismatch))
				return
			}
			if f.Size > r.maxSize {
				r.fail(NewFileError("start", f.Name, ErrFileTooLarge))
				return
			}
		}

		r.manifest = append(Manifest(nil), c.Files...)
		r.state = receiving
		r.progress = newProgressCounter(r.manifest.TotalSize(), func(pct int) {
			r.emit(func() { r.handler.Progress(pct) })
		})
		r.advance()

	case MessageTypeEnd:
		// Completion already ignores further messages, so an end seen here
		// means bytes are missing.
		r.fail(WrapError("end", ErrSizeMismatch, "end before all bytes arrived"))

	default:
		// Unknown control types are left for newer peers.
	}
}

func (r *Receiver) handleChunk(chunk []byte) {
	if r.state != receiving {
		r.fail(NewError("chunk", ErrUnexpectedChunk))
		return
	}

	meta := r.manifest[r.index]
	if r.received+int64(len(chunk)) > meta.Size {
		r.fail(&TransferError{Op: "receive", File: meta.Name, Err: ErrSizeMismatch, Details: "more bytes than declared"})
		return
	}

	r.chunks = append(r.chunks, append([]byte(nil), chunk...))
	r.received += int64(len(chunk))
	r.progress.add(len(chunk))

	if r.received == meta.Size {
		r.finalize()
		r.advance()
	}
}

// advance finalizes zero-size files at the cursor and completes the batch
// once the cursor passes the last entry.
func (r *Receiver) advance() {
	for r.index < len(r.manifest) && r.manifest[r.index].Size == 0 {
		r.finalize()
	}
	if r.index >= len(r.manifest) {
		r.state = completed
		r.progress.finish()
		r.emit(r.handler.BatchComplete)
	}
}

func (r *Receiver) finalize() {
	meta := r.manifest[r.index]
	data := make([]byte, 0, r.received)
	for _, c := range r.chunks {
		data = append(data, c...)
	}

	meta.Name = files.SanitizeName(meta.Name)
	r.emit(func() { r.handler.FileReceived(meta, data) })

	r.index++
	r.received = 0
	r.chunks = nil
}

func (r *Receiver) fail(err error) {
	name := ""
	if r.state == receiving && r.index < len(r.manifest) {
		name = files.SanitizeName(r.manifest[r.index].Name)
	}
	r.state = failed
	r.chunks = nil
	r.received = 0
	r.emit(func() { r.handler.TransferFailed(name, err) })
}

func (r *Receiver) emit(ev func()) {
	r.pending = append(r.pending, ev)
}

func (r *Receiver) takeEvents() []func() {
	events := r.pending
	r.pending = nil
	return events
}
