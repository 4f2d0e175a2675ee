package transfer

import (
	"context"
	"errors"
	"io"
	"time"
)

// Sender streams a batch of files over one channel.
type Sender struct {
	channel      Channel
	codec        Codec
	chunkSize    int
	high, low    uint64
	sendTimeout  time.Duration
	drainTimeout time.Duration
	endMarker    bool
	onProgress   func(pct int)
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithChunkSize sets the maximum chunk payload.
func WithChunkSize(n int) SenderOption {
	return func(s *Sender) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithWaterMarks overrides the backpressure thresholds.
func WithWaterMarks(high, low uint64) SenderOption {
	return func(s *Sender) {
		s.high, s.low = high, low
	}
}

// WithTimeouts overrides the window and drain timeouts.
func WithTimeouts(send, drain time.Duration) SenderOption {
	return func(s *Sender) {
		s.sendTimeout, s.drainTimeout = send, drain
	}
}

// WithEndMarker makes the sender follow the last chunk with an end message.
func WithEndMarker(on bool) SenderOption {
	return func(s *Sender) {
		s.endMarker = on
	}
}

// WithSendProgress registers a callback for batch percentages.
func WithSendProgress(f func(pct int)) SenderOption {
	return func(s *Sender) {
		s.onProgress = f
	}
}

// NewSender creates a sender for ch using codec.
func NewSender(ch Channel, codec Codec, opts ...SenderOption) *Sender {
	s := &Sender{
		channel:      ch,
		codec:        codec,
		chunkSize:    DefaultChunkSize,
		high:         HighWaterMark,
		low:          LowWaterMark,
		sendTimeout:  SendTimeout,
		drainTimeout: DrainTimeout,
		endMarker:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendFiles sends the start message, every file's chunks in order and the
// optional end marker, then waits for the channel buffer to drain.
func (s *Sender) SendFiles(ctx context.Context, files []Source) error {
	manifest := ManifestOf(files)
	chunks := NewChunkSender(s.channel, s.high, s.low, s.sendTimeout)
	progress := newProgressCounter(manifest.TotalSize(), s.onProgress)

	if err := s.codec.SendControl(s.channel, Control{Type: MessageTypeStart, Files: manifest}); err != nil {
		return NewError("send start", err)
	}

	buf := make([]byte, s.chunkSize)
	for _, f := range files {
		if err := s.sendFile(ctx, chunks, f, buf, progress); err != nil {
			return err
		}
	}

	if s.endMarker {
		if err := s.codec.SendControl(s.channel, Control{Type: MessageTypeEnd}); err != nil {
			return NewError("send end", err)
		}
	}

	if err := chunks.WaitForDrain(ctx, s.drainTimeout); err != nil {
		return err
	}
	progress.finish()
	return nil
}

func (s *Sender) sendFile(ctx context.Context, chunks *ChunkSender, f Source, buf []byte, progress *progressCounter) error {
	rc, err := f.Open()
	if err != nil {
		return NewFileError("open", f.Name, err)
	}
	defer rc.Close()

	remaining := f.Size
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := chunks.WaitForWindow(ctx); err != nil {
			return err
		}

		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(rc, buf[:n]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return &TransferError{Op: "read", File: f.Name, Err: ErrSizeMismatch, Details: "file shorter than declared"}
			}
			return NewFileError("read", f.Name, err)
		}

		if err := s.codec.SendChunk(s.channel, buf[:n]); err != nil {
			return NewFileError("send", f.Name, err)
		}
		remaining -= n
		progress.add(int(n))
	}

	var extra [1]byte
	if n, _ := io.ReadFull(rc, extra[:]); n > 0 {
		return &TransferError{Op: "read", File: f.Name, Err: ErrSizeMismatch, Details: "file longer than declared"}
	}
	return nil
}
