package transfer

import (
	"context"
	"time"
)

// Channel is the ordered, reliable message channel a batch travels over.
// *webrtc.DataChannel from pion satisfies it. Implementations must not
// retain the slices passed to Send.
type Channel interface {
	Send(data []byte) error
	SendText(s string) error
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(th uint64)
	OnBufferedAmountLow(f func())
}

// ChunkSender applies backpressure: callers wait for a window before each
// chunk so the channel's outbound buffer stays under the high-water mark.
type ChunkSender struct {
	channel Channel
	high    uint64
	timeout time.Duration
	low     chan struct{}
}

// NewChunkSender installs the low-threshold callback on ch.
func NewChunkSender(ch Channel, high, low uint64, timeout time.Duration) *ChunkSender {
	s := &ChunkSender{
		channel: ch,
		high:    high,
		timeout: timeout,
		low:     make(chan struct{}, 1),
	}
	ch.SetBufferedAmountLowThreshold(low)
	ch.OnBufferedAmountLow(func() {
		select {
		case s.low <- struct{}{}:
		default:
		}
	})
	return s
}

// WaitForWindow blocks while the buffered amount is at or above the
// high-water mark. It fails with ErrBufferTimeout if the buffer makes no
// progress for the send timeout.
func (s *ChunkSender) WaitForWindow(ctx context.Context) error {
	buffered := s.channel.BufferedAmount()
	if buffered < s.high {
		return nil
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		select {
		case <-s.low:
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			now := s.channel.BufferedAmount()
			if now >= buffered {
				return WrapError("send", ErrBufferTimeout, "buffer not draining")
			}
			buffered = now
			timer.Reset(s.timeout)
		}

		if s.channel.BufferedAmount() < s.high {
			return nil
		}
	}
}

// WaitForDrain polls until the buffer is empty, ctx ends or the drain
// timeout passes.
func (s *ChunkSender) WaitForDrain(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for s.channel.BufferedAmount() > 0 {
		if time.Now().After(deadline) {
			return WrapError("drain", ErrBufferTimeout, "data still buffered")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
