package transfer

import "time"

const (
	MessageTypeStart = "start"
	MessageTypeEnd   = "end"
	MessageTypeChunk = "chunk"
)

// Buffer management
const (
	DefaultChunkSize = 64 * 1024
	HighWaterMark    = 2 * 1024 * 1024 // backpressure threshold
	LowWaterMark     = 512 * 1024      // resume threshold

	// DefaultMaxFileSize bounds a single file, since files are reassembled
	// in memory.
	DefaultMaxFileSize = 2 << 30
)

// Timeouts
const (
	SendTimeout  = 60 * time.Second
	DrainTimeout = 30 * time.Second
	drainPoll    = 50 * time.Millisecond
)

// Direction tells progress consumers which side of a transfer they see.
type Direction int

const (
	Sending Direction = iota
	Receiving
)

func (d Direction) String() string {
	if d == Sending {
		return "send"
	}
	return "receive"
}
