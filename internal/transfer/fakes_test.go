package transfer

import (
	"bytes"
	"io"
	"sync"
)

type message struct {
	isString bool
	data     []byte
}

// loopChannel records what is sent and optionally forwards it to a receiver.
type loopChannel struct {
	mu        sync.Mutex
	sent      []message
	buffered  uint64
	threshold uint64
	onLow     func()
	deliver   func(isString bool, data []byte)
}

func (c *loopChannel) Send(data []byte) error {
	return c.push(message{data: append([]byte(nil), data...)})
}

func (c *loopChannel) SendText(s string) error {
	return c.push(message{isString: true, data: []byte(s)})
}

func (c *loopChannel) push(m message) error {
	c.mu.Lock()
	c.sent = append(c.sent, m)
	deliver := c.deliver
	c.mu.Unlock()
	if deliver != nil {
		deliver(m.isString, m.data)
	}
	return nil
}

func (c *loopChannel) BufferedAmount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffered
}

func (c *loopChannel) SetBufferedAmountLowThreshold(th uint64) {
	c.mu.Lock()
	c.threshold = th
	c.mu.Unlock()
}

func (c *loopChannel) OnBufferedAmountLow(f func()) {
	c.mu.Lock()
	c.onLow = f
	c.mu.Unlock()
}

func (c *loopChannel) setBuffered(n uint64) {
	c.mu.Lock()
	c.buffered = n
	fire := n <= c.threshold && c.onLow != nil
	f := c.onLow
	c.mu.Unlock()
	if fire {
		f()
	}
}

func (c *loopChannel) messages() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.sent...)
}

// recorder is a ReceiveHandler that keeps everything.
type recorder struct {
	mu        sync.Mutex
	progress  []int
	files     []FileMeta
	data      [][]byte
	completed int
	failures  []error
	failedOn  []string
}

func (r *recorder) Progress(pct int) {
	r.mu.Lock()
	r.progress = append(r.progress, pct)
	r.mu.Unlock()
}

func (r *recorder) FileReceived(meta FileMeta, data []byte) {
	r.mu.Lock()
	r.files = append(r.files, meta)
	r.data = append(r.data, data)
	r.mu.Unlock()
}

func (r *recorder) BatchComplete() {
	r.mu.Lock()
	r.completed++
	r.mu.Unlock()
}

func (r *recorder) TransferFailed(file string, err error) {
	r.mu.Lock()
	r.failedOn = append(r.failedOn, file)
	r.failures = append(r.failures, err)
	r.mu.Unlock()
}

func memSource(name string, content []byte) Source {
	return sourceWithSize(name, int64(len(content)), content)
}

func sourceWithSize(name string, size int64, content []byte) Source {
	return Source{
		FileMeta: FileMeta{Name: name, Size: size},
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}
