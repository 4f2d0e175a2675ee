package transfer

import (
	"io"
	"math"
)

// FileMeta describes one file of a batch.
type FileMeta struct {
	Name     string `json:"name" msgpack:"name"`
	Size     int64  `json:"size" msgpack:"size"`
	MimeType string `json:"type,omitempty" msgpack:"type,omitempty"`
}

// Manifest is the ordered list of files in a batch.
type Manifest []FileMeta

// TotalSize sums the declared sizes.
func (m Manifest) TotalSize() int64 {
	var total int64
	for _, f := range m {
		total += f.Size
	}
	return total
}

// Source is a file the sender can stream.
type Source struct {
	FileMeta
	Open func() (io.ReadCloser, error)
}

// ManifestOf lists the metadata of sources in order.
func ManifestOf(sources []Source) Manifest {
	m := make(Manifest, len(sources))
	for i, s := range sources {
		m[i] = s.FileMeta
	}
	return m
}

// Percent is round(100*done/total), or 100 when total is 0.
func Percent(done, total int64) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(done) * 100 / float64(total)))
}

// progressCounter reports batch progress after every chunk.
type progressCounter struct {
	total int64
	done  int64
	last  int
	emit  func(int)
}

func newProgressCounter(total int64, emit func(int)) *progressCounter {
	return &progressCounter{total: total, last: -1, emit: emit}
}

func (p *progressCounter) add(n int) {
	p.done += int64(n)
	p.report(Percent(p.done, p.total))
}

// finish reports 100 unless it was the last value reported.
func (p *progressCounter) finish() {
	if p.last != 100 {
		p.report(100)
	}
}

func (p *progressCounter) report(pct int) {
	if pct < p.last {
		pct = p.last
	}
	p.last = pct
	if p.emit != nil {
		p.emit(pct)
	}
}
