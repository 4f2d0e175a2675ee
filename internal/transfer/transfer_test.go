package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func checkProgress(t *testing.T, got []int) {
	t.Helper()
	if len(got) == 0 || got[len(got)-1] != 100 {
		t.Fatalf("progress %v does not end at 100", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("progress %v is not monotonic", got)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	const chunk = 16
	sizes := []struct {
		name string
		n    int
	}{
		{"empty", 0},
		{"smaller than chunk", 5},
		{"exactly one chunk", chunk},
		{"several chunks", 40},
	}

	for _, codecName := range []string{CodecJSON, CodecMsgpack} {
		for _, sz := range sizes {
			t.Run(codecName+"/"+sz.name, func(t *testing.T) {
				codec, err := CodecFor(codecName)
				if err != nil {
					t.Fatalf("CodecFor() error = %v", err)
				}

				rec := &recorder{}
				recv := NewReceiver(codec, rec)
				ch := &loopChannel{deliver: recv.HandleMessage}

				var sent []int
				content := pattern(sz.n)
				s := NewSender(ch, codec, WithChunkSize(chunk), WithSendProgress(func(p int) { sent = append(sent, p) }))
				if err := s.SendFiles(context.Background(), []Source{memSource("f.bin", content)}); err != nil {
					t.Fatalf("SendFiles() error = %v", err)
				}

				if rec.completed != 1 || len(rec.failures) != 0 {
					t.Fatalf("completed = %d, failures = %v", rec.completed, rec.failures)
				}
				if len(rec.data) != 1 || !bytes.Equal(rec.data[0], content) || rec.files[0].Name != "f.bin" {
					t.Fatalf("received %d files, first %q", len(rec.data), rec.files)
				}
				checkProgress(t, sent)
				checkProgress(t, rec.progress)
			})
		}
	}
}

func TestSender_ChunkBoundaries(t *testing.T) {
	ch := &loopChannel{}
	var progress []int
	s := NewSender(ch, JSONCodec{}, WithChunkSize(16), WithEndMarker(false), WithSendProgress(func(p int) { progress = append(progress, p) }))

	err := s.SendFiles(context.Background(), []Source{
		memSource("a", pattern(10)),
		memSource("b", pattern(25)),
	})
	if err != nil {
		t.Fatalf("SendFiles() error = %v", err)
	}

	msgs := ch.messages()
	if len(msgs) != 4 {
		t.Fatalf("sent %d messages, want start + 3 chunks", len(msgs))
	}

	var start Control
	if !msgs[0].isString {
		t.Fatal("start should be a text message")
	}
	if err := json.Unmarshal(msgs[0].data, &start); err != nil {
		t.Fatalf("start: %v", err)
	}
	if start.Type != MessageTypeStart || len(start.Files) != 2 || start.Files[1].Size != 25 {
		t.Fatalf("start = %+v", start)
	}

	var sizes []int
	for _, m := range msgs[1:] {
		if m.isString {
			t.Fatal("chunks must be binary")
		}
		sizes = append(sizes, len(m.data))
	}
	if want := []int{10, 16, 9}; !equalInts(sizes, want) {
		t.Errorf("chunk sizes = %v, want %v", sizes, want)
	}
	if want := []int{29, 74, 100}; !equalInts(progress, want) {
		t.Errorf("progress = %v, want %v", progress, want)
	}
}

func TestSender_EndMarkerMsgpack(t *testing.T) {
	ch := &loopChannel{}
	s := NewSender(ch, MsgpackCodec{}, WithChunkSize(4))
	if err := s.SendFiles(context.Background(), []Source{memSource("x", []byte("hello"))}); err != nil {
		t.Fatalf("SendFiles() error = %v", err)
	}

	msgs := ch.messages()
	var last msgpackRecord
	if err := msgpack.Unmarshal(msgs[len(msgs)-1].data, &last); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if last.Type != MessageTypeEnd {
		t.Errorf("last record type = %q, want end", last.Type)
	}
	for _, m := range msgs {
		if m.isString {
			t.Error("msgpack codec sent a text message")
		}
	}
}

func TestSender_SizeMismatch(t *testing.T) {
	tests := []struct {
		name string
		src  Source
	}{
		{"shorter", sourceWithSize("short", 10, pattern(4))},
		{"longer", sourceWithSize("long", 4, pattern(10))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSender(&loopChannel{}, JSONCodec{}, WithChunkSize(16))
			err := s.SendFiles(context.Background(), []Source{tt.src})
			if !errors.Is(err, ErrSizeMismatch) {
				t.Fatalf("SendFiles() error = %v, want ErrSizeMismatch", err)
			}
		})
	}
}

func TestSender_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewSender(&loopChannel{}, JSONCodec{})
	if err := s.SendFiles(ctx, []Source{memSource("x", pattern(100))}); !errors.Is(err, context.Canceled) {
		t.Fatalf("SendFiles() error = %v, want context.Canceled", err)
	}
}

func TestChunkSender_WaitsForLowThreshold(t *testing.T) {
	ch := &loopChannel{}
	cs := NewChunkSender(ch, 100, 20, time.Second)
	ch.setBuffered(150)

	done := make(chan error, 1)
	go func() { done <- cs.WaitForWindow(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("WaitForWindow() returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	ch.setBuffered(10)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForWindow() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForWindow() did not wake on low threshold")
	}
}

func TestChunkSender_TimesOutWhenStuck(t *testing.T) {
	ch := &loopChannel{}
	cs := NewChunkSender(ch, 100, 20, 30*time.Millisecond)
	ch.setBuffered(200)

	if err := cs.WaitForWindow(context.Background()); !errors.Is(err, ErrBufferTimeout) {
		t.Fatalf("WaitForWindow() error = %v, want ErrBufferTimeout", err)
	}
}

func TestChunkSender_Drain(t *testing.T) {
	ch := &loopChannel{}
	cs := NewChunkSender(ch, 100, 20, time.Second)
	ch.setBuffered(5)

	go func() {
		time.Sleep(60 * time.Millisecond)
		ch.setBuffered(0)
	}()
	if err := cs.WaitForDrain(context.Background(), time.Second); err != nil {
		t.Fatalf("WaitForDrain() error = %v", err)
	}

	ch.setBuffered(5)
	if err := cs.WaitForDrain(context.Background(), 10*time.Millisecond); !errors.Is(err, ErrBufferTimeout) {
		t.Fatalf("WaitForDrain() error = %v, want ErrBufferTimeout", err)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		done, total int64
		want        int
	}{
		{0, 0, 100},
		{0, 10, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 200, 1},
		{1, 201, 0},
		{10, 10, 100},
	}
	for _, tt := range tests {
		if got := Percent(tt.done, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}

func TestCodecFor(t *testing.T) {
	if c, err := CodecFor(""); err != nil || c.Name() != CodecJSON {
		t.Errorf("CodecFor(\"\") = %v, %v", c, err)
	}
	if _, err := CodecFor("xml"); !errors.Is(err, ErrUnknownCodec) {
		t.Errorf("CodecFor(xml) error = %v", err)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
