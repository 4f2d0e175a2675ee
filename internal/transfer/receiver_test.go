package transfer

import (
	"errors"
	"testing"
)

func startMsg(t *testing.T, files ...FileMeta) []byte {
	t.Helper()
	data, err := jsonControl(Control{Type: MessageTypeStart, Files: files})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func jsonControl(c Control) ([]byte, error) {
	ch := &loopChannel{}
	if err := (JSONCodec{}).SendControl(ch, c); err != nil {
		return nil, err
	}
	return ch.messages()[0].data, nil
}

func TestReceiver_ZeroSizeAndEmptyManifest(t *testing.T) {
	rec := &recorder{}
	r := NewReceiver(JSONCodec{}, rec)
	r.HandleMessage(true, startMsg(t))

	if rec.completed != 1 || len(rec.files) != 0 {
		t.Fatalf("empty manifest: completed = %d, files = %d", rec.completed, len(rec.files))
	}
	if len(rec.progress) != 1 || rec.progress[0] != 100 {
		t.Errorf("progress = %v, want [100]", rec.progress)
	}

	rec = &recorder{}
	r = NewReceiver(JSONCodec{}, rec)
	r.HandleMessage(true, startMsg(t, FileMeta{Name: "e1", Size: 0}, FileMeta{Name: "mid", Size: 3}, FileMeta{Name: "e2", Size: 0}))
	if len(rec.files) != 1 || rec.files[0].Name != "e1" {
		t.Fatalf("leading empty file not finalized: %+v", rec.files)
	}

	r.HandleMessage(false, []byte("abc"))
	if len(rec.files) != 3 || rec.files[2].Name != "e2" || string(rec.data[1]) != "abc" {
		t.Fatalf("files = %+v", rec.files)
	}
	if len(rec.data[0]) != 0 || rec.completed != 1 {
		t.Errorf("completed = %d", rec.completed)
	}
}

func TestReceiver_SanitizesNames(t *testing.T) {
	rec := &recorder{}
	r := NewReceiver(JSONCodec{}, rec)
	r.HandleMessage(true, startMsg(t, FileMeta{Name: "../../.ssh/authorized_keys", Size: 1}))
	r.HandleMessage(false, []byte{1})

	if len(rec.files) != 1 || rec.files[0].Name != "authorized_keys" {
		t.Fatalf("files = %+v", rec.files)
	}
}

func TestReceiver_Failures(t *testing.T) {
	tests := []struct {
		name     string
		feed     func(t *testing.T, r *Receiver)
		want     error
		wantFile string
	}{
		{
			name: "chunk before start",
			feed: func(t *testing.T, r *Receiver) {
				r.HandleMessage(false, []byte("x"))
			},
			want: ErrUnexpectedChunk,
		},
		{
			name: "chunk past declared size",
			feed: func(t *testing.T, r *Receiver) {
				r.HandleMessage(true, startMsg(t, FileMeta{Name: "a", Size: 4}))
				r.HandleMessage(false, []byte("abc"))
				r.HandleMessage(false, []byte("de"))
			},
			want:     ErrSizeMismatch,
			wantFile: "a",
		},
		{
			name: "end before completion",
			feed: func(t *testing.T, r *Receiver) {
				r.HandleMessage(true, startMsg(t, FileMeta{Name: "a", Size: 4}))
				r.HandleMessage(false, []byte("ab"))
				data, _ := jsonControl(Control{Type: MessageTypeEnd})
				r.HandleMessage(true, data)
			},
			want:     ErrSizeMismatch,
			wantFile: "a",
		},
		{
			name: "channel closed mid file",
			feed: func(t *testing.T, r *Receiver) {
				r.HandleMessage(true, startMsg(t, FileMeta{Name: "a", Size: 1}, FileMeta{Name: "b", Size: 4}))
				r.HandleMessage(false, []byte("1"))
				r.HandleMessage(false, []byte("22"))
				r.HandleClose()
			},
			want:     ErrChannelClosed,
			wantFile: "b",
		},
		{
			name: "negative size",
			feed: func(t *testing.T, r *Receiver) {
				r.HandleMessage(true, startMsg(t, FileMeta{Name: "a", Size: -1}))
			},
			want: ErrSizeMismatch,
		},
		{
			name: "too large",
			feed: func(t *testing.T, r *Receiver) {
				r.HandleMessage(true, startMsg(t, FileMeta{Name: "a", Size: 1 << 20}))
			},
			want: ErrFileTooLarge,
		},
		{
			name: "garbage control",
			feed: func(t *testing.T, r *Receiver) {
				r.HandleMessage(true, []byte("{"))
			},
			want: ErrMalformedControl,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			r := NewReceiver(JSONCodec{}, rec, WithMaxFileSize(1024))
			tt.feed(t, r)

			if len(rec.failures) != 1 || !errors.Is(rec.failures[0], tt.want) {
				t.Fatalf("failures = %v, want one %v", rec.failures, tt.want)
			}
			if rec.failedOn[0] != tt.wantFile {
				t.Errorf("failed file = %q, want %q", rec.failedOn[0], tt.wantFile)
			}
			if rec.completed != 0 {
				t.Error("failed batch reported completion")
			}
			if !r.Done() {
				t.Error("Done() = false after failure")
			}

			// Nothing more is reported once failed.
			before := len(rec.files)
			r.HandleMessage(false, []byte("zz"))
			r.HandleClose()
			if len(rec.failures) != 1 || len(rec.files) != before {
				t.Errorf("receiver kept reporting after failure: %v", rec.failures)
			}
		})
	}
}

func TestReceiver_IgnoresAfterCompletion(t *testing.T) {
	rec := &recorder{}
	r := NewReceiver(MsgpackCodec{}, rec)
	ch := &loopChannel{deliver: r.HandleMessage}

	codec := MsgpackCodec{}
	codec.SendControl(ch, Control{Type: MessageTypeStart, Files: []FileMeta{{Name: "a", Size: 2}}})
	codec.SendChunk(ch, []byte("hi"))
	codec.SendControl(ch, Control{Type: MessageTypeEnd})
	codec.SendChunk(ch, []byte("extra"))
	r.HandleClose()

	if rec.completed != 1 || len(rec.failures) != 0 || len(rec.files) != 1 {
		t.Fatalf("completed = %d, failures = %v, files = %d", rec.completed, rec.failures, len(rec.files))
	}
}

func TestReceiver_CopiesChunks(t *testing.T) {
	rec := &recorder{}
	r := NewReceiver(JSONCodec{}, rec)
	r.HandleMessage(true, startMsg(t, FileMeta{Name: "a", Size: 4}))

	buf := []byte("ab")
	r.HandleMessage(false, buf)
	buf[0], buf[1] = 'x', 'y'
	r.HandleMessage(false, []byte("cd"))

	if string(rec.data[0]) != "abcd" {
		t.Errorf("data = %q, want abcd", rec.data[0])
	}
}

func TestReceiver_FinalizesAtFileBoundaries(t *testing.T) {
	tests := []struct {
		name         string
		manifest     []FileMeta
		chunks       []int
		wantFiles    []int
		wantProgress []int
	}{
		{
			name:         "two files in 16 byte chunks",
			manifest:     []FileMeta{{Name: "a", Size: 10}, {Name: "b", Size: 25}},
			chunks:       []int{10, 16, 9},
			wantFiles:    []int{1, 1, 2},
			wantProgress: []int{29, 74, 100},
		},
		{
			name:         "single exact chunk",
			manifest:     []FileMeta{{Name: "a", Size: 16}},
			chunks:       []int{16},
			wantFiles:    []int{1},
			wantProgress: []int{100},
		},
		{
			name:         "empty file between",
			manifest:     []FileMeta{{Name: "a", Size: 4}, {Name: "e", Size: 0}, {Name: "b", Size: 4}},
			chunks:       []int{4, 4},
			wantFiles:    []int{2, 3},
			wantProgress: []int{50, 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			r := NewReceiver(JSONCodec{}, rec)
			r.HandleMessage(true, startMsg(t, tt.manifest...))

			for i, n := range tt.chunks {
				r.HandleMessage(false, pattern(n))
				if len(rec.files) != tt.wantFiles[i] {
					t.Fatalf("after chunk %d: files = %d, want %d", i+1, len(rec.files), tt.wantFiles[i])
				}
				done := i == len(tt.chunks)-1
				if (rec.completed == 1) != done {
					t.Fatalf("after chunk %d: completed = %d", i+1, rec.completed)
				}
			}

			for i, f := range rec.files {
				if f.Name != tt.manifest[i].Name || int64(len(rec.data[i])) != tt.manifest[i].Size {
					t.Errorf("file %d = %q (%d bytes), want %q (%d)", i, f.Name, len(rec.data[i]), tt.manifest[i].Name, tt.manifest[i].Size)
				}
			}
			if !equalInts(rec.progress, tt.wantProgress) {
				t.Errorf("progress = %v, want %v", rec.progress, tt.wantProgress)
			}
		})
	}
}
