package files

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sink stores received files.
type Sink interface {
	// Save stores one file and returns where it went.
	Save(name string, data []byte) (string, error)
	Close() error
}

// DirSink writes each file into a directory under a unique name.
type DirSink struct {
	dir string
	mu  sync.Mutex
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	return &DirSink{dir: dir}, nil
}

func (s *DirSink) Save(name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := UniquePath(s.dir, SanitizeName(name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}

func (s *DirSink) Close() error { return nil }

// ZipSink collects every file into one deflated archive.
type ZipSink struct {
	path    string
	file    *os.File
	archive *zip.Writer
	names   map[string]int
	mu      sync.Mutex
}

// NewZipSink creates a uniquely named landrop-<millis>.zip in dir.
func NewZipSink(dir string) (*ZipSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	path := UniquePath(dir, fmt.Sprintf("landrop-%d.zip", time.Now().UnixMilli()))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	return &ZipSink{
		path:    path,
		file:    f,
		archive: zip.NewWriter(f),
		names:   make(map[string]int),
	}, nil
}

// Path is the archive location.
func (s *ZipSink) Path() string { return s.path }

func (s *ZipSink) Save(name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entryName(SanitizeName(name))
	header := &zip.FileHeader{
		Name:     entry,
		Method:   zip.Deflate,
		Modified: time.Now(),
	}
	w, err := s.archive.CreateHeader(header)
	if err != nil {
		return "", fmt.Errorf("add %s to archive: %w", entry, err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("add %s to archive: %w", entry, err)
	}
	return s.path + ":" + entry, nil
}

// entryName disambiguates repeated names inside the archive.
func (s *ZipSink) entryName(name string) string {
	n := s.names[name]
	s.names[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s (%d)%s", name[:len(name)-len(ext)], n, ext)
}

func (s *ZipSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.archive.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("finish archive: %w", err)
	}
	return s.file.Close()
}
