package files

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoFiles is returned when nothing was given to send.
var ErrNoFiles = errors.New("no files specified")

// FileInfo holds information about a file to be sent
type FileInfo struct {
	// Path is the absolute path to the file
	Path string

	// Name is the filename (without directory)
	Name string

	// Size is the file size in bytes
	Size int64

	// Type is the MIME type of the file (e.g., "application/pdf", "text/plain")
	Type string
}

// Open opens the file for reading.
func (f FileInfo) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// ValidateFiles checks that every path is a readable regular file. Empty
// files are allowed. All problems are reported together.
func ValidateFiles(paths []string) ([]FileInfo, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	var infos []FileInfo
	var problems []string
	for _, path := range paths {
		info, err := validateSingleFile(path)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		infos = append(infos, info)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("file validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return infos, nil
}

func validateSingleFile(path string) (FileInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: failed to get absolute path: %w", path, err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, fmt.Errorf("%s: file does not exist", path)
		}
		return FileInfo{}, fmt.Errorf("%s: failed to stat file: %w", path, err)
	}
	if stat.IsDir() {
		return FileInfo{}, fmt.Errorf("%s: is a directory", path)
	}
	if !stat.Mode().IsRegular() {
		return FileInfo{}, fmt.Errorf("%s: not a regular file", path)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: cannot open file (check permissions): %w", path, err)
	}
	file.Close()

	return FileInfo{
		Path: absPath,
		Name: filepath.Base(absPath),
		Size: stat.Size(),
		Type: DetectType(absPath),
	}, nil
}

// DetectType guesses a MIME type from the extension.
func DetectType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// TotalSize returns the total size of all files
func TotalSize(infos []FileInfo) int64 {
	var total int64
	for _, f := range infos {
		total += f.Size
	}
	return total
}
