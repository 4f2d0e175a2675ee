package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const fallbackName = "file"

// SanitizeName reduces a peer-supplied name to a single safe path element.
// Directory parts, separators and control characters are removed; names
// that end up empty or are "." or ".." become "file".
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	switch name {
	case "", ".", "..":
		return fallbackName
	}
	return name
}

// UniquePath returns dir/name, or dir/"name (N).ext" for the first N that
// does not exist yet.
func UniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		path = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, n, ext))
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			return path
		}
	}
}
