package ui

import (
	"fmt"
	"time"
)

const (
	kib = 1024
	mib = kib * 1024
	gib = mib * 1024
)

// FormatSize formats bytes to a human readable string.
func FormatSize(bytes int64) string {
	switch {
	case bytes >= gib:
		return fmt.Sprintf("%.2f GB", float64(bytes)/gib)
	case bytes >= mib:
		return fmt.Sprintf("%.2f MB", float64(bytes)/mib)
	case bytes >= kib:
		return fmt.Sprintf("%.2f KB", float64(bytes)/kib)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatSpeed formats a rate in bytes per second.
func FormatSpeed(bytesPerSecond float64) string {
	switch {
	case bytesPerSecond >= gib:
		return fmt.Sprintf("%.2f GB/s", bytesPerSecond/gib)
	case bytesPerSecond >= mib:
		return fmt.Sprintf("%.2f MB/s", bytesPerSecond/mib)
	case bytesPerSecond >= kib:
		return fmt.Sprintf("%.2f KB/s", bytesPerSecond/kib)
	default:
		return fmt.Sprintf("%.0f B/s", bytesPerSecond)
	}
}

// FormatDuration formats d as 4s, 2m5s or 1h3m.
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()
	if seconds < 1 {
		return "<1s"
	}
	if seconds < 60 {
		return fmt.Sprintf("%.0fs", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm%ds", int(seconds)/60, int(seconds)%60)
	}
	return fmt.Sprintf("%dh%dm", int(seconds)/3600, (int(seconds)%3600)/60)
}

// Truncate shortens s to maxLen runes, ending with "..." when cut.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// speed returns bytes per second over elapsed, or 0.
func speed(bytes int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed.Seconds()
}
