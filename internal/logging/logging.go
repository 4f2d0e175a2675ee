package logging

import (
	"log/slog"
	"os"
)

// Init installs a text handler on stderr as the default logger. An explicit
// level wins over LOG_LEVEL; fallback applies when neither names a level.
func Init(level string, fallback slog.Level) slog.Level {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}

	lvl, ok := ParseLevel(level)
	if !ok {
		lvl = fallback
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: lvl,
		}),
	)
	slog.SetDefault(logger)
	return lvl
}

// ParseLevel maps the accepted level names onto slog levels.
func ParseLevel(s string) (slog.Level, bool) {
	switch s {
	case "dev", "development", "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "production", "prod":
		return slog.LevelError, true
	}
	return slog.LevelError, false
}
