package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default configuration values
const (
	DefaultRelayURL   = "ws://localhost:8080/ws"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
	DefaultChunkSize  = 64 * 1024
	MinChunkSize      = 1024
	MaxChunkSize      = 256 * 1024
	DefaultTimeout    = 30 * time.Second
	DefaultCodec      = "json"
	DefaultRelayAddr  = ":8080"
	DefaultSendBuffer = 256

	// DisableSTUN as the STUN server leaves only host candidates.
	DisableSTUN = "none"
)

const (
	historyFileName = "history.db"
	historyDirName  = "landrop"
	defaultWSPath   = "/ws"
)

// Config holds client configuration
type Config struct {
	// RelayURL is the websocket endpoint of the relay
	RelayURL string

	// STUNServer is the single ICE hint; empty means host candidates only
	STUNServer string

	ChunkSize          int
	NegotiationTimeout time.Duration
	Codec              string
	OutputDir          string
	HistoryPath        string
}

// Options for loading config with CLI flag overrides
type Options struct {
	RelayURL    string
	STUNServer  string
	ChunkSize   int
	Timeout     time.Duration
	Codec       string
	OutputDir   string
	HistoryPath string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	relay := firstNonEmpty(opts.RelayURL, os.Getenv("LANDROP_RELAY"), DefaultRelayURL)
	relayURL, err := NormalizeRelayURL(relay)
	if err != nil {
		return nil, err
	}

	stun := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	if stun == DisableSTUN {
		stun = ""
	}

	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		if v := os.Getenv("LANDROP_CHUNK_SIZE"); v != "" {
			if chunkSize, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("invalid LANDROP_CHUNK_SIZE %q: %w", v, err)
			}
		}
	}
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < MinChunkSize || chunkSize > MaxChunkSize {
		return nil, fmt.Errorf("chunk size %d out of range [%d, %d]", chunkSize, MinChunkSize, MaxChunkSize)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		if v := os.Getenv("LANDROP_TIMEOUT"); v != "" {
			if timeout, err = time.ParseDuration(v); err != nil {
				return nil, fmt.Errorf("invalid LANDROP_TIMEOUT %q: %w", v, err)
			}
		}
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout < 0 {
		return nil, fmt.Errorf("negotiation timeout must be positive, got %s", timeout)
	}

	codec := firstNonEmpty(opts.Codec, os.Getenv("LANDROP_CODEC"), DefaultCodec)
	if codec != "json" && codec != "msgpack" {
		return nil, fmt.Errorf("unknown codec %q (want json or msgpack)", codec)
	}

	historyPath := firstNonEmpty(opts.HistoryPath, os.Getenv("LANDROP_HISTORY"))
	if historyPath == "" {
		historyPath = defaultHistoryPath()
	}

	return &Config{
		RelayURL:           relayURL,
		STUNServer:         stun,
		ChunkSize:          chunkSize,
		NegotiationTimeout: timeout,
		Codec:              codec,
		OutputDir:          firstNonEmpty(opts.OutputDir, "."),
		HistoryPath:        historyPath,
	}, nil
}

// ICEServers returns the configured STUN URLs.
func (c *Config) ICEServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// NormalizeRelayURL accepts ws/wss/http/https URLs or a bare host[:port] and
// returns a websocket URL. A missing path becomes /ws.
func NormalizeRelayURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid relay url %q: %w", raw, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid relay url %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid relay url %q: missing host", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = defaultWSPath
	}
	return u.String(), nil
}

func defaultHistoryPath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), historyDirName, historyFileName)
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, historyDirName, historyFileName)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
