package config

import (
	"fmt"
	"os"
	"strconv"
)

// RelayConfig holds the relay server's configuration
type RelayConfig struct {
	Addr       string
	LogLevel   string
	SendBuffer int
}

// RelayOptions carries flag values for the relay
type RelayOptions struct {
	Addr       string
	LogLevel   string
	SendBuffer int
}

// LoadRelay resolves relay settings: flag > env > default.
func LoadRelay(opts RelayOptions) (*RelayConfig, error) {
	buffer := opts.SendBuffer
	if buffer == 0 {
		if v := os.Getenv("LANDROP_SEND_BUFFER"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid LANDROP_SEND_BUFFER %q: %w", v, err)
			}
			buffer = n
		}
	}
	if buffer == 0 {
		buffer = DefaultSendBuffer
	}
	if buffer < 0 {
		return nil, fmt.Errorf("send buffer must be positive, got %d", buffer)
	}

	return &RelayConfig{
		Addr:       firstNonEmpty(opts.Addr, os.Getenv("LANDROP_ADDR"), DefaultRelayAddr),
		LogLevel:   firstNonEmpty(opts.LogLevel, os.Getenv("LOG_LEVEL")),
		SendBuffer: buffer,
	}, nil
}
