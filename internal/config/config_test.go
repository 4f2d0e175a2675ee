package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LANDROP_RELAY", "STUN_SERVER", "LANDROP_CHUNK_SIZE", "LANDROP_TIMEOUT", "LANDROP_CODEC", "LANDROP_HISTORY", "LANDROP_ADDR", "LANDROP_SEND_BUFFER", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RelayURL != DefaultRelayURL {
		t.Errorf("RelayURL = %q", cfg.RelayURL)
	}
	if cfg.STUNServer != DefaultSTUN || len(cfg.ICEServers()) != 1 {
		t.Errorf("STUNServer = %q", cfg.STUNServer)
	}
	if cfg.ChunkSize != DefaultChunkSize || cfg.NegotiationTimeout != DefaultTimeout || cfg.Codec != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
	if want := filepath.Join("/data", "landrop", "history.db"); cfg.HistoryPath != want {
		t.Errorf("HistoryPath = %q, want %q", cfg.HistoryPath, want)
	}
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("LANDROP_RELAY", "10.0.0.5:9000")
	t.Setenv("LANDROP_CHUNK_SIZE", "2048")
	t.Setenv("LANDROP_TIMEOUT", "5s")
	t.Setenv("STUN_SERVER", "none")

	cfg, err := Load(Options{ChunkSize: 4096})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RelayURL != "ws://10.0.0.5:9000/ws" {
		t.Errorf("RelayURL = %q", cfg.RelayURL)
	}
	if cfg.ChunkSize != 4096 {
		t.Errorf("ChunkSize = %d, flag should win", cfg.ChunkSize)
	}
	if cfg.NegotiationTimeout != 5*time.Second {
		t.Errorf("NegotiationTimeout = %s", cfg.NegotiationTimeout)
	}
	if cfg.ICEServers() != nil {
		t.Errorf("STUN should be disabled, got %v", cfg.ICEServers())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		opts Options
		want string
	}{
		{"chunk too small", nil, Options{ChunkSize: 100}, "out of range"},
		{"chunk too large", nil, Options{ChunkSize: 1 << 20}, "out of range"},
		{"chunk env garbage", map[string]string{"LANDROP_CHUNK_SIZE": "big"}, Options{}, "LANDROP_CHUNK_SIZE"},
		{"timeout garbage", map[string]string{"LANDROP_TIMEOUT": "soon"}, Options{}, "LANDROP_TIMEOUT"},
		{"codec", nil, Options{Codec: "xml"}, "unknown codec"},
		{"scheme", nil, Options{RelayURL: "ftp://host"}, "unsupported scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestNormalizeRelayURL(t *testing.T) {
	tests := map[string]string{
		"relay.lan":                 "ws://relay.lan/ws",
		"relay.lan:8080":            "ws://relay.lan:8080/ws",
		"http://relay.lan:8080/":    "ws://relay.lan:8080/ws",
		"https://relay.lan":         "wss://relay.lan/ws",
		"ws://relay.lan:8080/other": "ws://relay.lan:8080/other",
	}
	for in, want := range tests {
		got, err := NormalizeRelayURL(in)
		if err != nil || got != want {
			t.Errorf("NormalizeRelayURL(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}

func TestLoadRelay(t *testing.T) {
	clearEnv(t)
	t.Setenv("LANDROP_ADDR", ":9999")

	cfg, err := LoadRelay(RelayOptions{})
	if err != nil {
		t.Fatalf("LoadRelay() error = %v", err)
	}
	if cfg.Addr != ":9999" || cfg.SendBuffer != DefaultSendBuffer {
		t.Errorf("cfg = %+v", cfg)
	}

	cfg, _ = LoadRelay(RelayOptions{Addr: ":7000", SendBuffer: 8})
	if cfg.Addr != ":7000" || cfg.SendBuffer != 8 {
		t.Errorf("flags ignored: %+v", cfg)
	}

	if _, err := LoadRelay(RelayOptions{SendBuffer: -1}); err == nil {
		t.Error("negative buffer accepted")
	}
}
