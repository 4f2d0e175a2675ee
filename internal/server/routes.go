package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/landrop/internal/relay"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Browsers on the LAN load the page from wherever; origin is not checked.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewRouter registers the relay's HTTP endpoints.
func NewRouter(hub *relay.Hub, sendBuffer int) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", HealthCheck)
	mux.HandleFunc("GET /peers", ListPeers(hub))
	mux.HandleFunc("/ws", ServeWs(hub, sendBuffer))
	return mux
}

// HealthCheck reports that the process is up.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// ListPeers returns the connected sessions as JSON.
func ListPeers(hub *relay.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peers, err := hub.Snapshot(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(peers); err != nil {
			slog.Debug("failed to write peer list", "error", err)
		}
	}
}

// ServeWs returns an http.HandlerFunc that upgrades the request and hands
// the connection to the hub.
func ServeWs(hub *relay.Hub, sendBuffer int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := relay.NewClient(hub, conn, sendBuffer)
		if !hub.Register(client) {
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}
