package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BioHazard786/landrop/internal/app"
	"github.com/BioHazard786/landrop/internal/config"
	"github.com/BioHazard786/landrop/internal/history"
	"github.com/BioHazard786/landrop/internal/protocol"
	"github.com/BioHazard786/landrop/internal/signaling"
	"github.com/BioHazard786/landrop/internal/transfer"
	"github.com/BioHazard786/landrop/internal/ui"
	"github.com/BioHazard786/landrop/internal/webrtc"
)

const welcomeTimeout = 10 * time.Second

var (
	ErrPeerNotFound  = errors.New("no such peer")
	ErrAmbiguousPeer = errors.New("more than one peer matches")
)

// connection is a running node on the relay.
type connection struct {
	client *signaling.Client
	node   *app.Node
	events *app.EventQueue
	config *config.Config
	self   protocol.PeerSummary
	peers  []protocol.PeerSummary

	cancel context.CancelFunc
	done   chan struct{}
}

// LoadConfig resolves configuration from the global flags and opts.
func LoadConfig(opts config.Options) (*config.Config, error) {
	opts.RelayURL = flagRelay
	opts.STUNServer = flagSTUN
	opts.ChunkSize = flagChunkSize
	opts.Codec = flagCodec
	opts.HistoryPath = flagHistory
	if flagTimeout != "" {
		d, err := time.ParseDuration(flagTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout %q: %w", flagTimeout, err)
		}
		opts.Timeout = d
	}

	cfg, err := config.Load(opts)
	if err != nil {
		return nil, transfer.NewError("load config", err)
	}
	return cfg, nil
}

// connect dials the relay, starts a node and waits for its welcome and
// first peer list.
func connect(ctx context.Context, cfg *config.Config) (*connection, error) {
	stopSpinner := ui.RunSpinner("Connecting to relay...")
	defer stopSpinner()

	client, err := signaling.Dial(ctx, cfg.RelayURL)
	if err != nil {
		return nil, transfer.NewError("connect to relay", err)
	}

	events := app.NewEventQueue(256)
	node := app.NewNode(client, webrtc.NewFactory(cfg.ICEServers()), events,
		app.WithChunkSize(cfg.ChunkSize),
		app.WithNegotiationTimeout(cfg.NegotiationTimeout),
	)

	runCtx, cancel := context.WithCancel(ctx)
	c := &connection{
		client: client,
		node:   node,
		events: events,
		config: cfg,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(c.done)
		node.Run(runCtx)
	}()

	timeout := time.After(welcomeTimeout)
	for c.self.ID == "" || c.peers == nil {
		select {
		case ev := <-events.C():
			c.observe(ev)
		case <-c.done:
			c.Close()
			return nil, transfer.NewError("connect to relay", signaling.ErrClosed)
		case <-timeout:
			c.Close()
			return nil, transfer.NewError("connect to relay", errors.New("no welcome from relay"))
		case <-ctx.Done():
			c.Close()
			return nil, ctx.Err()
		}
	}
	return c, nil
}

// observe keeps identity and peer list current.
func (c *connection) observe(ev app.Event) {
	switch ev.Kind {
	case app.EventWelcomed:
		c.self = ev.Self
	case app.EventPeersChanged:
		c.peers = ev.Peers
		if c.peers == nil {
			c.peers = []protocol.PeerSummary{}
		}
	}
}

// Close stops the node and drops the relay connection.
func (c *connection) Close() {
	c.cancel()
	c.client.Close()
	// Observer calls block on a full queue; keep draining until Run is done.
	for {
		select {
		case <-c.done:
			return
		case <-c.events.C():
		}
	}
}

// openHistory opens the journal, warning instead of failing.
func openHistory(cfg *config.Config) *history.Store {
	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		ui.PrintWarningf("Transfer history unavailable: %v", err)
		return nil
	}
	return store
}

func record(store *history.Store, r history.Record) {
	if store == nil {
		return
	}
	if err := store.Add(&r); err != nil {
		ui.PrintWarningf("Could not record transfer: %v", err)
	}
}

// resolvePeer finds a peer by exact id, then by case-insensitive display
// name, then by unique name prefix.
func resolvePeer(peers []protocol.PeerSummary, query string) (protocol.PeerSummary, error) {
	for _, p := range peers {
		if p.ID == query {
			return p, nil
		}
	}

	var exact, prefix []protocol.PeerSummary
	q := strings.ToLower(strings.TrimSpace(query))
	for _, p := range peers {
		name := strings.ToLower(p.DeviceName)
		switch {
		case name == q:
			exact = append(exact, p)
		case q != "" && strings.HasPrefix(name, q):
			prefix = append(prefix, p)
		}
	}

	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(exact) > 1:
		return protocol.PeerSummary{}, fmt.Errorf("%w: %q", ErrAmbiguousPeer, query)
	case len(prefix) == 1:
		return prefix[0], nil
	case len(prefix) > 1:
		return protocol.PeerSummary{}, fmt.Errorf("%w: %q", ErrAmbiguousPeer, query)
	}
	return protocol.PeerSummary{}, fmt.Errorf("%w: %q", ErrPeerNotFound, query)
}

func peerName(peers []protocol.PeerSummary, id string) string {
	for _, p := range peers {
		if p.ID == id {
			return p.DeviceName
		}
	}
	return id
}
