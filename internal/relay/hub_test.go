package relay

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/BioHazard786/landrop/internal/protocol"
)

func startHub(t *testing.T, opts ...RegistryOption) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(opts...)
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h
}

func recv(t *testing.T, c *Client) *protocol.Envelope {
	t.Helper()
	select {
	case env, ok := <-c.Send:
		if !ok {
			t.Fatal("send queue closed")
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return nil
}

// barrier waits until the hub has processed everything queued before it.
func barrier(t *testing.T, h *Hub) []protocol.PeerSummary {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	peers, err := h.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	return peers
}

func expectEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case env := <-c.Send:
		t.Fatalf("unexpected message %+v", env)
	default:
	}
}

func join(t *testing.T, h *Hub) (*Client, protocol.Welcome) {
	t.Helper()
	c := NewClient(h, nil, 16)
	if !h.Register(c) {
		t.Fatal("hub stopped")
	}
	env := recv(t, c)
	if env.Type != protocol.TypeWelcome {
		t.Fatalf("first message type = %q, want welcome", env.Type)
	}
	var w protocol.Welcome
	if err := env.DecodePayload(&w); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	return c, w
}

func drain(c *Client) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}

func TestHub_WelcomeThenPeerList(t *testing.T) {
	h := startHub(t)

	a, wa := join(t, h)
	env := recv(t, a)
	if env.Type != protocol.TypeUpdatePeers {
		t.Fatalf("second message type = %q, want updatePeers", env.Type)
	}

	b, wb := join(t, h)
	if wa.ID == wb.ID || wa.DeviceName == wb.DeviceName {
		t.Fatalf("sessions not distinct: %+v %+v", wa, wb)
	}

	var list protocol.UpdatePeers
	if err := recv(t, a).DecodePayload(&list); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if len(list.Peers) != 2 || list.Peers[0].ID != wa.ID || list.Peers[1].ID != wb.ID {
		t.Fatalf("peer list = %+v", list.Peers)
	}
	if recv(t, b).Type != protocol.TypeUpdatePeers {
		t.Fatal("new client did not get the peer list")
	}
}

func TestHub_UnregisterBroadcasts(t *testing.T) {
	h := startHub(t)
	a, _ := join(t, h)
	b, wb := join(t, h)
	barrier(t, h)
	drain(a)
	drain(b)

	h.Unregister(b)
	var list protocol.UpdatePeers
	if err := recv(t, a).DecodePayload(&list); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	for _, p := range list.Peers {
		if p.ID == wb.ID {
			t.Fatalf("departed peer still listed: %+v", list.Peers)
		}
	}

	if _, ok := <-b.Send; ok {
		t.Error("departed client's queue should be closed")
	}

	// Second unregister is a no-op.
	h.Unregister(b)
	barrier(t, h)
	expectEmpty(t, a)
}

func TestHub_RoutesWithStampedSender(t *testing.T) {
	h := startHub(t)
	a, wa := join(t, h)
	b, wb := join(t, h)
	barrier(t, h)
	drain(a)
	drain(b)

	env, err := protocol.Parse([]byte(`{"type":"offer","targetId":"` + wb.ID + `","senderId":"forged","offer":{"type":"offer","sdp":"v=0"},"files":[]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	h.Deliver(a, env)

	got := recv(t, b)
	if got.Type != protocol.TypeOffer || got.SenderID != wa.ID || got.TargetID != "" {
		t.Fatalf("forwarded envelope = %+v", got)
	}
	var offer protocol.Offer
	if err := got.DecodePayload(&offer); err != nil || offer.Offer.SDP != "v=0" {
		t.Fatalf("forwarded payload = %+v, err %v", offer, err)
	}
	expectEmpty(t, a)
}

func TestHub_DropsUnroutable(t *testing.T) {
	h := startHub(t)
	a, _ := join(t, h)
	b, wb := join(t, h)
	barrier(t, h)
	drain(a)
	drain(b)

	for _, raw := range []string{
		`{"type":"answer","targetId":"nobody","answer":{"type":"answer","sdp":""}}`,
		`{"type":"answer","answer":{"type":"answer","sdp":""}}`,
		`{"type":"shout","targetId":"` + wb.ID + `"}`,
		`{"type":"candidate","targetId":"` + wb.ID + `"}`,
	} {
		env, err := protocol.Parse([]byte(raw))
		if err != nil {
			t.Fatalf("Parse(%s) error = %v", raw, err)
		}
		h.Deliver(a, env)
	}
	barrier(t, h)
	expectEmpty(t, a)
	expectEmpty(t, b)

	// The sender's connection survives bad input.
	env, _ := protocol.Parse([]byte(`{"type":"candidate","targetId":"` + wb.ID + `","candidate":{"candidate":"c1"}}`))
	h.Deliver(a, env)
	if got := recv(t, b); got.Type != protocol.TypeCandidate {
		t.Fatalf("got %q, want candidate", got.Type)
	}
}

func TestHub_EvictsSlowClient(t *testing.T) {
	h := startHub(t)
	a, wa := join(t, h)
	barrier(t, h)
	drain(a)

	slow := NewClient(h, nil, 1)
	h.Register(slow)
	peers := barrier(t, h)

	if len(peers) != 1 || peers[0].ID != wa.ID {
		t.Fatalf("peers after eviction = %+v", peers)
	}
	if env := <-slow.Send; env.Type != protocol.TypeWelcome {
		t.Fatalf("slow client first message = %q", env.Type)
	}
	if _, ok := <-slow.Send; ok {
		t.Fatal("slow client's queue should be closed")
	}

	// a saw the join and the re-broadcast after eviction.
	var last protocol.UpdatePeers
	for len(a.Send) > 0 {
		if err := (<-a.Send).DecodePayload(&last); err != nil {
			t.Fatalf("DecodePayload() error = %v", err)
		}
	}
	if len(last.Peers) != 1 {
		t.Errorf("last peer list = %+v, want only a", last.Peers)
	}

	h.Unregister(slow)
	barrier(t, h)
}

func TestHub_RandomChurnKeepsRegistryConsistent(t *testing.T) {
	h := startHub(t)
	rng := rand.New(rand.NewSource(42))

	var live []*Client
	for i := 0; i < 200; i++ {
		if len(live) == 0 || rng.Intn(3) > 0 {
			c := NewClient(h, nil, 512)
			h.Register(c)
			live = append(live, c)
		} else {
			j := rng.Intn(len(live))
			h.Unregister(live[j])
			live = append(live[:j], live[j+1:]...)
		}

		if i%20 == 0 {
			peers := barrier(t, h)
			ids := make(map[string]bool)
			names := make(map[string]bool)
			for _, p := range peers {
				if ids[p.ID] || names[p.DeviceName] {
					t.Fatalf("duplicate in %+v", peers)
				}
				ids[p.ID] = true
				names[p.DeviceName] = true
			}
			if len(peers) != len(live) {
				t.Fatalf("registry has %d sessions, want %d", len(peers), len(live))
			}
			for _, c := range live {
				drain(c)
			}
		}
	}
}

func TestHub_StopClosesQueues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	go h.Run(ctx)

	c := NewClient(h, nil, 8)
	h.Register(c)
	cancel()
	<-h.Done()

	for range c.Send {
	}
	if h.Register(NewClient(h, nil, 8)) {
		t.Error("Register() after stop should report false")
	}
	if _, err := h.Snapshot(context.Background()); err != ErrHubStopped {
		t.Errorf("Snapshot() error = %v, want ErrHubStopped", err)
	}
}
