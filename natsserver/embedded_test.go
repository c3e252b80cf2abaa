package natsserver

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func startTestServer(t *testing.T) *EmbeddedNATS {
	t.Helper()
	srv, err := New(Config{Port: -1})
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestNewPicksRandomPort(t *testing.T) {
	a := startTestServer(t)
	b := startTestServer(t)

	if a.Port() <= 0 || b.Port() <= 0 {
		t.Fatalf("expected real ports, got %d and %d", a.Port(), b.Port())
	}
	if a.Port() == b.Port() {
		t.Fatalf("two servers share port %d", a.Port())
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	srv := startTestServer(t)

	received := make(chan []byte, 1)
	if _, err := srv.Subscribe("events.test", func(msg *nats.Msg) {
		received <- msg.Data
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	payload := []byte(`{"id":1}`)
	if err := srv.Publish("events.test", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != string(payload) {
			t.Fatalf("payload mangled: %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message never arrived")
	}
}

func TestExternalClientsCanConnect(t *testing.T) {
	srv := startTestServer(t)

	conn, err := nats.Connect(srv.Address())
	if err != nil {
		t.Fatalf("dial %s: %v", srv.Address(), err)
	}
	defer conn.Close()

	received := make(chan struct{}, 1)
	if _, err := conn.Subscribe("events.external", func(*nats.Msg) {
		received <- struct{}{}
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := srv.Publish("events.external", []byte("x")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("external subscriber never got the message")
	}
}

func TestGetStatsCountsPublishes(t *testing.T) {
	srv := startTestServer(t)

	if _, err := srv.Subscribe("events.stats", func(*nats.Msg) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	const n = 5
	for i := 0; i < n; i++ {
		if err := srv.Publish("events.stats", []byte("x")); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	stats := srv.GetStats()
	if stats.EventsPublished != n {
		t.Fatalf("expected %d published, got %d", n, stats.EventsPublished)
	}
	if stats.EventsDropped != 0 {
		t.Fatalf("expected no drops, got %d", stats.EventsDropped)
	}
	if stats.Clients < 1 {
		t.Fatalf("internal client missing from stats: %+v", stats)
	}
	if stats.Subscriptions < 1 {
		t.Fatalf("subscription missing from stats: %+v", stats)
	}
}

func TestPublishAfterShutdownIsCountedAsDropped(t *testing.T) {
	srv, err := New(Config{Port: -1})
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	srv.Shutdown()

	if err := srv.Publish("events.gone", []byte("x")); err == nil {
		t.Fatal("expected an error publishing on a closed connection")
	}
	if got := srv.GetStats().EventsDropped; got != 1 {
		t.Fatalf("expected 1 dropped, got %d", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 4233 {
		t.Fatalf("unexpected default port %d", cfg.Port)
	}
	if cfg.MaxPayload <= 0 || cfg.MaxPendingBytes <= 0 {
		t.Fatalf("limits must be positive: %+v", cfg)
	}
}
