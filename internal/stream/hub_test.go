// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package stream

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/dealhound/dealhound/internal/events"
	"github.com/dealhound/dealhound/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func setupHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Serve(ctx) }()
	time.Sleep(10 * time.Millisecond)
	return hub, cancel
}

func testClient(hub *Hub) *Client {
	return &Client{hub: hub, send: make(chan Message, 64)}
}

func register(hub *Hub, c *Client) {
	hub.register <- c
	time.Sleep(20 * time.Millisecond)
}

func TestHubRegisterUnregister(t *testing.T) {
	hub, cancel := setupHub(t)
	defer cancel()

	c := testClient(hub)
	register(hub, c)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("client count = %d, want 1", got)
	}

	hub.unregister <- c
	time.Sleep(20 * time.Millisecond)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("client count after unregister = %d, want 0", got)
	}
	if _, open := <-c.send; open {
		t.Error("send channel not closed on unregister")
	}
}

func TestBroadcastClickFansOutWithInvalidation(t *testing.T) {
	hub, cancel := setupHub(t)
	defer cancel()

	c := testClient(hub)
	register(hub, c)

	e := events.NewClickRecorded("slack-deal", "business", "", time.Now())
	hub.BroadcastClick(e)

	var got []Message
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case msg := <-c.send:
			got = append(got, msg)
		case <-timeout:
			t.Fatalf("received %d messages, want 2", len(got))
		}
	}

	if got[0].Type != MessageTypeClick {
		t.Errorf("first message type = %q, want click", got[0].Type)
	}
	if got[1].Type != MessageTypeRankInvalidated {
		t.Errorf("second message type = %q, want rank_invalidated", got[1].Type)
	}
}

func TestSlowClientDoesNotBlockHub(t *testing.T) {
	hub, cancel := setupHub(t)
	defer cancel()

	slow := &Client{hub: hub, send: make(chan Message)} // unbuffered, never read
	register(hub, slow)
	healthy := testClient(hub)
	register(hub, healthy)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.BroadcastPulse(map[string]int{"i": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on slow client")
	}

	// The healthy client still received frames.
	select {
	case <-healthy.send:
	case <-time.After(2 * time.Second):
		t.Fatal("healthy client starved")
	}
}

func TestServeClosesClientsOnShutdown(t *testing.T) {
	hub, cancel := setupHub(t)

	c := testClient(hub)
	register(hub, c)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-c.send:
			if !open {
				if got := hub.ClientCount(); got != 0 {
					t.Errorf("client count after shutdown = %d, want 0", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("client channel not closed on shutdown")
		}
	}
}
