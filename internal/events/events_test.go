// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dealhound/dealhound/internal/config"
	"github.com/dealhound/dealhound/internal/ledger"
	"github.com/dealhound/dealhound/internal/metrics"
	"github.com/dealhound/dealhound/internal/store"
)

func TestClickEventRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := NewClickRecorded("notion-pro", "productivity", "cta:value", at)
	if e.EventID == "" {
		t.Fatal("event ID not populated")
	}

	msg, err := e.Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if msg.UUID != e.EventID {
		t.Errorf("message UUID %q != event ID %q", msg.UUID, e.EventID)
	}
	if got := msg.Metadata.Get("deal"); got != "notion-pro" {
		t.Errorf("deal metadata = %q", got)
	}

	decoded, err := DecodeClick(msg)
	if err != nil {
		t.Fatalf("DecodeClick: %v", err)
	}
	if decoded.EventID != e.EventID || decoded.Deal != e.Deal ||
		decoded.Category != e.Category || decoded.PatternKey != e.PatternKey ||
		!decoded.At.Equal(e.At) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, e)
	}
}

func TestDecodeClickRejectsGarbage(t *testing.T) {
	e := ClickRecorded{Deal: "", Category: "software", At: time.Now()}
	msg, err := e.Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if _, err := DecodeClick(msg); err == nil {
		t.Error("expected error for empty deal slug")
	}
}

func TestNewBusRejectsUnknownTransport(t *testing.T) {
	_, err := NewBus(config.EventsConfig{Transport: "carrier-pigeon"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

// recordingBroadcaster captures fan-out for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []ClickRecorded
}

func (b *recordingBroadcaster) BroadcastClick(e ClickRecorded) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func TestClickRouterAppliesClicksToLedger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus, err := NewBus(config.EventsConfig{Transport: "gochannel"}, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	defer bus.Close()

	actor := ledger.NewActor(ledger.ActorConfig{Ledger: ledger.DefaultConfig()}, store.NewMemoryStore())
	go func() { _ = actor.Serve(ctx) }()

	broadcaster := &recordingBroadcaster{}
	router, err := NewClickRouter(DefaultRouterConfig(), bus.Subscriber, actor, broadcaster, nil, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewClickRouter: %v", err)
	}
	go func() { _ = router.Serve(ctx) }()

	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	pub := NewClickPublisher(TopicClicks, bus.Publisher)
	recordedBefore := testutil.ToFloat64(metrics.ClicksRecorded.WithLabelValues("design"))
	at := time.Now().UTC()
	for i := 0; i < 3; i++ {
		e := NewClickRecorded("figma-deal", "design", "cta:discovery", at.Add(time.Duration(i)*time.Second))
		if err := pub.Publish(ctx, e); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if actor.View().ByDeal["figma-deal"] == 3 && broadcaster.count() == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	snap := actor.View()
	if snap.ByDeal["figma-deal"] != 3 {
		t.Errorf("ledger byDeal = %d, want 3", snap.ByDeal["figma-deal"])
	}
	if snap.ByCategory["design"] != 3 {
		t.Errorf("ledger byCategory = %d, want 3", snap.ByCategory["design"])
	}
	if got := snap.Learning["design"]["cta:discovery"].Clicks; got != 3 {
		t.Errorf("learning clicks = %d, want 3", got)
	}
	if broadcaster.count() != 3 {
		t.Errorf("broadcaster saw %d events, want 3", broadcaster.count())
	}

	// The actor is the only place that counts recorded clicks; one
	// increment per click, no second count on the router path.
	recorded := testutil.ToFloat64(metrics.ClicksRecorded.WithLabelValues("design")) - recordedBefore
	if recorded != 3 {
		t.Errorf("clicks recorded counter delta = %v, want 3", recorded)
	}
}

func TestClickRouterDropsMalformedPayloads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus, err := NewBus(config.EventsConfig{Transport: "gochannel"}, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	defer bus.Close()

	actor := ledger.NewActor(ledger.ActorConfig{Ledger: ledger.DefaultConfig()}, store.NewMemoryStore())
	go func() { _ = actor.Serve(ctx) }()

	router, err := NewClickRouter(DefaultRouterConfig(), bus.Subscriber, actor, nil, nil, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewClickRouter: %v", err)
	}
	go func() { _ = router.Serve(ctx) }()
	<-router.Running()

	// Garbage payload, then a valid click. The valid click landing proves
	// the garbage was acked rather than wedging the stream.
	pub := NewClickPublisher(TopicClicks, bus.Publisher)
	garbage := NewClickRecorded("x", "y", "", time.Now())
	msg, _ := garbage.Message()
	msg.Payload = []byte("{not json")
	if err := bus.Publisher.Publish(TopicClicks, msg); err != nil {
		t.Fatalf("publish garbage: %v", err)
	}
	if err := pub.Publish(ctx, NewClickRecorded("real-deal", "software", "", time.Now())); err != nil {
		t.Fatalf("publish valid: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if actor.View().ByDeal["real-deal"] == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if actor.View().ByDeal["real-deal"] != 1 {
		t.Error("valid click after garbage payload was not applied")
	}
	if actor.View().TotalClicks != 1 {
		t.Errorf("total clicks = %d, want 1", actor.View().TotalClicks)
	}
}
