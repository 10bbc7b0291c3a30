// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package stream pushes live engine activity to websocket clients:
// applied clicks, ranking invalidations, and analytics pulse completions.
// Delivery is best-effort; a slow client loses messages, never stalls the
// hub.
package stream

import (
	"context"
	"sync"

	"github.com/dealhound/dealhound/internal/events"
	"github.com/dealhound/dealhound/internal/logging"
	"github.com/dealhound/dealhound/internal/metrics"
)

// Message types pushed to clients.
const (
	MessageTypeClick           = "click"
	MessageTypeRankInvalidated = "rank_invalidated"
	MessageTypePulse           = "pulse"
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
)

// Message is the envelope for every websocket frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub tracks connected clients and fans broadcast messages out to them.
// It implements events.Broadcaster and suture.Service.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub. Serve must be running before clients attach.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// BroadcastClick pushes one applied click. Non-blocking: if the broadcast
// queue is full the message is dropped.
func (h *Hub) BroadcastClick(e events.ClickRecorded) {
	h.enqueue(Message{Type: MessageTypeClick, Data: e})
	h.enqueue(Message{Type: MessageTypeRankInvalidated, Data: map[string]string{
		"category": e.Category,
	}})
}

// BroadcastPulse announces a completed analytics pulse.
func (h *Hub) BroadcastPulse(data any) {
	h.enqueue(Message{Type: MessageTypePulse, Data: data})
}

func (h *Hub) enqueue(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		logging.Debug().Str("type", msg.Type).Msg("stream broadcast queue full, dropping")
	}
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs the hub loop until ctx is cancelled, then closes every
// client. Implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		// Lifecycle events take priority over broadcasts so client state
		// is settled before fan-out.
		select {
		case c := <-h.register:
			h.add(c)
			continue
		case c := <-h.unregister:
			h.remove(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.StreamClients.Set(float64(n))
	logging.Info().Int("clients", n).Msg("stream client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.StreamClients.Set(float64(n))
	logging.Info().Int("clients", n).Msg("stream client disconnected")
}

func (h *Hub) fanOut(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow client: drop the frame rather than block the hub.
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.StreamClients.Set(0)
}

func (h *Hub) String() string { return "stream-hub" }
