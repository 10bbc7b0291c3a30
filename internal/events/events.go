// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package events carries click traffic over a Watermill message bus. The
// HTTP layer publishes, the ledger actor consumes; the bus decouples
// request latency from ledger writes and fans the same stream out to the
// websocket hub and the DuckDB archiver.
package events

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SchemaVersion is the current ClickRecorded schema version. Consumers
// accept older versions; unknown fields are ignored on decode.
const SchemaVersion = 1

// Topic names. Subject-style so the NATS transport maps them directly.
const (
	// TopicClicks carries ClickRecorded events.
	TopicClicks = "clicks.recorded"

	// TopicPoison receives events that failed all retries.
	TopicPoison = "clicks.poison"
)

// ClickRecorded is the canonical click event published for every accepted
// click. The ledger actor, the websocket hub, and the archive consumer all
// read this shape.
type ClickRecorded struct {
	SchemaVersion int       `json:"schema_version,omitempty"`
	EventID       string    `json:"event_id"`
	Deal          string    `json:"deal"`
	Category      string    `json:"category"`
	PatternKey    string    `json:"pattern_key,omitempty"`
	At            time.Time `json:"at"`
}

// NewClickRecorded builds an event with a fresh ID and the current schema.
func NewClickRecorded(deal, category, patternKey string, at time.Time) ClickRecorded {
	return ClickRecorded{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Deal:          deal,
		Category:      category,
		PatternKey:    patternKey,
		At:            at,
	}
}

// Message serializes the event into a Watermill message. The event ID
// doubles as the message UUID so transports can deduplicate on it.
func (e ClickRecorded) Message() (*message.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal click event: %w", err)
	}
	msg := message.NewMessage(e.EventID, payload)
	msg.Metadata.Set("deal", e.Deal)
	msg.Metadata.Set("category", e.Category)
	return msg, nil
}

// DecodeClick parses a ClickRecorded from a Watermill message payload.
func DecodeClick(msg *message.Message) (ClickRecorded, error) {
	var e ClickRecorded
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return ClickRecorded{}, fmt.Errorf("decode click event: %w", err)
	}
	if e.Deal == "" {
		return ClickRecorded{}, fmt.Errorf("decode click event: empty deal slug")
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return e, nil
}
