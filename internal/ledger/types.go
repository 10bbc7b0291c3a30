// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package ledger maintains the engagement ledger: per-deal click counters,
// a bounded recent-event window, per-deal momentum (decayed, capped
// reinforcement), and the learning pattern counters consumed by the
// category momentum governor.
//
// All mutation goes through a single-writer Actor; readers get immutable
// snapshot views that are swapped atomically. This serializes the whole-file
// read-modify-write cycle that would otherwise lose updates under
// concurrent clicks.
package ledger

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/dealhound/dealhound/internal/logging"
)

// ClickEvent is one recorded click. Immutable once appended.
type ClickEvent struct {
	Deal     string    `json:"deal"`
	Category string    `json:"category"`
	At       time.Time `json:"at"`
}

// Momentum is the decayed, capped reinforcement value for one deal.
type Momentum struct {
	// Last is the timestamp of the most recent click.
	Last time.Time `json:"last"`

	// Delta is the leaky-bucket credit, clamped to [0, DeltaCap].
	Delta float64 `json:"delta"`

	// Streak counts clicks since the record was created. Never decreases.
	Streak int `json:"streak"`
}

// PatternStat is one (category, pattern) reinforcement counter. Impressions
// start at 1 and grow faster than clicks, Laplace-smoothing the ratio
// against early-sample noise.
type PatternStat struct {
	Clicks      int `json:"clicks"`
	Impressions int `json:"impressions"`
}

// Snapshot is the full serialized ledger state. It is the wire and storage
// shape; every field has a well-typed zero value so downstream consumers
// never see missing maps.
type Snapshot struct {
	TotalClicks int64                             `json:"totalClicks"`
	ByDeal      map[string]int64                  `json:"byDeal"`
	ByCategory  map[string]int64                  `json:"byCategory"`
	Recent      []ClickEvent                      `json:"recent"`
	Learning    map[string]map[string]PatternStat `json:"learning"`
	Momentum    map[string]Momentum               `json:"momentum"`
}

// NewSnapshot returns an empty, fully-typed ledger snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		ByDeal:     make(map[string]int64),
		ByCategory: make(map[string]int64),
		Recent:     []ClickEvent{},
		Learning:   make(map[string]map[string]PatternStat),
		Momentum:   make(map[string]Momentum),
	}
}

// normalize fills any nil container so consumers can index freely.
func (s *Snapshot) normalize() {
	if s.ByDeal == nil {
		s.ByDeal = make(map[string]int64)
	}
	if s.ByCategory == nil {
		s.ByCategory = make(map[string]int64)
	}
	if s.Recent == nil {
		s.Recent = []ClickEvent{}
	}
	if s.Learning == nil {
		s.Learning = make(map[string]map[string]PatternStat)
	}
	if s.Momentum == nil {
		s.Momentum = make(map[string]Momentum)
	}
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (s *Snapshot) Clone() *Snapshot {
	cp := &Snapshot{
		TotalClicks: s.TotalClicks,
		ByDeal:      make(map[string]int64, len(s.ByDeal)),
		ByCategory:  make(map[string]int64, len(s.ByCategory)),
		Recent:      make([]ClickEvent, len(s.Recent)),
		Learning:    make(map[string]map[string]PatternStat, len(s.Learning)),
		Momentum:    make(map[string]Momentum, len(s.Momentum)),
	}
	for k, v := range s.ByDeal {
		cp.ByDeal[k] = v
	}
	for k, v := range s.ByCategory {
		cp.ByCategory[k] = v
	}
	copy(cp.Recent, s.Recent)
	for cat, patterns := range s.Learning {
		inner := make(map[string]PatternStat, len(patterns))
		for key, stat := range patterns {
			inner[key] = stat
		}
		cp.Learning[cat] = inner
	}
	for k, v := range s.Momentum {
		cp.Momentum[k] = v
	}
	return cp
}

// Encode serializes the snapshot.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses a persisted ledger snapshot. A corrupt payload self-heals to
// an empty, well-typed ledger rather than surfacing a parse error; losing
// engagement history is recoverable, a crashed ranking path is not.
func Decode(data []byte) *Snapshot {
	snap := NewSnapshot()
	if len(data) == 0 {
		return snap
	}
	if err := json.Unmarshal(data, snap); err != nil {
		logging.Warn().Err(err).Msg("ledger snapshot corrupt, self-healing to empty")
		return NewSnapshot()
	}
	snap.normalize()
	return snap
}
