// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package ledger

import (
	"time"
)

// Config holds the ledger's tuning constants.
type Config struct {
	// RecentWindow caps the recent click-event window.
	RecentWindow int

	// DecayGap is the inter-click gap beyond which momentum credit halves
	// before the new click's unit reward is added.
	DecayGap time.Duration

	// DeltaCap is the hard upper bound on momentum delta.
	DeltaCap float64

	// ImpressionIncrement is added to a pattern's impressions on every
	// reinforcement.
	ImpressionIncrement int
}

// DefaultConfig returns the tuned production constants.
func DefaultConfig() Config {
	return Config{
		RecentWindow:        120,
		DecayGap:            12 * time.Hour,
		DeltaCap:            5.0,
		ImpressionIncrement: 3,
	}
}

// State is the mutable ledger owned by the single-writer actor. It must not
// be touched from more than one goroutine; readers receive Clone()d
// snapshots instead.
type State struct {
	cfg   Config
	snap  *Snapshot
	dirty bool
}

// NewState creates ledger state around an existing snapshot (typically the
// output of Decode) or an empty one when snap is nil.
func NewState(cfg Config, snap *Snapshot) *State {
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 120
	}
	if cfg.DecayGap <= 0 {
		cfg.DecayGap = 12 * time.Hour
	}
	if cfg.DeltaCap <= 0 {
		cfg.DeltaCap = 5.0
	}
	if cfg.ImpressionIncrement <= 0 {
		cfg.ImpressionIncrement = 3
	}
	if snap == nil {
		snap = NewSnapshot()
	}
	snap.normalize()
	return &State{cfg: cfg, snap: snap}
}

// RecordClick increments counters, appends to the bounded recent window and
// updates momentum. Unknown slugs are created on first click; there is no
// error condition.
func (st *State) RecordClick(slug, category string, at time.Time) {
	s := st.snap
	s.TotalClicks++
	s.ByDeal[slug]++
	if category != "" {
		s.ByCategory[category]++
	}

	s.Recent = append(s.Recent, ClickEvent{Deal: slug, Category: category, At: at})
	if over := len(s.Recent) - st.cfg.RecentWindow; over > 0 {
		s.Recent = append(s.Recent[:0], s.Recent[over:]...)
	}

	s.Momentum[slug] = st.applyMomentum(s.Momentum[slug], at)
	st.dirty = true
}

// applyMomentum is the leaky-bucket reinforcement: clicks within DecayGap
// compound toward DeltaCap; a longer gap halves accumulated credit before
// the new click's unit reward.
func (st *State) applyMomentum(m Momentum, now time.Time) Momentum {
	decay := 1.0
	if now.Sub(m.Last) > st.cfg.DecayGap {
		decay = 0.5
	}

	delta := m.Delta*decay + 1
	if delta > st.cfg.DeltaCap {
		delta = st.cfg.DeltaCap
	}
	if delta < 0 {
		delta = 0
	}

	return Momentum{Last: now, Delta: delta, Streak: m.Streak + 1}
}

// Reinforce increments the (category, pattern) click counter and bumps its
// impressions. The governor recomputes category momentum from these counters
// on every read, keeping calls within one run consistent.
func (st *State) Reinforce(category, patternKey string) {
	if category == "" || patternKey == "" {
		return
	}
	patterns := st.snap.Learning[category]
	if patterns == nil {
		patterns = make(map[string]PatternStat)
		st.snap.Learning[category] = patterns
	}
	stat := patterns[patternKey]
	if stat.Impressions == 0 {
		stat.Impressions = 1
	}
	stat.Clicks++
	stat.Impressions += st.cfg.ImpressionIncrement
	patterns[patternKey] = stat
	st.dirty = true
}

// Snapshot returns a deep copy of the current state for concurrent readers.
func (st *State) Snapshot() *Snapshot {
	return st.snap.Clone()
}

// Dirty reports whether state changed since the last MarkClean.
func (st *State) Dirty() bool { return st.dirty }

// MarkClean resets the dirty flag after a successful flush.
func (st *State) MarkClean() { st.dirty = false }
