// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package analytics computes the per-cycle analytics snapshot: weighted
// keyword frequency tables, n-gram pools, rising-term detection against the
// previous snapshot, and the content diversity (entropy) health signal.
//
// The snapshot is a pure cache: it is rebuilt from the catalog each cycle
// and survives corruption by self-healing to empty.
package analytics

import (
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dealhound/dealhound/internal/catalog"
	"github.com/dealhound/dealhound/internal/logging"
)

// Source weights for frequency accumulation.
const (
	titleWeight   = 1.0
	supportWeight = 0.6 // subtitles and keywords
)

// DefaultLiftEpsilon smooths the rising-term ratio against zero counts.
const DefaultLiftEpsilon = 0.5

// FrequencyTable maps a term to its accumulated weighted count.
type FrequencyTable map[string]float64

// RisingTerm is one term whose frequency grew against the prior snapshot.
type RisingTerm struct {
	Term     string  `json:"term"`
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	Lift     float64 `json:"lift"`
}

// CategoryStats is the per-category analytics output.
type CategoryStats struct {
	Frequency FrequencyTable `json:"frequencyTable"`

	// Bigrams and Trigrams are built from titles only (lower noise).
	Bigrams  FrequencyTable `json:"bigrams"`
	Trigrams FrequencyTable `json:"trigrams"`

	Rising []RisingTerm `json:"rising"`
}

// Snapshot is one analytics cycle's output and the next cycle's "previous".
type Snapshot struct {
	Categories  map[string]CategoryStats `json:"categories"`
	Global      FrequencyTable           `json:"global"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

// NewSnapshot returns an empty, fully-typed analytics snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Categories: make(map[string]CategoryStats),
		Global:     make(FrequencyTable),
	}
}

// Encode serializes the snapshot.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses a persisted analytics snapshot, self-healing to empty on
// corruption; the snapshot is rebuildable from the catalog, so losing it
// only blunts rising-term detection for one cycle.
func Decode(data []byte) *Snapshot {
	snap := NewSnapshot()
	if len(data) == 0 {
		return snap
	}
	if err := json.Unmarshal(data, snap); err != nil {
		logging.Warn().Err(err).Msg("analytics snapshot corrupt, self-healing to empty")
		return NewSnapshot()
	}
	if snap.Categories == nil {
		snap.Categories = make(map[string]CategoryStats)
	}
	if snap.Global == nil {
		snap.Global = make(FrequencyTable)
	}
	return snap
}

// RisingSet returns the category's rising terms keyed by term, for the
// ranking engine's momentum overlap lookup.
func (cs CategoryStats) RisingSet() map[string]float64 {
	out := make(map[string]float64, len(cs.Rising))
	for _, r := range cs.Rising {
		out[r.Term] = r.Lift
	}
	return out
}

// Pulse computes analytics snapshots.
type Pulse struct {
	liftEpsilon float64
}

// NewPulse creates a pulse with the given lift smoothing epsilon
// (DefaultLiftEpsilon when zero or negative).
func NewPulse(liftEpsilon float64) *Pulse {
	if liftEpsilon <= 0 {
		liftEpsilon = DefaultLiftEpsilon
	}
	return &Pulse{liftEpsilon: liftEpsilon}
}

// Build runs one analytics cycle over the catalog, comparing against the
// previous snapshot for rising-term detection. prev may be nil.
func (p *Pulse) Build(cat map[string]catalog.Snapshot, prev *Snapshot, now time.Time) *Snapshot {
	if prev == nil {
		prev = NewSnapshot()
	}

	snap := NewSnapshot()
	snap.GeneratedAt = now

	for category, cs := range cat {
		stats := CategoryStats{
			Frequency: make(FrequencyTable),
			Bigrams:   make(FrequencyTable),
			Trigrams:  make(FrequencyTable),
		}

		for i := range cs.Items {
			item := &cs.Items[i]
			if !item.Active {
				continue
			}

			titleTokens := Tokenize(item.Title)
			accumulate(stats.Frequency, titleTokens, titleWeight)
			accumulate(snap.Global, titleTokens, titleWeight)

			supportTokens := Tokenize(item.Subtitle)
			for _, kw := range item.Keywords {
				supportTokens = append(supportTokens, Tokenize(kw)...)
			}
			accumulate(stats.Frequency, supportTokens, supportWeight)
			accumulate(snap.Global, supportTokens, supportWeight)

			accumulate(stats.Bigrams, ngrams(titleTokens, 2), titleWeight)
			accumulate(stats.Trigrams, ngrams(titleTokens, 3), titleWeight)
		}

		stats.Rising = p.RisingTerms(stats.Frequency, prev.Categories[category].Frequency)
		snap.Categories[category] = stats
	}

	return snap
}

// RisingTerms compares a current table against the previous cycle's and
// returns terms ordered by lift desc, then current count desc, then term
// asc, a triple tie-break that makes the output fully deterministic.
func (p *Pulse) RisingTerms(current, previous FrequencyTable) []RisingTerm {
	out := make([]RisingTerm, 0, len(current))
	for term, cur := range current {
		prev := previous[term]
		out = append(out, RisingTerm{
			Term:     term,
			Current:  cur,
			Previous: prev,
			Lift:     Lift(cur, prev, p.liftEpsilon),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lift != out[j].Lift {
			return out[i].Lift > out[j].Lift
		}
		if out[i].Current != out[j].Current {
			return out[i].Current > out[j].Current
		}
		return out[i].Term < out[j].Term
	})
	return out
}

// Lift is the smoothed current/previous frequency ratio.
func Lift(current, previous, epsilon float64) float64 {
	return (current + epsilon) / (previous + epsilon)
}

// Diversity is the unique-to-total ratio of generated values. An empty
// input reads 0 by the guarded-denominator rule; callers treat it as "no
// signal" rather than degeneration.
func Diversity(values []string) float64 {
	if len(values) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return float64(len(seen)) / float64(len(values))
}

// accumulate adds weighted counts for the given terms.
func accumulate(table FrequencyTable, terms []string, weight float64) {
	for _, t := range terms {
		table[t] += weight
	}
}
