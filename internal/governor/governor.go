// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package governor aggregates ledger signals into a normalized weight map
// over categories ("category momentum") and exposes the hottest-category
// bias used by ranking and content generation.
//
// The map is computed fresh from a ledger snapshot on every call; writes go
// through the ledger actor (write-through), so successive reads within one
// run are mutually consistent.
package governor

import (
	"math"
	"sort"

	"github.com/dealhound/dealhound/internal/ledger"
)

// Config holds the aggregation constants.
type Config struct {
	// RecencyWindow is how many of the most recent click events feed the
	// recency signal.
	RecencyWindow int

	// CTRWeight, RecencyWeight and LearningWeight blend the three signals.
	CTRWeight      float64
	RecencyWeight  float64
	LearningWeight float64
}

// DefaultConfig returns the tuned production constants.
func DefaultConfig() Config {
	return Config{
		RecencyWindow:  200,
		CTRWeight:      0.7,
		RecencyWeight:  1.0,
		LearningWeight: 0.9,
	}
}

// Bias is the learning-governor output for one category.
type Bias struct {
	// ToneBias is the hottest category (argmax of the momentum map).
	ToneBias string `json:"toneBias"`

	// Momentum is the full normalized category weight map.
	Momentum map[string]float64 `json:"momentum"`

	// WeightForCategory is Momentum[category], or 0 when absent.
	WeightForCategory float64 `json:"weightForCategory"`
}

// Governor computes category momentum from ledger snapshots.
type Governor struct {
	cfg Config
}

// New creates a governor, applying defaults for zero config values.
func New(cfg Config) *Governor {
	def := DefaultConfig()
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = def.RecencyWindow
	}
	if cfg.CTRWeight == 0 && cfg.RecencyWeight == 0 && cfg.LearningWeight == 0 {
		cfg.CTRWeight = def.CTRWeight
		cfg.RecencyWeight = def.RecencyWeight
		cfg.LearningWeight = def.LearningWeight
	}
	return &Governor{cfg: cfg}
}

// Momentum returns the normalized category weight map. Categories whose
// combined score is non-positive or non-finite are dropped; remaining
// weights sum to 1. An empty-signal snapshot yields an empty map; callers
// treat "no signal" as neutral, never divide by zero.
func (g *Governor) Momentum(snap *ledger.Snapshot) map[string]float64 {
	out := make(map[string]float64)
	if snap == nil {
		return out
	}

	recency := g.recencyScores(snap)

	// Candidate categories: anything with clicks, recency or learning signal.
	candidates := make(map[string]struct{}, len(snap.ByCategory))
	for cat := range snap.ByCategory {
		candidates[cat] = struct{}{}
	}
	for cat := range recency {
		candidates[cat] = struct{}{}
	}
	for cat := range snap.Learning {
		candidates[cat] = struct{}{}
	}

	total := 0.0
	for cat := range candidates {
		ctrVolume := math.Log1p(float64(snap.ByCategory[cat]))
		learning := learningScore(snap.Learning[cat])

		combined := ctrVolume*g.cfg.CTRWeight +
			recency[cat]*g.cfg.RecencyWeight +
			learning*g.cfg.LearningWeight
		if combined <= 0 || math.IsNaN(combined) || math.IsInf(combined, 0) {
			continue
		}
		out[cat] = combined
		total += combined
	}

	if total <= 0 {
		return map[string]float64{}
	}
	for cat := range out {
		out[cat] /= total
	}
	return out
}

// LearningBias returns the hottest-category bias plus the weight for the
// given category.
func (g *Governor) LearningBias(snap *ledger.Snapshot, category string) Bias {
	momentum := g.Momentum(snap)
	return Bias{
		ToneBias:          argmax(momentum),
		Momentum:          momentum,
		WeightForCategory: momentum[category],
	}
}

// recencyScores weights the most recent RecencyWindow events: the i-th most
// recent (0-indexed) contributes (W-i)/W. Sums are rescaled so the maximum
// category equals 1.0.
func (g *Governor) recencyScores(snap *ledger.Snapshot) map[string]float64 {
	scores := make(map[string]float64)
	w := float64(g.cfg.RecencyWindow)

	n := len(snap.Recent)
	limit := g.cfg.RecencyWindow
	if n < limit {
		limit = n
	}
	for i := 0; i < limit; i++ {
		ev := snap.Recent[n-1-i] // newest last
		if ev.Category == "" {
			continue
		}
		scores[ev.Category] += (w - float64(i)) / w
	}

	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore > 0 {
		for cat := range scores {
			scores[cat] /= maxScore
		}
	}
	return scores
}

// learningScore sums per-pattern click-through ratios with a guarded
// denominator.
func learningScore(patterns map[string]ledger.PatternStat) float64 {
	score := 0.0
	for _, stat := range patterns {
		imp := stat.Impressions
		if imp < 1 {
			imp = 1
		}
		score += float64(stat.Clicks) / float64(imp)
	}
	return score
}

// argmax returns the highest-weighted key; ties break lexicographically so
// the bias is deterministic.
func argmax(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := ""
	bestW := math.Inf(-1)
	for _, k := range keys {
		if m[k] > bestW {
			best = k
			bestW = m[k]
		}
	}
	return best
}
