// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package ranking

import (
	"time"

	"github.com/dealhound/dealhound/internal/catalog"
)

// SubScores are the bounded component scores behind one item's final score.
// All values lie in [0,1] except Explore, which is the raw exploration bonus
// before its multiplicative application.
type SubScores struct {
	CTR       float64 `json:"ctr"`
	Momentum  float64 `json:"momentum"`
	Semantic  float64 `json:"semantic"`
	LongTail  float64 `json:"longTail"`
	Freshness float64 `json:"freshness"`
	Explore   float64 `json:"explore"`
}

// ItemScore is one ranked item annotated with its score breakdown.
type ItemScore struct {
	Item   catalog.Item `json:"item"`
	Scores SubScores    `json:"scores"`

	// Final is the bounded overall score in [0,1].
	Final float64 `json:"final"`
}

// Result is an ordered ranking for one category. It is recomputed on every
// request and never persisted.
type Result struct {
	Category    string      `json:"category"`
	Items       []ItemScore `json:"items"`
	GeneratedAt time.Time   `json:"generatedAt"`
}

// Config holds the ranking weights and exploration constants. The five
// sub-score weights must sum to 1; the exploration term is applied
// multiplicatively and deliberately cannot lift a near-zero base score.
type Config struct {
	CTRWeight       float64
	MomentumWeight  float64
	SemanticWeight  float64
	LongTailWeight  float64
	FreshnessWeight float64

	// ExploreScale multiplies the UCB term.
	ExploreScale float64

	// ExploreEpsilon scales the uniform random jitter added to the bonus.
	ExploreEpsilon float64

	// FreshnessHorizonDays is the age at which freshness reaches its floor.
	FreshnessHorizonDays float64
}

// DefaultConfig returns the tuned production weights.
func DefaultConfig() Config {
	return Config{
		CTRWeight:            0.48,
		MomentumWeight:       0.22,
		SemanticWeight:       0.18,
		LongTailWeight:       0.08,
		FreshnessWeight:      0.04,
		ExploreScale:         0.3,
		ExploreEpsilon:       0.05,
		FreshnessHorizonDays: 12,
	}
}
