// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package ranking combines decayed CTR, category keyword momentum, semantic
// affinity, long-tail rarity, freshness and a UCB-style exploration bonus
// into one bounded score per item, and orders a category's items by it.
//
// Within one call the output order is total and deterministic: score
// descending, then slug ascending. Across calls the underlying snapshots
// may change; differing results are expected eventual consistency.
package ranking

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dealhound/dealhound/internal/analytics"
	"github.com/dealhound/dealhound/internal/catalog"
	"github.com/dealhound/dealhound/internal/ledger"
	"github.com/dealhound/dealhound/internal/metrics"
	"github.com/dealhound/dealhound/internal/semantic"
)

// ctrClickShare blends normalized click volume against the recency boost.
const ctrClickShare = 0.85

// Engine scores and orders items. Safe for concurrent use; the only mutable
// state is the jitter source, which is mutex-protected.
type Engine struct {
	cfg Config

	rng   *rand.Rand
	rngMu sync.Mutex
}

// New creates a ranking engine. The seed feeds the exploration jitter only;
// fix it in tests for reproducible output.
func New(cfg Config, seed int64) *Engine {
	if cfg.CTRWeight == 0 && cfg.MomentumWeight == 0 && cfg.SemanticWeight == 0 {
		cfg = DefaultConfig()
	}
	if cfg.FreshnessHorizonDays <= 0 {
		cfg.FreshnessHorizonDays = 12
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Rank scores the active items of one category snapshot against the current
// ledger and analytics state. Missing or empty inputs degrade to neutral
// scores; Rank never fails.
func (e *Engine) Rank(cat catalog.Snapshot, led *ledger.Snapshot, an *analytics.Snapshot, now time.Time) Result {
	start := time.Now()
	defer func() {
		metrics.RankRequests.WithLabelValues(cat.Category).Inc()
		metrics.RankDuration.Observe(time.Since(start).Seconds())
	}()

	if led == nil {
		led = ledger.NewSnapshot()
	}
	if an == nil {
		an = analytics.NewSnapshot()
	}

	res := Result{Category: cat.Category, GeneratedAt: now}

	active := make([]*catalog.Item, 0, len(cat.Items))
	for i := range cat.Items {
		if cat.Items[i].Active {
			cat.Items[i].EnsureSlug()
			active = append(active, &cat.Items[i])
		}
	}
	if len(active) == 0 {
		res.Items = []ItemScore{}
		return res
	}

	minClicks, maxClicks := clickBounds(active, led)
	recencyByItem := e.itemRecency(active, led)
	categoryClicks := led.ByCategory[cat.Category]
	categoryCluster := semantic.FromString(cat.Category)
	stats := an.Categories[cat.Category]
	rising := stats.RisingSet()
	freshness := e.freshness(cat.ModTime, now)

	res.Items = make([]ItemScore, 0, len(active))
	for _, item := range active {
		clicks := led.ByDeal[item.Slug]

		sub := SubScores{
			CTR:       e.ctrScore(clicks, minClicks, maxClicks, recencyByItem[item.Slug]),
			Momentum:  momentumScore(item, rising),
			Semantic:  semantic.Affinity(semantic.DetectCluster(item.Title+" "+item.URL), categoryCluster),
			LongTail:  longTailScore(item, stats),
			Freshness: freshness,
			Explore:   e.exploreBonus(categoryClicks, clicks),
		}

		base := sub.CTR*e.cfg.CTRWeight +
			sub.Momentum*e.cfg.MomentumWeight +
			sub.Semantic*e.cfg.SemanticWeight +
			sub.LongTail*e.cfg.LongTailWeight +
			sub.Freshness*e.cfg.FreshnessWeight

		// Exploration multiplies rather than adds: it can only amplify an
		// existing base score, never resurrect a zero one.
		final := base * (1 + sub.Explore*0.1)
		final = clamp01(finite(final))

		res.Items = append(res.Items, ItemScore{Item: *item, Scores: sub, Final: final})
	}

	sort.Slice(res.Items, func(i, j int) bool {
		if res.Items[i].Final != res.Items[j].Final {
			return res.Items[i].Final > res.Items[j].Final
		}
		return res.Items[i].Item.Slug < res.Items[j].Item.Slug
	})

	return res
}

// ctrScore normalizes raw clicks into [0,1] across the category and blends
// in the recency boost at a fixed share.
func (e *Engine) ctrScore(clicks, minClicks, maxClicks int64, recency float64) float64 {
	norm := 0.0
	if span := maxClicks - minClicks; span > 0 {
		norm = float64(clicks-minClicks) / float64(span)
	} else if maxClicks > 0 {
		// Every item has the same non-zero count.
		norm = 1.0
	}
	return clamp01(norm*ctrClickShare + clamp01(recency)*(1-ctrClickShare))
}

// itemRecency weights each item's recent clicks like the governor does for
// categories and rescales so the busiest item reads 1.0.
func (e *Engine) itemRecency(items []*catalog.Item, led *ledger.Snapshot) map[string]float64 {
	slugs := make(map[string]struct{}, len(items))
	for _, it := range items {
		slugs[it.Slug] = struct{}{}
	}

	scores := make(map[string]float64)
	n := len(led.Recent)
	w := float64(n)
	for i := 0; i < n; i++ {
		ev := led.Recent[n-1-i]
		if _, ok := slugs[ev.Deal]; !ok {
			continue
		}
		scores[ev.Deal] += (w - float64(i)) / w
	}

	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore > 0 {
		for slug := range scores {
			scores[slug] /= maxScore
		}
	}
	return scores
}

// momentumScore accumulates excess lift for every rising term appearing in
// the item's title, capped at 1.
func momentumScore(item *catalog.Item, rising map[string]float64) float64 {
	if len(rising) == 0 {
		return 0
	}
	score := 0.0
	for _, tok := range analytics.Tokenize(item.Title) {
		if lift, ok := rising[tok]; ok && lift > 1 {
			score += lift - 1
		}
	}
	return clamp01(finite(score))
}

// longTailScore rewards the longest n-gram from the item's title and URL
// found in the category's n-gram pools: trigram 1.0, bigram 0.55, otherwise
// the single-word floor 0.2.
func longTailScore(item *catalog.Item, stats analytics.CategoryStats) float64 {
	tokens := analytics.Tokenize(item.Title + " " + strings.ReplaceAll(item.URL, "/", " "))
	if len(tokens) == 0 {
		return 0.2
	}

	if matchesPool(tokens, 3, stats.Trigrams) {
		return 1.0
	}
	if matchesPool(tokens, 2, stats.Bigrams) {
		return 0.55
	}
	return 0.2
}

// matchesPool reports whether any n-gram of tokens appears in the pool with
// weight above its own single contribution, meaning the phrase recurs in
// the category beyond this item.
func matchesPool(tokens []string, n int, pool analytics.FrequencyTable) bool {
	if len(pool) == 0 {
		return false
	}
	for i := 0; i+n <= len(tokens); i++ {
		gram := strings.Join(tokens[i:i+n], " ")
		if pool[gram] > 1 {
			return true
		}
	}
	return false
}

// freshness decays the category snapshot's age toward a 0.1 floor.
func (e *Engine) freshness(modTime, now time.Time) float64 {
	if modTime.IsZero() {
		return 0.1
	}
	ageDays := now.Sub(modTime).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Max(0.1, 1-ageDays/e.cfg.FreshnessHorizonDays)
}

// exploreBonus is the UCB-style term favoring under-sampled items, plus a
// small uniform jitter.
func (e *Engine) exploreBonus(categoryClicks, itemClicks int64) float64 {
	samples := float64(itemClicks)
	if samples < 1 {
		samples = 1
	}
	ucb := math.Sqrt(math.Log(float64(categoryClicks)+2)/samples) * e.cfg.ExploreScale

	e.rngMu.Lock()
	jitter := e.rng.Float64() * e.cfg.ExploreEpsilon
	e.rngMu.Unlock()

	return finite(ucb + jitter)
}

// clickBounds returns the min and max click counts across the items.
func clickBounds(items []*catalog.Item, led *ledger.Snapshot) (int64, int64) {
	minClicks, maxClicks := int64(math.MaxInt64), int64(0)
	for _, it := range items {
		c := led.ByDeal[it.Slug]
		if c < minClicks {
			minClicks = c
		}
		if c > maxClicks {
			maxClicks = c
		}
	}
	if minClicks == math.MaxInt64 {
		minClicks = 0
	}
	return minClicks, maxClicks
}

// clamp01 bounds v to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// finite substitutes 0 for NaN and infinities.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
