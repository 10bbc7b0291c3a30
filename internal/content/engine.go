// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package content deterministically generates per-item CTA and subtitle
// text. The PRNG is seeded from (slug, ISO week), so output is idempotent
// within a week and rotates weekly. A per-batch used set guarantees no two
// items in one generation run share the same rendered CTA.
package content

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dealhound/dealhound/internal/catalog"
	"github.com/dealhound/dealhound/internal/ledger"
	"github.com/dealhound/dealhound/internal/metrics"
	"github.com/dealhound/dealhound/internal/semantic"
)

// Assignment is the generated copy for one item.
type Assignment struct {
	Slug     string `json:"slug"`
	CTA      string `json:"cta"`
	Subtitle string `json:"subtitle"`
	Stage    Stage  `json:"stage"`
}

// UsedSet tracks CTA signatures consumed within one generation batch.
type UsedSet map[string]struct{}

// NewUsedSet returns an empty batch signature set.
func NewUsedSet() UsedSet { return make(UsedSet) }

// Config holds the generation limits.
type Config struct {
	// MaxCTALength and MaxSubtitleLength clamp rendered output (runes).
	MaxCTALength      int
	MaxSubtitleLength int

	// TemplateAttempts is how many candidates are tried before the
	// minimal fallback.
	TemplateAttempts int
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		MaxCTALength:      64,
		MaxSubtitleLength: 160,
		TemplateAttempts:  5,
	}
}

// Engine generates deterministic content assignments.
type Engine struct {
	cfg Config
}

// New creates a content engine, applying defaults for zero config values.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MaxCTALength <= 0 {
		cfg.MaxCTALength = def.MaxCTALength
	}
	if cfg.MaxSubtitleLength <= 0 {
		cfg.MaxSubtitleLength = def.MaxSubtitleLength
	}
	if cfg.TemplateAttempts <= 0 {
		cfg.TemplateAttempts = def.TemplateAttempts
	}
	return &Engine{cfg: cfg}
}

// Generate produces the assignment for one item. Identical inputs (same
// ledger counts, same ISO week, same used-set state) yield identical
// output. The used set is mutated: the accepted CTA signature is recorded.
func (e *Engine) Generate(item *catalog.Item, led *ledger.Snapshot, now time.Time, used UsedSet) Assignment {
	if led == nil {
		led = ledger.NewSnapshot()
	}
	if used == nil {
		used = NewUsedSet()
	}

	slug := item.EnsureSlug()
	stage := stageFor(led.ByDeal[slug], led.ByCategory[item.Category])
	rng := newXorshift(seedFor(slug, now))

	benefit := e.benefitFor(item, rng)
	verbs := stageVerbs[stage]
	verb := verbs[rng.intn(len(verbs))]

	cta := e.pickCTA(slug, stage, verb, benefit, rng, used)
	subtitle := e.pickSubtitle(stage, benefit, rng)

	metrics.ContentGenerations.WithLabelValues(string(stage)).Inc()

	return Assignment{
		Slug:     slug,
		CTA:      clampRunes(cta, e.cfg.MaxCTALength),
		Subtitle: clampRunes(subtitle, e.cfg.MaxSubtitleLength),
		Stage:    stage,
	}
}

// GenerateBatch assigns content to every active item, sharing one used set
// so no CTA repeats within the batch. Returns assignments keyed by slug.
func (e *Engine) GenerateBatch(items []catalog.Item, led *ledger.Snapshot, now time.Time) map[string]Assignment {
	used := NewUsedSet()
	out := make(map[string]Assignment, len(items))
	for i := range items {
		if !items[i].Active {
			continue
		}
		a := e.Generate(&items[i], led, now, used)
		out[a.Slug] = a
	}
	return out
}

// pickCTA tries up to TemplateAttempts candidates from the stage pool and
// accepts the first whose signature is unused in this batch. Exhaustion
// falls back to the minimal template, which is always accepted.
func (e *Engine) pickCTA(slug string, stage Stage, verb, benefit string, rng *xorshift32, used UsedSet) string {
	pool := ctaTemplates[stage]
	for attempt := 0; attempt < e.cfg.TemplateAttempts; attempt++ {
		candidate := render(pool[rng.intn(len(pool))], verb, benefit)
		sig := signature(slug, candidate)
		if _, taken := used[sig]; taken {
			metrics.TemplateCollisions.Inc()
			continue
		}
		used[sig] = struct{}{}
		return candidate
	}

	metrics.TemplateFallbacks.Inc()
	fallback := render(minimalTemplate, verb, benefit)
	used[signature(slug, fallback)] = struct{}{}
	return fallback
}

// pickSubtitle draws from the parallel subtitle pool. Subtitles reuse the
// same PRNG stream, so they rotate with the CTA but need no used set: the
// CTA signature already guarantees batch-level distinctness.
func (e *Engine) pickSubtitle(stage Stage, benefit string, rng *xorshift32) string {
	pool := subtitleTemplates[stage]
	return render(pool[rng.intn(len(pool))], "", benefit)
}

// benefitFor prefers a short item keyword, then a title token, then the
// cluster benefit pool. Never returns empty.
func (e *Engine) benefitFor(item *catalog.Item, rng *xorshift32) string {
	for _, kw := range item.Keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" && utf8.RuneCountInString(kw) <= maxKeywordBenefit {
			return strings.ToLower(kw)
		}
	}

	for _, tok := range strings.Fields(strings.ToLower(item.Title)) {
		if len(tok) >= 4 && len(tok) <= maxKeywordBenefit {
			return strings.Trim(tok, ".,!?:;")
		}
	}

	cluster := semantic.FromString(item.Category)
	pool := benefitPools[cluster]
	if len(pool) == 0 {
		pool = benefitPools[semantic.Fallback]
	}
	return pool[rng.intn(len(pool))]
}

// signature identifies a rendered CTA for batch-level dedup.
func signature(slug, text string) string {
	return fmt.Sprintf("%s:%08x", slug, hash32(text))
}

// clampRunes truncates to at most n runes, trimming trailing space.
func clampRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:n]), " ")
}
