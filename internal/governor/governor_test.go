// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package governor

import (
	"math"
	"testing"
	"time"

	"github.com/dealhound/dealhound/internal/ledger"
)

func TestMomentumEmptyInput(t *testing.T) {
	g := New(DefaultConfig())

	if got := g.Momentum(nil); len(got) != 0 {
		t.Errorf("nil snapshot momentum = %v, want empty", got)
	}
	if got := g.Momentum(ledger.NewSnapshot()); len(got) != 0 {
		t.Errorf("empty snapshot momentum = %v, want empty", got)
	}
}

func TestMomentumNormalizesToOne(t *testing.T) {
	snap := ledger.NewSnapshot()
	snap.ByCategory["ai"] = 50
	snap.ByCategory["courses"] = 5
	snap.ByCategory["design"] = 12

	g := New(DefaultConfig())
	m := g.Momentum(snap)

	sum := 0.0
	for _, w := range m {
		if w < 0 {
			t.Errorf("negative weight %v", w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("weights sum = %v, want 1.0 ± 1e-9", sum)
	}
}

func TestMomentumOrdersByClickVolume(t *testing.T) {
	// Scenario from the engagement model: ai=50 clicks vs courses=5, no
	// recency or learning signal.
	snap := ledger.NewSnapshot()
	snap.ByCategory["ai"] = 50
	snap.ByCategory["courses"] = 5

	m := New(DefaultConfig()).Momentum(snap)
	if m["ai"] <= m["courses"] {
		t.Errorf("momentum(ai)=%v not greater than momentum(courses)=%v", m["ai"], m["courses"])
	}
}

func TestRecencyWeightsNewestHighest(t *testing.T) {
	snap := ledger.NewSnapshot()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	// 10 old clicks for "design", then 10 fresh clicks for "ai": equal volume,
	// recency should favor ai.
	for i := 0; i < 10; i++ {
		snap.Recent = append(snap.Recent, ledger.ClickEvent{Deal: "d", Category: "design", At: base})
	}
	for i := 0; i < 10; i++ {
		snap.Recent = append(snap.Recent, ledger.ClickEvent{Deal: "a", Category: "ai", At: base.Add(time.Hour)})
	}
	snap.ByCategory["design"] = 10
	snap.ByCategory["ai"] = 10

	m := New(DefaultConfig()).Momentum(snap)
	if m["ai"] <= m["design"] {
		t.Errorf("recency did not favor newer clicks: ai=%v design=%v", m["ai"], m["design"])
	}
}

func TestLearningSignalCountsWithoutClicks(t *testing.T) {
	snap := ledger.NewSnapshot()
	snap.Learning["business"] = map[string]ledger.PatternStat{
		"acme-crm": {Clicks: 3, Impressions: 10},
	}

	m := New(DefaultConfig()).Momentum(snap)
	if m["business"] != 1.0 {
		t.Errorf("single-signal category weight = %v, want 1.0 after normalization", m["business"])
	}
}

func TestLearningBias(t *testing.T) {
	snap := ledger.NewSnapshot()
	snap.ByCategory["ai"] = 100
	snap.ByCategory["courses"] = 2

	bias := New(DefaultConfig()).LearningBias(snap, "courses")
	if bias.ToneBias != "ai" {
		t.Errorf("tone bias = %q, want ai", bias.ToneBias)
	}
	if bias.WeightForCategory != bias.Momentum["courses"] {
		t.Errorf("weight for category = %v, want %v", bias.WeightForCategory, bias.Momentum["courses"])
	}

	missing := New(DefaultConfig()).LearningBias(snap, "nope")
	if missing.WeightForCategory != 0 {
		t.Errorf("missing category weight = %v, want 0", missing.WeightForCategory)
	}
}

func TestLearningBiasEmptySnapshot(t *testing.T) {
	bias := New(DefaultConfig()).LearningBias(ledger.NewSnapshot(), "ai")
	if bias.ToneBias != "" || len(bias.Momentum) != 0 || bias.WeightForCategory != 0 {
		t.Errorf("empty bias = %+v, want zero values", bias)
	}
}

func TestRecencyWindowBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecencyWindow = 5
	snap := ledger.NewSnapshot()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	// 20 stale "design" events followed by 5 fresh "ai" events; with a window
	// of 5 only the ai events count toward recency.
	for i := 0; i < 20; i++ {
		snap.Recent = append(snap.Recent, ledger.ClickEvent{Deal: "d", Category: "design", At: base})
	}
	for i := 0; i < 5; i++ {
		snap.Recent = append(snap.Recent, ledger.ClickEvent{Deal: "a", Category: "ai", At: base.Add(time.Hour)})
	}

	g := New(cfg)
	scores := g.recencyScores(snap)
	if scores["design"] != 0 {
		t.Errorf("events outside window contributed: %v", scores["design"])
	}
	if scores["ai"] != 1.0 {
		t.Errorf("max category recency = %v, want rescaled to 1.0", scores["ai"])
	}
}
