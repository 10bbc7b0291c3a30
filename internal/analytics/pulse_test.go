// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package analytics

import (
	"reflect"
	"testing"
	"time"

	"github.com/dealhound/dealhound/internal/catalog"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"AI Writing Assistant for Teams", []string{"ai", "writing", "assistant", "team"}},
		{"The Best CRM!", []string{"best", "crm"}},
		{"Invoices & categories", []string{"invoice", "category"}},
		{"", nil},
		{"a an the", nil},
	}
	for _, tt := range tests {
		got := Tokenize(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNgrams(t *testing.T) {
	tokens := []string{"ai", "writing", "assistant"}
	if got := ngrams(tokens, 2); !reflect.DeepEqual(got, []string{"ai writing", "writing assistant"}) {
		t.Errorf("bigrams = %v", got)
	}
	if got := ngrams(tokens, 3); !reflect.DeepEqual(got, []string{"ai writing assistant"}) {
		t.Errorf("trigrams = %v", got)
	}
	if got := ngrams(tokens[:1], 2); got != nil {
		t.Errorf("short input bigrams = %v, want nil", got)
	}
}

func itemsSnapshot() map[string]catalog.Snapshot {
	return map[string]catalog.Snapshot{
		"ai": {
			Category: "ai",
			Items: []catalog.Item{
				{Slug: "writer", Title: "AI Writing Assistant", Subtitle: "Draft emails fast", Active: true},
				{Slug: "upscale", Title: "AI Image Upscaler", Keywords: []string{"photo"}, Active: true},
				{Slug: "dead", Title: "Retired AI Tool", Active: false},
			},
		},
	}
}

func TestBuildWeightsSources(t *testing.T) {
	p := NewPulse(0)
	snap := p.Build(itemsSnapshot(), nil, time.Now())

	stats := snap.Categories["ai"]
	// "ai" appears in two active titles at weight 1.0 each.
	if stats.Frequency["ai"] != 2.0 {
		t.Errorf(`freq["ai"] = %v, want 2.0`, stats.Frequency["ai"])
	}
	// Subtitle tokens carry the support weight.
	if stats.Frequency["email"] != 0.6 {
		t.Errorf(`freq["email"] = %v, want 0.6`, stats.Frequency["email"])
	}
	// Keywords carry the support weight too.
	if stats.Frequency["photo"] != 0.6 {
		t.Errorf(`freq["photo"] = %v, want 0.6`, stats.Frequency["photo"])
	}
	// Inactive items do not contribute.
	if _, ok := stats.Frequency["retired"]; ok {
		t.Error("inactive item leaked into frequency table")
	}
	// N-gram pools come from titles only.
	if stats.Bigrams["ai writing"] != 1.0 {
		t.Errorf(`bigram "ai writing" = %v, want 1.0`, stats.Bigrams["ai writing"])
	}
	if _, ok := stats.Bigrams["draft email"]; ok {
		t.Error("subtitle text leaked into bigram pool")
	}
}

func TestRisingTermsOrdering(t *testing.T) {
	p := NewPulse(0.5)
	current := FrequencyTable{"alpha": 4, "beta": 4, "gamma": 1, "delta": 6}
	previous := FrequencyTable{"alpha": 1, "beta": 1, "gamma": 1, "delta": 6}

	rising := p.RisingTerms(current, previous)

	// alpha and beta tie on lift and current count; "alpha" < "beta".
	if rising[0].Term != "alpha" || rising[1].Term != "beta" {
		t.Errorf("rising head = %s,%s want alpha,beta", rising[0].Term, rising[1].Term)
	}
	// delta (flat) and gamma (flat) have lift 1; delta has the higher count.
	if rising[2].Term != "delta" || rising[3].Term != "gamma" {
		t.Errorf("rising tail = %s,%s want delta,gamma", rising[2].Term, rising[3].Term)
	}
}

func TestLiftMonotonicity(t *testing.T) {
	const eps = 0.5
	// Increasing current (previous fixed) increases lift.
	prevLift := -1.0
	for cur := 0.0; cur <= 10; cur++ {
		l := Lift(cur, 3, eps)
		if l <= prevLift {
			t.Fatalf("lift not increasing in current: %v after %v", l, prevLift)
		}
		prevLift = l
	}
	// Increasing previous (current fixed) decreases lift.
	prevLift = Lift(5, 0, eps) + 1
	for prev := 0.0; prev <= 10; prev++ {
		l := Lift(5, prev, eps)
		if l >= prevLift {
			t.Fatalf("lift not decreasing in previous: %v after %v", l, prevLift)
		}
		prevLift = l
	}
}

func TestBuildRisingAgainstPrevious(t *testing.T) {
	p := NewPulse(0)
	first := p.Build(itemsSnapshot(), nil, time.Now())
	second := p.Build(itemsSnapshot(), first, time.Now())

	// Identical catalogs: every term's lift is exactly 1.
	for _, r := range second.Categories["ai"].Rising {
		if r.Lift != 1.0 {
			t.Errorf("term %q lift = %v, want 1.0 for unchanged frequency", r.Term, r.Lift)
		}
	}
}

func TestDiversity(t *testing.T) {
	tests := []struct {
		values []string
		want   float64
	}{
		{nil, 0},
		{[]string{"a"}, 1},
		{[]string{"a", "b", "c", "d"}, 1},
		{[]string{"a", "a", "b", "b"}, 0.5},
		{[]string{"a", "a", "a", "a"}, 0.25},
	}
	for _, tt := range tests {
		if got := Diversity(tt.values); got != tt.want {
			t.Errorf("Diversity(%v) = %v, want %v", tt.values, got, tt.want)
		}
	}
}

func TestDecodeSelfHeals(t *testing.T) {
	for name, data := range map[string][]byte{
		"nil":     nil,
		"corrupt": []byte("<<<"),
		"empty":   []byte("{}"),
	} {
		t.Run(name, func(t *testing.T) {
			snap := Decode(data)
			if snap.Categories == nil || snap.Global == nil {
				t.Error("nil containers after decode")
			}
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	p := NewPulse(0)
	snap := p.Build(itemsSnapshot(), nil, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	data, err := snap.Encode()
	if err != nil {
		t.Fatal(err)
	}
	back := Decode(data)
	if back.Categories["ai"].Frequency["ai"] != 2.0 {
		t.Errorf("round trip lost frequencies: %+v", back.Categories["ai"].Frequency)
	}
}

func TestRisingSet(t *testing.T) {
	cs := CategoryStats{Rising: []RisingTerm{{Term: "ai", Lift: 2.5}, {Term: "crm", Lift: 1.2}}}
	set := cs.RisingSet()
	if set["ai"] != 2.5 || set["crm"] != 1.2 {
		t.Errorf("rising set = %v", set)
	}
}
