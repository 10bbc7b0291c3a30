// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package ledger

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestFirstClickCreatesRecord(t *testing.T) {
	st := NewState(DefaultConfig(), nil)
	st.RecordClick("acme-crm", "business", t0)

	s := st.Snapshot()
	if s.TotalClicks != 1 || s.ByDeal["acme-crm"] != 1 || s.ByCategory["business"] != 1 {
		t.Errorf("counters = total %d deal %d cat %d, want 1/1/1",
			s.TotalClicks, s.ByDeal["acme-crm"], s.ByCategory["business"])
	}
	m := s.Momentum["acme-crm"]
	if m.Delta != 1 || m.Streak != 1 {
		t.Errorf("momentum = {delta %v, streak %d}, want {1, 1}", m.Delta, m.Streak)
	}
	if !m.Last.Equal(t0) {
		t.Errorf("momentum.last = %v, want %v", m.Last, t0)
	}
}

func TestMomentumCompoundsWithinGap(t *testing.T) {
	st := NewState(DefaultConfig(), nil)
	st.RecordClick("acme-crm", "business", t0)
	st.RecordClick("acme-crm", "business", t0.Add(time.Hour))

	m := st.Snapshot().Momentum["acme-crm"]
	if m.Delta != 2 || m.Streak != 2 {
		t.Errorf("momentum = {delta %v, streak %d}, want {2, 2}", m.Delta, m.Streak)
	}
}

func TestMomentumDecaysBeyondGap(t *testing.T) {
	st := NewState(DefaultConfig(), nil)
	st.RecordClick("acme-crm", "business", t0)
	st.RecordClick("acme-crm", "business", t0.Add(time.Hour))
	// Gap > 12h halves accumulated credit before the unit reward.
	st.RecordClick("acme-crm", "business", t0.Add(time.Hour).Add(20*time.Hour))

	m := st.Snapshot().Momentum["acme-crm"]
	if m.Delta != 2.0 || m.Streak != 3 {
		t.Errorf("momentum = {delta %v, streak %d}, want {2.0, 3}", m.Delta, m.Streak)
	}
}

func TestMomentumDeltaClampedAtCap(t *testing.T) {
	st := NewState(DefaultConfig(), nil)
	at := t0
	for i := 0; i < 20; i++ {
		st.RecordClick("hot-deal", "ai", at)
		at = at.Add(time.Minute)
	}

	m := st.Snapshot().Momentum["hot-deal"]
	if m.Delta != 5 {
		t.Errorf("delta = %v, want clamped at 5", m.Delta)
	}
	if m.Streak != 20 {
		t.Errorf("streak = %d, want 20", m.Streak)
	}
}

func TestStreakMonotonicAcrossDecay(t *testing.T) {
	st := NewState(DefaultConfig(), nil)
	at := t0
	prev := 0
	for i := 0; i < 10; i++ {
		st.RecordClick("x", "ai", at)
		m := st.Snapshot().Momentum["x"]
		if m.Streak <= prev {
			t.Fatalf("streak not monotonically increasing: %d after %d", m.Streak, prev)
		}
		if m.Delta < 0 || m.Delta > 5 {
			t.Fatalf("delta %v out of [0,5]", m.Delta)
		}
		prev = m.Streak
		// Alternate short and long gaps.
		if i%2 == 0 {
			at = at.Add(time.Hour)
		} else {
			at = at.Add(30 * time.Hour)
		}
	}
}

func TestRecentWindowEvictsOldest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecentWindow = 3
	st := NewState(cfg, nil)

	for i, slug := range []string{"a", "b", "c", "d", "e"} {
		st.RecordClick(slug, "ai", t0.Add(time.Duration(i)*time.Minute))
	}

	s := st.Snapshot()
	if len(s.Recent) != 3 {
		t.Fatalf("recent window = %d entries, want 3", len(s.Recent))
	}
	if s.Recent[0].Deal != "c" || s.Recent[2].Deal != "e" {
		t.Errorf("recent = [%s %s %s], want oldest dropped, newest last",
			s.Recent[0].Deal, s.Recent[1].Deal, s.Recent[2].Deal)
	}
}

func TestReinforceLaplaceSmoothing(t *testing.T) {
	st := NewState(DefaultConfig(), nil)
	st.Reinforce("business", "acme-crm")

	stat := st.Snapshot().Learning["business"]["acme-crm"]
	// Impressions seed at 1 and grow by 3 per reinforcement.
	if stat.Clicks != 1 || stat.Impressions != 4 {
		t.Errorf("pattern = {clicks %d, impressions %d}, want {1, 4}", stat.Clicks, stat.Impressions)
	}

	st.Reinforce("business", "acme-crm")
	stat = st.Snapshot().Learning["business"]["acme-crm"]
	if stat.Clicks != 2 || stat.Impressions != 7 {
		t.Errorf("pattern = {clicks %d, impressions %d}, want {2, 7}", stat.Clicks, stat.Impressions)
	}
}

func TestReinforceIgnoresEmptyKeys(t *testing.T) {
	st := NewState(DefaultConfig(), nil)
	st.Reinforce("", "p")
	st.Reinforce("c", "")
	if len(st.Snapshot().Learning) != 0 {
		t.Error("empty category or pattern must not create learning entries")
	}
}

func TestDecodeSelfHeals(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":      nil,
		"corrupt":    []byte("{not json"),
		"wrongShape": []byte(`[1,2,3]`),
		"partial":    []byte(`{"totalClicks": 7}`),
	} {
		t.Run(name, func(t *testing.T) {
			snap := Decode(data)
			if snap == nil {
				t.Fatal("Decode returned nil")
			}
			// Every container must be usable without nil checks.
			snap.ByDeal["x"]++
			snap.ByCategory["y"]++
			snap.Momentum["z"] = Momentum{}
			if snap.Learning == nil || snap.Recent == nil {
				t.Error("nil containers after self-heal")
			}
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	st := NewState(DefaultConfig(), nil)
	st.RecordClick("acme-crm", "business", t0)
	st.Reinforce("business", "acme-crm")

	data, err := st.Snapshot().Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back := Decode(data)
	if back.TotalClicks != 1 || back.ByDeal["acme-crm"] != 1 {
		t.Errorf("round trip lost counters: %+v", back)
	}
	if back.Momentum["acme-crm"].Delta != 1 {
		t.Errorf("round trip lost momentum: %+v", back.Momentum["acme-crm"])
	}
	if back.Learning["business"]["acme-crm"].Impressions != 4 {
		t.Errorf("round trip lost learning: %+v", back.Learning)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	st := NewState(DefaultConfig(), nil)
	st.RecordClick("a", "ai", t0)

	snap := st.Snapshot()
	st.RecordClick("b", "ai", t0.Add(time.Minute))

	if snap.TotalClicks != 1 || len(snap.Recent) != 1 {
		t.Errorf("earlier snapshot mutated by later write: %+v", snap)
	}
	snap.ByDeal["a"] = 99
	if st.Snapshot().ByDeal["a"] != 1 {
		t.Error("mutating a clone leaked into state")
	}
}
