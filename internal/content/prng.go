// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package content

import (
	"fmt"
	"time"
)

// hash32 is the FNV-1a 32-bit hash used for seeding and signatures. A
// seedable, stable hash is a hard contract here: generation must be
// idempotent per (slug, ISO week), so no system RNG is involved anywhere.
func hash32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

// xorshift32 is a tiny deterministic PRNG. State must be non-zero.
type xorshift32 struct {
	state uint32
}

// newXorshift seeds the generator, mapping a zero seed to a fixed non-zero
// constant (xorshift has a zero fixpoint).
func newXorshift(seed uint32) *xorshift32 {
	if seed == 0 {
		seed = 0x9e3779b9
	}
	return &xorshift32{state: seed}
}

// next advances the generator.
func (x *xorshift32) next() uint32 {
	s := x.state
	s ^= s << 13
	s ^= s >> 17
	s ^= s << 5
	x.state = s
	return s
}

// intn returns a value in [0, n). n must be positive.
func (x *xorshift32) intn(n int) int {
	return int(x.next() % uint32(n))
}

// isoWeekBucket formats the ISO year and week, e.g. "2026-W34". Seeding
// from it keeps output stable within a week and rotates it weekly without
// external randomness.
func isoWeekBucket(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// seedFor derives the per-item PRNG seed from slug and time bucket.
func seedFor(slug string, t time.Time) uint32 {
	return hash32(slug + "::" + isoWeekBucket(t))
}
