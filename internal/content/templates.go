// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package content

import (
	"strings"

	"github.com/dealhound/dealhound/internal/semantic"
)

// Stage is the engagement-derived intent bucket selecting content tone.
type Stage string

const (
	// StageDiscovery targets items with little engagement signal.
	StageDiscovery Stage = "discovery"

	// StageValue targets items with moderate engagement.
	StageValue Stage = "value"

	// StageConversion targets proven high-engagement items.
	StageConversion Stage = "conversion"
)

// Intent-stage thresholds over the blended engagement score.
const (
	conversionThreshold = 15
	valueThreshold      = 5
)

// stageFor buckets the blended per-item and per-category engagement.
func stageFor(itemClicks, categoryClicks int64) Stage {
	score := float64(itemClicks)*3 + float64(categoryClicks)*0.5
	switch {
	case score >= conversionThreshold:
		return StageConversion
	case score >= valueThreshold:
		return StageValue
	default:
		return StageDiscovery
	}
}

// verbs per stage. Picked deterministically by the per-item PRNG.
var stageVerbs = map[Stage][]string{
	StageDiscovery:  {"Discover", "Explore", "Meet", "Try"},
	StageValue:      {"Unlock", "Upgrade", "Boost", "Master"},
	StageConversion: {"Get", "Grab", "Claim", "Secure"},
}

// ctaTemplates per stage. {verb} and {benefit} are substituted at render
// time; every pool entry must keep rendered output comfortably under the
// CTA clamp for typical benefits.
var ctaTemplates = map[Stage][]string{
	StageDiscovery: {
		"{verb} {benefit} today",
		"{verb} a smarter way to {benefit}",
		"{verb} {benefit}, no strings attached",
		"New: {verb} {benefit}",
		"{verb} what {benefit} can do",
	},
	StageValue: {
		"{verb} {benefit} for less",
		"{verb} your {benefit} game",
		"{verb} {benefit} while it lasts",
		"{verb} more from {benefit}",
		"Ready to {verb} {benefit}?",
	},
	StageConversion: {
		"{verb} {benefit} now",
		"{verb} this {benefit} deal",
		"{verb} {benefit} before it's gone",
		"Last call: {verb} {benefit}",
		"{verb} lifetime access to {benefit}",
	},
}

// subtitleTemplates parallel the CTA pools with longer copy.
var subtitleTemplates = map[Stage][]string{
	StageDiscovery: {
		"A fresh pick for anyone curious about {benefit}, worth a first look.",
		"Just landed: {benefit} without the usual learning curve.",
		"Quietly powerful {benefit} that deserves more attention.",
		"Start small with {benefit} and see where it takes you.",
	},
	StageValue: {
		"Real users keep coming back to this one for {benefit}.",
		"A dependable way to level up {benefit} without breaking the budget.",
		"Well past the hype stage: {benefit} that holds up in daily use.",
		"The sweet spot between price and {benefit}.",
	},
	StageConversion: {
		"One of the most-clicked deals in its category: {benefit} that converts browsers into buyers.",
		"Proven demand, limited window: {benefit} at its best price yet.",
		"Thousands already grabbed it. The {benefit} speaks for itself.",
		"Top-ranked for a reason: {benefit} with momentum behind it.",
	},
}

// minimalTemplate is the always-accepted fallback when every candidate
// collides with the batch's used set.
const minimalTemplate = "{verb} {benefit} →"

// benefitPools provide a per-cluster benefit phrase when the item itself
// offers no usable keyword.
var benefitPools = map[semantic.Cluster][]string{
	semantic.ClusterAI:           {"AI assistance", "smart automation", "instant drafts"},
	semantic.ClusterBusiness:     {"client management", "faster invoicing", "sales clarity"},
	semantic.ClusterMarketing:    {"audience growth", "better campaigns", "organic reach"},
	semantic.ClusterDesign:       {"standout visuals", "brand polish", "design shortcuts"},
	semantic.ClusterCourses:      {"new skills", "guided learning", "expert knowledge"},
	semantic.ClusterFinance:      {"cleaner books", "tax peace of mind", "cash clarity"},
	semantic.ClusterProductivity: {"focused work", "tidy workflows", "saved hours"},
	semantic.ClusterSoftware:     {"powerful tooling", "lifetime software", "daily wins"},
}

// maxKeywordBenefit is the longest item keyword usable as a benefit phrase.
const maxKeywordBenefit = 18

// render substitutes the placeholders.
func render(tmpl, verb, benefit string) string {
	r := strings.NewReplacer("{verb}", verb, "{benefit}", benefit)
	return strings.TrimSpace(r.Replace(tmpl))
}
