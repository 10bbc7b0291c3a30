// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package catalog models the deal items the engine ranks and loads the
// per-category item snapshots produced by the (out-of-scope) crawler.
package catalog

import (
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Item is one affiliate deal in a category snapshot.
type Item struct {
	// Slug uniquely identifies the item and is URL-safe.
	Slug string `json:"slug"`

	Title    string `json:"title"`
	Category string `json:"category"`
	URL      string `json:"url,omitempty"`

	// Subtitle and Keywords are optional crawler-provided copy which the
	// analytics pulse folds into frequency tables at reduced weight.
	Subtitle string   `json:"subtitle,omitempty"`
	Keywords []string `json:"keywords,omitempty"`

	Active     bool      `json:"active"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// slugStrip removes everything that is not a lowercase word character or hyphen.
var slugStrip = regexp.MustCompile(`[^a-z0-9-]+`)

// EnsureSlug returns the item's slug, deriving one when missing: first a
// slugified title, and if that produces nothing usable, a stable content
// hash of title and URL. Ranking never fails an item for a missing slug.
func (it *Item) EnsureSlug() string {
	if it.Slug != "" {
		return it.Slug
	}
	if s := Slugify(it.Title); s != "" {
		it.Slug = s
		return s
	}
	it.Slug = ContentHash(it.Title, it.URL)
	return it.Slug
}

// Slugify lowercases, hyphenates whitespace and strips non-URL-safe runes.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), "-")
	s = slugStrip.ReplaceAllString(s, "")
	return strings.Trim(s, "-")
}

// ContentHash returns a short stable identity for an item that lacks any
// derivable slug. blake2b over title and URL keeps it collision-resistant
// while staying URL-safe.
func ContentHash(title, url string) string {
	sum := blake2b.Sum256([]byte(title + "\x00" + url))
	return "item-" + hex.EncodeToString(sum[:8])
}
