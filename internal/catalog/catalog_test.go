// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme CRM Suite", "acme-crm-suite"},
		{"  Spaced   Out  ", "spaced-out"},
		{"Última Oferta!", "ltima-oferta"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnsureSlugFallsBackToContentHash(t *testing.T) {
	it := Item{Title: "键盘", URL: "https://example.com/deal"}
	slug := it.EnsureSlug()
	if !strings.HasPrefix(slug, "item-") {
		t.Errorf("expected content-hash fallback, got %q", slug)
	}

	// Stable: same inputs, same identity.
	again := Item{Title: "键盘", URL: "https://example.com/deal"}
	if again.EnsureSlug() != slug {
		t.Errorf("content hash is not stable: %q vs %q", again.EnsureSlug(), slug)
	}

	// Distinct inputs diverge.
	other := Item{Title: "键盘", URL: "https://example.com/other"}
	if other.EnsureSlug() == slug {
		t.Error("distinct URLs produced the same content hash")
	}
}

func TestEnsureSlugKeepsExisting(t *testing.T) {
	it := Item{Slug: "given", Title: "Something Else"}
	if got := it.EnsureSlug(); got != "given" {
		t.Errorf("EnsureSlug overrode existing slug: %q", got)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	good := `[{"slug":"acme-crm","title":"Acme CRM","active":true},{"title":"No Slug Deal","active":true}]`
	if err := os.WriteFile(filepath.Join(dir, "business.json"), []byte(good), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	snaps := LoadDir(dir)
	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snaps))
	}

	biz := snaps["business"]
	if len(biz.Items) != 2 {
		t.Fatalf("business items = %d, want 2", len(biz.Items))
	}
	if biz.Items[0].Category != "business" {
		t.Errorf("category not filled in: %q", biz.Items[0].Category)
	}
	if biz.Items[1].Slug != "no-slug-deal" {
		t.Errorf("derived slug = %q, want no-slug-deal", biz.Items[1].Slug)
	}
	if biz.ModTime.IsZero() {
		t.Error("snapshot ModTime not populated")
	}

	// Malformed file self-heals to a typed empty snapshot.
	if snaps["broken"].Items == nil || len(snaps["broken"].Items) != 0 {
		t.Errorf("broken snapshot = %#v, want empty non-nil items", snaps["broken"].Items)
	}
}

func TestLoadDirMissing(t *testing.T) {
	snaps := LoadDir("/nonexistent/path/for/test")
	if snaps == nil || len(snaps) != 0 {
		t.Errorf("missing dir should yield empty map, got %#v", snaps)
	}
}
