// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dealhound/dealhound/internal/logging"
)

// Snapshot is one category's item list plus the time the snapshot was last
// written. ModTime feeds the ranking engine's freshness score.
type Snapshot struct {
	Category string
	Items    []Item
	ModTime  time.Time
}

// LoadDir reads every *.json file in dir as a category snapshot. The file
// stem is the category key. Malformed files self-heal to an empty list;
// a broken crawler output must never take ranking down.
func LoadDir(dir string) map[string]Snapshot {
	out := make(map[string]Snapshot)

	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Warn().Err(err).Str("dir", dir).Msg("catalog dir unreadable, serving empty catalog")
		return out
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		category := strings.TrimSuffix(entry.Name(), ".json")
		path := filepath.Join(dir, entry.Name())
		out[category] = loadFile(path, category)
	}
	return out
}

// loadFile parses one category snapshot file, degrading to empty on error.
func loadFile(path, category string) Snapshot {
	snap := Snapshot{Category: category, Items: []Item{}}

	if info, err := os.Stat(path); err == nil {
		snap.ModTime = info.ModTime()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warn().Err(err).Str("category", category).Msg("category snapshot unreadable")
		return snap
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		logging.Warn().Err(err).Str("category", category).Msg("category snapshot malformed, self-healing to empty")
		return snap
	}

	for i := range items {
		if items[i].Category == "" {
			items[i].Category = category
		}
		items[i].EnsureSlug()
		if items[i].LastSeenAt.IsZero() {
			items[i].LastSeenAt = snap.ModTime
		}
	}
	snap.Items = items
	return snap
}
