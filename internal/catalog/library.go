// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package catalog

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dealhound/dealhound/internal/logging"
)

// Library holds the loaded catalog and swaps it atomically on reload.
// Readers always see a complete, consistent map.
type Library struct {
	dir      string
	interval time.Duration
	view     atomic.Pointer[map[string]Snapshot]
}

// NewLibrary loads dir immediately. interval > 0 enables periodic reload
// when Serve runs.
func NewLibrary(dir string, interval time.Duration) *Library {
	l := &Library{dir: dir, interval: interval}
	l.Reload()
	return l
}

// Reload re-reads the catalog directory and swaps the view.
func (l *Library) Reload() {
	snaps := LoadDir(l.dir)
	l.view.Store(&snaps)
	logging.Info().Int("categories", len(snaps)).Str("dir", l.dir).Msg("catalog loaded")
}

// All returns the current category map. Callers must not mutate it.
func (l *Library) All() map[string]Snapshot {
	return *l.view.Load()
}

// Get returns one category's snapshot.
func (l *Library) Get(category string) (Snapshot, bool) {
	snap, ok := l.All()[category]
	return snap, ok
}

// Categories returns the sorted category keys.
func (l *Library) Categories() []string {
	all := l.All()
	out := make([]string, 0, len(all))
	for k := range all {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Serve reloads on the configured interval until ctx is cancelled.
// Implements suture.Service. A zero interval blocks until shutdown.
func (l *Library) Serve(ctx context.Context) error {
	if l.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Reload()
		}
	}
}

func (l *Library) String() string { return "catalog-library" }
