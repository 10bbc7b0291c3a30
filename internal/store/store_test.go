// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package store

import (
	"context"
	"errors"
	"testing"
)

// storeUnderTest runs the same contract tests against each implementation.
func storeUnderTest(t *testing.T, name string) SnapshotStore {
	t.Helper()
	switch name {
	case "memory":
		return NewMemoryStore()
	case "badger":
		s, err := NewBadgerStore(BadgerConfig{InMemory: true})
		if err != nil {
			t.Fatalf("open badger: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	default:
		t.Fatalf("unknown store %q", name)
		return nil
	}
}

func TestSnapshotStoreContract(t *testing.T) {
	for _, backend := range []string{"memory", "badger"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			s := storeUnderTest(t, backend)

			if _, err := s.Get(ctx, KeyLedger); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get on empty store = %v, want ErrNotFound", err)
			}

			v1, err := s.Put(ctx, KeyLedger, []byte(`{"totalClicks":1}`), 0)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if v1 != 1 {
				t.Errorf("first version = %d, want 1", v1)
			}

			got, err := s.Get(ctx, KeyLedger)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got.Data) != `{"totalClicks":1}` || got.Version != 1 {
				t.Errorf("Get = %q v%d, want stored payload v1", got.Data, got.Version)
			}

			// Stale write is rejected.
			if _, err := s.Put(ctx, KeyLedger, []byte("stale"), 0); !errors.Is(err, ErrVersionConflict) {
				t.Errorf("stale create = %v, want ErrVersionConflict", err)
			}

			v2, err := s.Put(ctx, KeyLedger, []byte(`{"totalClicks":2}`), v1)
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if v2 != 2 {
				t.Errorf("second version = %d, want 2", v2)
			}

			// Keys are independent.
			if _, err := s.Get(ctx, KeyAnalytics); !errors.Is(err, ErrNotFound) {
				t.Errorf("other key should be absent, got %v", err)
			}
		})
	}
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	buf := []byte("original")
	if _, err := s.Put(ctx, "k", buf, 0); err != nil {
		t.Fatal(err)
	}
	buf[0] = 'X'

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != "original" {
		t.Errorf("stored data mutated through caller slice: %q", got.Data)
	}
	got.Data[0] = 'Y'

	again, _ := s.Get(ctx, "k")
	if string(again.Data) != "original" {
		t.Errorf("stored data mutated through returned slice: %q", again.Data)
	}
}
