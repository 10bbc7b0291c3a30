// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package store provides the versioned snapshot store behind the engagement
// ledger, analytics snapshot, and content state.
//
// Snapshots are whole-value read-modify-write structures. To keep a click
// racing an analytics rebuild from silently losing an update, every write
// carries the version the writer read; the store rejects writes whose
// expected version is stale. The ledger actor is the only writer for its
// keys, so conflicts indicate a programming error rather than a runtime
// condition, but the check is cheap and makes the contract explicit.
package store

import (
	"context"
	"errors"
)

// Well-known snapshot keys.
const (
	KeyLedger    = "ledger"
	KeyAnalytics = "analytics"
)

var (
	// ErrNotFound is returned when no snapshot exists for the key.
	ErrNotFound = errors.New("store: snapshot not found")

	// ErrVersionConflict is returned when a write carries a stale version.
	ErrVersionConflict = errors.New("store: version conflict")
)

// Versioned is a snapshot payload together with its store version.
type Versioned struct {
	// Data is the serialized snapshot.
	Data []byte

	// Version increments on every successful write. Version 0 never exists;
	// it is the expected version for a create.
	Version uint64
}

// SnapshotStore persists whole-value snapshots with optimistic versioning.
// Reads are concurrent and lock-free from the caller's perspective; writes
// for a key must present the version they read (0 to create).
type SnapshotStore interface {
	// Get returns the current snapshot for key, or ErrNotFound.
	Get(ctx context.Context, key string) (Versioned, error)

	// Put writes data for key iff the stored version equals expect.
	// Returns the new version, or ErrVersionConflict.
	Put(ctx context.Context, key string, data []byte, expect uint64) (uint64, error)

	// Close releases underlying resources.
	Close() error
}
