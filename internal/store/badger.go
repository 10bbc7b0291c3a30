// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/dealhound/dealhound/internal/metrics"
)

// keyPrefix namespaces snapshot keys inside the Badger keyspace.
const keyPrefix = "snap:"

// BadgerStore is the durable SnapshotStore backed by BadgerDB.
//
// Values are stored as an 8-byte big-endian version followed by the payload.
// The version check and write happen inside a single Badger transaction, so
// concurrent writers cannot interleave a read-modify-write.
type BadgerStore struct {
	db *badger.DB
}

// BadgerConfig holds BadgerStore settings.
type BadgerConfig struct {
	// Path is the Badger directory. Created if absent.
	Path string

	// InMemory runs Badger without disk persistence (tests).
	InMemory bool
}

// NewBadgerStore opens (or creates) a Badger-backed snapshot store.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", cfg.Path, err)
	}
	return &BadgerStore{db: db}, nil
}

// Get returns the current snapshot for key.
func (s *BadgerStore) Get(_ context.Context, key string) (Versioned, error) {
	var out Versioned
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			version, payload, err := decodeValue(val)
			if err != nil {
				return err
			}
			out.Version = version
			out.Data = make([]byte, len(payload))
			copy(out.Data, payload)
			return nil
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		metrics.StoreOps.WithLabelValues("get", "miss").Inc()
		return Versioned{}, ErrNotFound
	case err != nil:
		metrics.StoreOps.WithLabelValues("get", "error").Inc()
		return Versioned{}, fmt.Errorf("badger get %s: %w", key, err)
	}
	metrics.StoreOps.WithLabelValues("get", "ok").Inc()
	return out, nil
}

// Put writes data for key iff the stored version equals expect.
func (s *BadgerStore) Put(_ context.Context, key string, data []byte, expect uint64) (uint64, error) {
	var next uint64
	err := s.db.Update(func(txn *badger.Txn) error {
		current := uint64(0)
		item, err := txn.Get([]byte(keyPrefix + key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// create
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				v, _, derr := decodeValue(val)
				current = v
				return derr
			}); err != nil {
				return err
			}
		}

		if current != expect {
			return ErrVersionConflict
		}

		next = current + 1
		return txn.Set([]byte(keyPrefix+key), encodeValue(next, data))
	})
	switch {
	case errors.Is(err, ErrVersionConflict):
		metrics.StoreOps.WithLabelValues("put", "conflict").Inc()
		return 0, ErrVersionConflict
	case err != nil:
		metrics.StoreOps.WithLabelValues("put", "error").Inc()
		return 0, fmt.Errorf("badger put %s: %w", key, err)
	}
	metrics.StoreOps.WithLabelValues("put", "ok").Inc()
	return next, nil
}

// Close closes the underlying Badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// encodeValue prepends the version to the payload.
func encodeValue(version uint64, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(buf[:8], version)
	copy(buf[8:], payload)
	return buf
}

// decodeValue splits a stored value into version and payload.
func decodeValue(val []byte) (uint64, []byte, error) {
	if len(val) < 8 {
		return 0, nil, fmt.Errorf("corrupt snapshot value: %d bytes", len(val))
	}
	return binary.BigEndian.Uint64(val[:8]), val[8:], nil
}
