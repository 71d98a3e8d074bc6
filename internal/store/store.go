// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

// Package store persists live application records in BadgerDB.
//
// Records are opaque JSON documents keyed by their "id" field under a
// per-kind prefix. The engine never interprets record schemas beyond the id:
// snapshots export records verbatim and restores merge them back by key, so
// a restore can only add or overwrite, never delete.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// EntityKind names a record bucket.
type EntityKind string

const (
	Protocols  EntityKind = "protocols"
	DoseLogs   EntityKind = "doseLogs"
	Literature EntityKind = "literature"
)

// ErrMissingID rejects records without a non-empty "id" field. Such a record
// has no stable identity to merge by.
var ErrMissingID = errors.New("record has no id field")

func (k EntityKind) prefix() []byte {
	return []byte(string(k) + ":")
}

// Store is a BadgerDB-backed record store.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store backed by memory only. Test hook.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put upserts a record under its id. Returns the id the record was stored
// under, or ErrMissingID when the record carries none.
func (s *Store) Put(_ context.Context, kind EntityKind, record json.RawMessage) (string, error) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(record, &probe); err != nil {
		return "", fmt.Errorf("parse record: %w", err)
	}
	if probe.ID == "" {
		return "", ErrMissingID
	}

	key := append(kind.prefix(), probe.ID...)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, record)
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", kind, probe.ID, err)
	}
	return probe.ID, nil
}

// Get returns the record stored under kind/id, or badger.ErrKeyNotFound.
func (s *Store) Get(_ context.Context, kind EntityKind, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(append(kind.prefix(), id...))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of records of the given kind.
func (s *Store) Count(_ context.Context, kind EntityKind) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = kind.prefix()
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

func (s *Store) list(kind EntityKind) ([]json.RawMessage, error) {
	var out []json.RawMessage
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = kind.prefix()
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, json.RawMessage(val))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return out, nil
}

// Protocols implements snapshot.Source.
func (s *Store) Protocols(context.Context) ([]json.RawMessage, error) {
	return s.list(Protocols)
}

// DoseLogs implements snapshot.Source.
func (s *Store) DoseLogs(context.Context) ([]json.RawMessage, error) {
	return s.list(DoseLogs)
}

// Literature implements snapshot.Source.
func (s *Store) Literature(context.Context) ([]json.RawMessage, error) {
	return s.list(Literature)
}
