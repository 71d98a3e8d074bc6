// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Local stores blobs as files in a single directory.
//
// Writes go through a temp file followed by rename so a crash mid-write never
// leaves a half-written blob under a valid backup name.
type Local struct {
	dir string
}

// NewLocal creates a local sink rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("local sink: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("local sink: create directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Kind returns KindLocal.
func (l *Local) Kind() Kind { return KindLocal }

// Dir returns the sink's root directory.
func (l *Local) Dir() string { return l.dir }

// Write stores data under name. Filesystem failures (disk full, permissions)
// are terminal: retrying locally will not free space or restore access.
func (l *Local) Write(_ context.Context, name string, data []byte) error {
	path := filepath.Join(l.dir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return NewTerminal("write", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck // Best effort cleanup of the temp file
		return NewTerminal("write", err)
	}
	return nil
}

// List returns descriptors for every blob in the directory that matches the
// backup naming convention. Stray files are ignored.
func (l *Local) List(_ context.Context) ([]BlobInfo, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, NewTerminal("list", err)
	}

	var blobs []BlobInfo
	for _, entry := range entries {
		if entry.IsDir() || !IsBlobName(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		created, ok := BlobTime(entry.Name())
		if !ok {
			created = info.ModTime()
		}

		blobs = append(blobs, BlobInfo{
			Name:      entry.Name(),
			Size:      info.Size(),
			CreatedAt: created,
		})
	}
	return blobs, nil
}

// Read fetches a blob's contents.
func (l *Local) Read(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewTerminal("read", ErrNotFound)
		}
		return nil, NewTerminal("read", err)
	}
	return data, nil
}

// Delete removes a blob.
func (l *Local) Delete(_ context.Context, name string) error {
	if err := os.Remove(filepath.Join(l.dir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewTerminal("delete", ErrNotFound)
		}
		return NewTerminal("delete", err)
	}
	return nil
}
