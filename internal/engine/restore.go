// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/tomtom215/keeper/internal/logging"
	"github.com/tomtom215/keeper/internal/metrics"
	"github.com/tomtom215/keeper/internal/sink"
	"github.com/tomtom215/keeper/internal/snapshot"
	"github.com/tomtom215/keeper/internal/store"
)

// RestoreRequest identifies a blob to preview or restore.
type RestoreRequest struct {
	Destination sink.Kind
	Blob        string
	Password    string
}

func (c *Coordinator) readBlob(ctx context.Context, req RestoreRequest) ([]byte, error) {
	s, ok := c.sinks[req.Destination]
	if !ok {
		return nil, fmt.Errorf("destination %q: %w", req.Destination, ErrDestinationNotConfigured)
	}
	if !sink.IsBlobName(req.Blob) {
		return nil, fmt.Errorf("%q is not a backup blob name", req.Blob)
	}
	return s.Read(ctx, req.Blob)
}

// ListBlobs enumerates the backup blobs held by one destination, newest
// first.
func (c *Coordinator) ListBlobs(ctx context.Context, kind sink.Kind) ([]sink.BlobInfo, error) {
	s, ok := c.sinks[kind]
	if !ok {
		return nil, fmt.Errorf("destination %q: %w", kind, ErrDestinationNotConfigured)
	}

	blobs, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing %s backups: %w", kind, err)
	}
	sort.Slice(blobs, func(i, j int) bool {
		return blobs[i].CreatedAt.After(blobs[j].CreatedAt)
	})
	return blobs, nil
}

// PreviewBackup decodes a blob and summarizes its contents without touching
// live data. Decode errors pass through so callers can tell a missing
// password from a wrong one from a damaged payload.
func (c *Coordinator) PreviewBackup(ctx context.Context, req RestoreRequest) (snapshot.Preview, error) {
	data, err := c.readBlob(ctx, req)
	if err != nil {
		return snapshot.Preview{}, err
	}

	doc, err := snapshot.Decode(data, req.Password)
	if err != nil {
		return snapshot.Preview{}, err
	}
	return doc.Preview(), nil
}

// Restore merges a blob's records into the live store. It takes the same
// run lock as a backup: restoring while a snapshot is being taken would
// capture a half-merged state. The merge is an additive upsert by record id;
// existing records not present in the backup are untouched.
func (c *Coordinator) Restore(ctx context.Context, req RestoreRequest) (RestoreResult, error) {
	if !c.runMu.TryLock() {
		return RestoreResult{}, ErrRunInProgress
	}
	defer c.runMu.Unlock()

	data, err := c.readBlob(ctx, req)
	if err != nil {
		metrics.RecordRestore("failed", 0, 0, 0)
		return RestoreResult{}, err
	}

	doc, err := snapshot.Decode(data, req.Password)
	if err != nil {
		metrics.RecordRestore("rejected", 0, 0, 0)
		return RestoreResult{}, err
	}
	if doc.Empty() {
		metrics.RecordRestore("rejected", 0, 0, 0)
		return RestoreResult{}, snapshot.ErrEmpty
	}

	logging.Info().
		Str("blob", req.Blob).
		Str("destination", string(req.Destination)).
		Int("protocols", len(doc.Protocols)).
		Int("dose_logs", len(doc.DoseLogs)).
		Int("literature", len(doc.Literature)).
		Msg("Restore started")

	result := RestoreResult{
		Protocols:  c.mergeRecords(ctx, store.Protocols, doc.Protocols),
		DoseLogs:   c.mergeRecords(ctx, store.DoseLogs, doc.DoseLogs),
		Literature: c.mergeRecords(ctx, store.Literature, doc.Literature),
	}

	metrics.RecordRestore("succeeded", result.Protocols, result.DoseLogs, result.Literature)
	logging.Info().
		Int("merged", result.Total()).
		Msg("Restore complete")
	return result, nil
}

// mergeRecords upserts records one at a time. A record that cannot be
// merged is logged and skipped; one bad record must not sink the rest of
// the backup.
func (c *Coordinator) mergeRecords(ctx context.Context, kind store.EntityKind, records []json.RawMessage) int {
	merged := 0
	for _, record := range records {
		if _, err := c.store.Put(ctx, kind, record); err != nil {
			logging.Warn().
				Err(err).
				Str("entity", string(kind)).
				Msg("Skipping unrestorable record")
			continue
		}
		merged++
	}
	return merged
}
