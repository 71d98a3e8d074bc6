// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

// Package retention prunes old backup blobs at a destination.
//
// A blob is deleted only when it violates every bound the policy sets: with
// both keepLastN and olderThanDays configured, a blob must be both beyond
// the newest N and older than the age cutoff. A policy with neither bound
// set never deletes anything.
package retention

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/keeper/internal/schedule"
	"github.com/tomtom215/keeper/internal/sink"
)

// Cleanup applies policy to the blobs at s and returns the names it deleted.
// Delete failures do not stop the sweep; they are joined into the returned
// error after every candidate has been tried.
func Cleanup(ctx context.Context, s sink.Sink, policy schedule.CleanupPolicy, now time.Time) ([]string, error) {
	if policy.KeepLastN == nil && policy.OlderThanDays == nil {
		return nil, nil
	}

	blobs, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blobs for cleanup: %w", err)
	}

	// Newest first so rank equals recency.
	sort.Slice(blobs, func(i, j int) bool {
		return blobs[i].CreatedAt.After(blobs[j].CreatedAt)
	})

	var cutoff time.Time
	if policy.OlderThanDays != nil {
		cutoff = now.UTC().Add(-time.Duration(*policy.OlderThanDays) * 24 * time.Hour)
	}

	var (
		deleted []string
		errs    []error
	)
	for rank, blob := range blobs {
		if policy.KeepLastN != nil && rank < *policy.KeepLastN {
			continue
		}
		if policy.OlderThanDays != nil && !blob.CreatedAt.Before(cutoff) {
			continue
		}

		if err := s.Delete(ctx, blob.Name); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", blob.Name, err))
			continue
		}
		deleted = append(deleted, blob.Name)
	}
	return deleted, errors.Join(errs...)
}
