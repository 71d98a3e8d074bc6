// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

// Package schedule holds the persistent backup schedule and the pure timing
// functions that decide when a run is due.
//
// NextRun and IsDue are side-effect free: for any fixed schedule and clock
// reading they always return the same answer, which keeps the scheduler loop
// trivially testable with a fake clock.
package schedule

import (
	"fmt"
	"time"

	"github.com/tomtom215/keeper/internal/sink"
)

// CleanupPolicy bounds how many old blobs survive at each destination.
// A blob is deleted only when it violates every configured bound; an unset
// bound does not apply. With neither bound set, cleanup is a no-op.
type CleanupPolicy struct {
	// KeepLastN keeps at most this many blobs, newest first.
	KeepLastN *int `json:"keepLastN,omitempty" koanf:"keep_last_n"`

	// OlderThanDays deletes blobs older than this many days.
	OlderThanDays *int `json:"olderThanDays,omitempty" koanf:"older_than_days"`
}

// Schedule is the persistent backup configuration. It is the single source of
// truth for scheduling decisions and is owned by the run coordinator while a
// run is in flight.
type Schedule struct {
	Enabled       bool          `json:"enabled"`
	Frequency     Frequency     `json:"frequency"`
	Destinations  []sink.Kind   `json:"destinations"`
	Compress      bool          `json:"compress"`
	BackupOnClose bool          `json:"backupOnClose"`
	MaxRetries    int           `json:"maxRetries"`
	Cleanup       CleanupPolicy `json:"cleanupSettings"`

	// LastRun is the completion time of the most recent run attempt,
	// successful or not.
	LastRun *time.Time `json:"lastBackup,omitempty"`

	// NextRun is derived from Enabled, Frequency and LastRun. Always nil
	// when Enabled is false.
	NextRun *time.Time `json:"nextBackup,omitempty"`
}

// Default returns the schedule used before the user configures anything:
// manual-only backups to local disk, compressed, three attempts per write.
func Default() Schedule {
	keep := 10
	olderThan := 30
	return Schedule{
		Enabled:      false,
		Frequency:    OnDemand(),
		Destinations: []sink.Kind{sink.KindLocal},
		Compress:     true,
		MaxRetries:   3,
		Cleanup: CleanupPolicy{
			KeepLastN:     &keep,
			OlderThanDays: &olderThan,
		},
	}
}

// Validate checks the schedule's invariants. Destinations must never be
// empty: a schedule that writes nowhere is a configuration error, and
// removing the last destination is rejected here.
func (s *Schedule) Validate() error {
	if err := s.Frequency.Validate(); err != nil {
		return err
	}
	if len(s.Destinations) == 0 {
		return fmt.Errorf("at least one destination is required")
	}
	seen := make(map[sink.Kind]bool, len(s.Destinations))
	for _, d := range s.Destinations {
		if !d.Valid() {
			return fmt.Errorf("unknown destination kind %q", d)
		}
		if seen[d] {
			return fmt.Errorf("duplicate destination %q", d)
		}
		seen[d] = true
	}
	if s.MaxRetries < 1 {
		return fmt.Errorf("maxRetries must be at least 1, got %d", s.MaxRetries)
	}
	if n := s.Cleanup.KeepLastN; n != nil && *n < 1 {
		return fmt.Errorf("cleanup keepLastN must be positive, got %d", *n)
	}
	if d := s.Cleanup.OlderThanDays; d != nil && *d < 1 {
		return fmt.Errorf("cleanup olderThanDays must be positive, got %d", *d)
	}
	return nil
}

// NextRun computes when the schedule should next fire, given the current
// time. Returns nil when the schedule is disabled or manual-only.
func NextRun(s Schedule, now time.Time) *time.Time {
	if !s.Enabled {
		return nil
	}

	var next time.Time
	switch s.Frequency.Kind {
	case Manual:
		return nil
	case Hourly:
		if s.LastRun == nil {
			next = now
		} else {
			next = s.LastRun.Add(time.Hour)
		}
	case Weekly:
		if s.LastRun == nil {
			next = now
		} else {
			next = s.LastRun.Add(7 * 24 * time.Hour)
		}
	case DailyAt:
		next = dailyTarget(s, now)
	default:
		return nil
	}

	next = next.UTC()
	return &next
}

// dailyTarget finds the next occurrence of the configured hour: today if the
// hour has not passed and today's run has not happened, else tomorrow.
func dailyTarget(s Schedule, now time.Time) time.Time {
	now = now.UTC()
	target := time.Date(now.Year(), now.Month(), now.Day(), s.Frequency.Hour, 0, 0, 0, time.UTC)

	ranToday := s.LastRun != nil && !s.LastRun.UTC().Before(target)
	if now.Before(target) && !ranToday {
		return target
	}
	// The hour already passed today, or today's run has happened: the next
	// slot is tomorrow. A missed slot is skipped, never fired late.
	return target.Add(24 * time.Hour)
}

// IsDue reports whether a run should start now. Manual schedules are never
// due; disabled schedules are never due. The stored NextRun takes precedence
// when set (it may have been re-anchored after a long disabled period);
// otherwise dueness derives directly from LastRun and the frequency.
func IsDue(s Schedule, now time.Time) bool {
	if !s.Enabled || s.Frequency.Kind == Manual {
		return false
	}

	next := s.NextRun
	if next == nil {
		next = NextRun(s, now)
	}
	if next == nil {
		return false
	}
	return !now.UTC().Before(*next)
}

// Reconcile recomputes the derived NextRun field after a run completed or
// the cleanup/destination settings changed.
func (s *Schedule) Reconcile(now time.Time) {
	if !s.Enabled {
		s.NextRun = nil
		return
	}
	s.NextRun = NextRun(*s, now)
}

// Reanchor recomputes NextRun from now, ignoring a stale LastRun. Used when
// the schedule is re-enabled or its frequency changes, so a long-disabled
// schedule waits a full interval instead of firing on a missed historical
// slot. A schedule that has never run at all is due immediately.
func (s *Schedule) Reanchor(now time.Time) {
	if !s.Enabled || s.Frequency.Kind == Manual {
		s.NextRun = nil
		return
	}

	now = now.UTC()
	var next time.Time
	switch s.Frequency.Kind {
	case Hourly:
		if s.LastRun == nil {
			next = now
		} else {
			next = now.Add(time.Hour)
		}
	case Weekly:
		if s.LastRun == nil {
			next = now
		} else {
			next = now.Add(7 * 24 * time.Hour)
		}
	case DailyAt:
		next = dailyTarget(*s, now)
	}
	s.NextRun = &next
}

// MarkRun records a completed run attempt at ts and recomputes NextRun.
// Called for every attempt regardless of outcome: the schedule advances even
// after a partial failure, trading guaranteed delivery for a bounded retry
// surface ("best-effort periodic").
func (s *Schedule) MarkRun(ts time.Time) {
	t := ts.UTC()
	s.LastRun = &t
	s.Reconcile(ts)
}
