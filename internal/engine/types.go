// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

// Package engine coordinates backup runs and restores.
//
// The coordinator owns the schedule, the run history and the run lock. At
// most one run (backup or restore) is in flight at a time; a second trigger
// is rejected synchronously rather than queued. Destination writes within a
// run are concurrent and isolated: one destination failing, even terminally,
// never aborts the others.
package engine

import (
	"errors"
	"time"

	"github.com/tomtom215/keeper/internal/sink"
)

// ErrRunInProgress rejects a trigger that arrives while another backup or
// restore holds the run lock.
var ErrRunInProgress = errors.New("a backup or restore is already in progress")

// ErrDestinationNotConfigured rejects a restore or listing request naming a
// destination that has no configured sink.
var ErrDestinationNotConfigured = errors.New("destination is not configured")

// ErrInvalidSchedule wraps schedule validation failures so callers can tell
// a bad request apart from a persistence error.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Trigger indicates what initiated a run.
type Trigger string

const (
	// TriggerManual indicates the run was requested through the API.
	TriggerManual Trigger = "manual"

	// TriggerScheduled indicates the scheduler started the run.
	TriggerScheduled Trigger = "scheduled"

	// TriggerShutdown indicates the final run during graceful shutdown.
	TriggerShutdown Trigger = "shutdown"
)

// Outcome is the terminal state of a run.
type Outcome string

const (
	// OutcomeSucceeded means every destination write succeeded.
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeFailed means no destination write succeeded.
	OutcomeFailed Outcome = "failed"

	// OutcomePartiallyFailed means some destinations succeeded and some
	// did not.
	OutcomePartiallyFailed Outcome = "partially_failed"
)

// DestinationResult records how one destination fared during a run.
type DestinationResult struct {
	Kind    sink.Kind `json:"kind"`
	Success bool      `json:"success"`
	Blob    string    `json:"blob,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// HistoryEntry is one completed run in the journal. Entries are kept newest
// first and the journal is capped at maxHistoryEntries.
type HistoryEntry struct {
	ID           string              `json:"id"`
	Timestamp    time.Time           `json:"timestamp"`
	Trigger      Trigger             `json:"trigger"`
	Outcome      Outcome             `json:"outcome"`
	SizeBytes    int64               `json:"sizeBytes"`
	Compressed   bool                `json:"compressed"`
	Encrypted    bool                `json:"encrypted"`
	Destinations []DestinationResult `json:"destinations"`
	Error        string              `json:"error,omitempty"`
}

// Success reports whether every destination write in the entry succeeded.
func (e HistoryEntry) Success() bool {
	return e.Outcome == OutcomeSucceeded
}

// Progress is a point-in-time view of the current run, safe to poll from
// the API while a run is in flight.
type Progress struct {
	IsRunning      bool     `json:"isRunning"`
	CurrentStep    string   `json:"currentStep,omitempty"`
	CompletedSteps []string `json:"completedSteps"`
	FailedSteps    []string `json:"failedSteps"`
}

// RestoreResult reports how many records a restore merged per entity kind.
type RestoreResult struct {
	Protocols  int `json:"protocols"`
	DoseLogs   int `json:"doseLogs"`
	Literature int `json:"literature"`
}

// Total returns the number of records merged across all kinds.
func (r RestoreResult) Total() int {
	return r.Protocols + r.DoseLogs + r.Literature
}
