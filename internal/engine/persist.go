// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/tomtom215/keeper/internal/schedule"
)

// Schedule and history live as pretty-printed JSON files in the data dir so
// they survive restarts and stay inspectable by hand.
const (
	scheduleFile = "backup_schedule.json"
	historyFile  = "backup_history.json"

	maxHistoryEntries = 100
)

func (c *Coordinator) schedulePath() string {
	return filepath.Join(c.cfg.DataDir, scheduleFile)
}

func (c *Coordinator) historyPath() string {
	return filepath.Join(c.cfg.DataDir, historyFile)
}

func (c *Coordinator) loadSchedule() (schedule.Schedule, error) {
	data, err := os.ReadFile(c.schedulePath())
	if err != nil {
		if os.IsNotExist(err) {
			return schedule.Default(), nil
		}
		return schedule.Default(), fmt.Errorf("read schedule: %w", err)
	}

	var s schedule.Schedule
	if err := json.Unmarshal(data, &s); err != nil {
		return schedule.Default(), fmt.Errorf("parse schedule: %w", err)
	}
	if err := s.Validate(); err != nil {
		return schedule.Default(), fmt.Errorf("stored schedule invalid: %w", err)
	}
	// The file is hand-editable, so the derived NextRun cannot be trusted.
	// A schedule that cannot fire carries no next slot.
	if !s.Enabled || s.Frequency.Kind == schedule.Manual {
		s.NextRun = nil
	}
	return s, nil
}

// saveScheduleLocked persists the schedule. Caller holds c.mu.
func (c *Coordinator) saveScheduleLocked() error {
	data, err := json.MarshalIndent(c.schedule, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	if err := os.WriteFile(c.schedulePath(), data, 0o600); err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}
	return nil
}

func (c *Coordinator) loadHistory() ([]HistoryEntry, error) {
	data, err := os.ReadFile(c.historyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}

	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	if len(entries) > maxHistoryEntries {
		entries = entries[:maxHistoryEntries]
	}
	return entries, nil
}

// saveHistoryLocked persists the journal. Caller holds c.mu.
func (c *Coordinator) saveHistoryLocked() error {
	data, err := json.MarshalIndent(c.history, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := os.WriteFile(c.historyPath(), data, 0o600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
