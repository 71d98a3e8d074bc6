// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/keeper/internal/engine"
	"github.com/tomtom215/keeper/internal/schedule"
	"github.com/tomtom215/keeper/internal/sink"
	"github.com/tomtom215/keeper/internal/snapshot"
)

// BackupManager is the interface for backup and restore operations. The run
// coordinator implements it.
type BackupManager interface {
	Schedule() schedule.Schedule
	SetSchedule(next schedule.Schedule) error
	History() []engine.HistoryEntry
	GetProgress() engine.Progress
	Run(ctx context.Context, trigger engine.Trigger) (engine.HistoryEntry, error)
	ListBlobs(ctx context.Context, kind sink.Kind) ([]sink.BlobInfo, error)
	PreviewBackup(ctx context.Context, req engine.RestoreRequest) (snapshot.Preview, error)
	Restore(ctx context.Context, req engine.RestoreRequest) (engine.RestoreResult, error)
}

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	manager   BackupManager
	version   string
	startTime time.Time
}

// NewHandler creates a handler backed by the given manager.
func NewHandler(manager BackupManager, version string) *Handler {
	return &Handler{
		manager:   manager,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status     string     `json:"status"`
	Version    string     `json:"version"`
	Uptime     float64    `json:"uptime"`
	LastBackup *time.Time `json:"lastBackup,omitempty"`
	NextBackup *time.Time `json:"nextBackup,omitempty"`
}

// Health reports liveness plus the schedule's last and next run times.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	sched := h.manager.Schedule()

	respondSuccess(w, http.StatusOK, HealthStatus{
		Status:     "healthy",
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Seconds(),
		LastBackup: sched.LastRun,
		NextBackup: sched.NextRun,
	})
}

// GetSchedule returns the current backup schedule.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.manager.Schedule())
}

// PutSchedule replaces the backup schedule. LastRun is preserved server-side
// and NextRun is recomputed, so clients cannot forge either.
func (h *Handler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	var sched schedule.Schedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON", err)
		return
	}

	if err := h.manager.SetSchedule(sched); err != nil {
		// Bad input keeps its message; anything else (run lock held,
		// persistence failure) maps like every other domain error.
		if errors.Is(err, engine.ErrInvalidSchedule) || errors.Is(err, engine.ErrDestinationNotConfigured) {
			respondError(w, http.StatusBadRequest, "INVALID_SCHEDULE", err.Error(), err)
			return
		}
		respondMappedError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, h.manager.Schedule())
}

// RunBackup triggers a manual backup. The run's journal entry is returned
// whatever its outcome; only a concurrent run is rejected.
func (h *Handler) RunBackup(w http.ResponseWriter, r *http.Request) {
	entry, err := h.manager.Run(r.Context(), engine.TriggerManual)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, entry)
}

// GetHistory returns the run journal, newest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.manager.History())
}

// GetProgress returns the live progress of the current run, if any.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.manager.GetProgress())
}
