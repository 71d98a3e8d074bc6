// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/keeper/internal/engine"
	"github.com/tomtom215/keeper/internal/sink"
)

// restoreRequest is the body of the restore and preview endpoints.
type restoreRequest struct {
	Destination string `json:"destination" validate:"required,oneof=local s3"`
	Blob        string `json:"blob" validate:"required"`
	Password    string `json:"password"`
}

// decodeRestoreRequest parses and validates a restore or preview body.
// Returns false after writing the error response when the body is unusable.
func decodeRestoreRequest(w http.ResponseWriter, r *http.Request) (engine.RestoreRequest, bool) {
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON", err)
		return engine.RestoreRequest{}, false
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return engine.RestoreRequest{}, false
	}

	if !sink.IsBlobName(req.Blob) {
		respondError(w, http.StatusBadRequest, "INVALID_BLOB_NAME", "Blob is not a backup blob name", nil)
		return engine.RestoreRequest{}, false
	}

	return engine.RestoreRequest{
		Destination: sink.Kind(req.Destination),
		Blob:        req.Blob,
		Password:    req.Password,
	}, true
}

// ListBackups enumerates the blobs held by one destination, newest first.
// The destination query parameter defaults to local.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	kind := sink.Kind(r.URL.Query().Get("destination"))
	if kind == "" {
		kind = sink.KindLocal
	}
	if !kind.Valid() {
		respondError(w, http.StatusBadRequest, "INVALID_DESTINATION", "Destination must be one of: local s3", nil)
		return
	}

	blobs, err := h.manager.ListBlobs(r.Context(), kind)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, blobs)
}

// PreviewRestore summarizes a backup blob without touching live data.
func (h *Handler) PreviewRestore(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRestoreRequest(w, r)
	if !ok {
		return
	}

	preview, err := h.manager.PreviewBackup(r.Context(), req)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, preview)
}

// Restore merges a backup blob's records into the live store.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRestoreRequest(w, r)
	if !ok {
		return
	}

	result, err := h.manager.Restore(r.Context(), req)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, result)
}
