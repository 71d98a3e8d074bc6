// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/keeper/internal/engine"
	"github.com/tomtom215/keeper/internal/sink"
	"github.com/tomtom215/keeper/internal/snapshot"
)

// mapError translates domain errors to an HTTP status, a machine-readable
// code and a client-safe message. Unrecognized errors become opaque 500s so
// internal detail never leaks to clients.
func mapError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, engine.ErrRunInProgress):
		return http.StatusConflict, "RUN_IN_PROGRESS", "A backup or restore is already in progress"
	case errors.Is(err, snapshot.ErrPasswordRequired):
		return http.StatusBadRequest, "PASSWORD_REQUIRED", "This backup is encrypted and requires a password"
	case errors.Is(err, snapshot.ErrWrongPassword):
		return http.StatusUnauthorized, "WRONG_PASSWORD", "The provided password does not decrypt this backup"
	case errors.Is(err, snapshot.ErrEmpty):
		return http.StatusUnprocessableEntity, "EMPTY_BACKUP", "The backup file contains no records"
	case errors.Is(err, snapshot.ErrCorrupt):
		return http.StatusUnprocessableEntity, "CORRUPT_BACKUP", "The backup file is damaged or not a backup"
	case errors.Is(err, engine.ErrDestinationNotConfigured):
		return http.StatusBadRequest, "DESTINATION_NOT_CONFIGURED", "That destination is not configured on this server"
	case errors.Is(err, sink.ErrNotFound):
		return http.StatusNotFound, "BLOB_NOT_FOUND", "No backup with that name exists at the destination"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred"
	}
}

// respondMappedError sends the standardized error response for a domain
// error.
func respondMappedError(w http.ResponseWriter, err error) {
	status, code, message := mapError(err)
	respondError(w, status, code, message, err)
}
