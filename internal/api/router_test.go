// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tomtom215/keeper/internal/schedule"
)

func TestRouterMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, &fakeManager{schedule: schedule.Default()})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/backup/schedule", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	h := newTestServer(t, &fakeManager{schedule: schedule.Default()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, &fakeManager{schedule: schedule.Default()})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected Prometheus exposition output")
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	h := newTestServer(t, &fakeManager{schedule: schedule.Default()})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/backup/schedule", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected Access-Control-Allow-Origin on preflight response")
	}
}

func TestSanitizeLogValue(t *testing.T) {
	got := sanitizeLogValue("line1\nline2\ttab")
	if strings.ContainsAny(got, "\n\t") {
		t.Errorf("control characters survived: %q", got)
	}
	if !strings.Contains(got, "\\x0a") {
		t.Errorf("expected escaped newline, got %q", got)
	}
}
