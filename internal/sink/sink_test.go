// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package sink

import (
	"errors"
	"sort"
	"testing"
	"time"
)

func TestBlobNameEncodesOptions(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		compressed bool
		encrypted  bool
		want       string
	}{
		{false, false, "keeper_backup_20260314T092653Z.json"},
		{true, false, "keeper_backup_20260314T092653Z.json.gz"},
		{false, true, "keeper_backup_20260314T092653Z.json.enc"},
		{true, true, "keeper_backup_20260314T092653Z.json.gz.enc"},
	}

	for _, tt := range tests {
		got := BlobName(ts, tt.compressed, tt.encrypted)
		if got != tt.want {
			t.Errorf("BlobName(compressed=%v, encrypted=%v) = %q, want %q",
				tt.compressed, tt.encrypted, got, tt.want)
		}
		if !IsBlobName(got) {
			t.Errorf("IsBlobName(%q) = false, want true", got)
		}
	}
}

func TestBlobNameLexicographicOrderMatchesTime(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 1, 2, 23, 59, 59, 0, time.UTC),
		time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 1, 5, 0, 0, 0, time.UTC),
		time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	names := make([]string, len(times))
	for i, ts := range times {
		names[i] = BlobName(ts, true, false)
	}

	if !sort.StringsAreSorted(names) {
		t.Errorf("blob names not in lexicographic order: %v", names)
	}
}

func TestBlobTimeRoundTrip(t *testing.T) {
	ts := time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)
	name := BlobName(ts, false, false)

	got, ok := BlobTime(name)
	if !ok {
		t.Fatalf("BlobTime(%q) failed", name)
	}
	if !got.Equal(ts) {
		t.Errorf("BlobTime = %v, want %v", got, ts)
	}
}

func TestIsBlobNameRejectsStrays(t *testing.T) {
	for _, name := range []string{
		"",
		"notes.txt",
		"keeper_backup_.json",
		"keeper_backup_20260314T092653Z.txt",
		"other_backup_20260314T092653Z.json",
		"keeper_backup_20260314T092653Z.json.gz.tmp",
	} {
		if IsBlobName(name) {
			t.Errorf("IsBlobName(%q) = true, want false", name)
		}
	}
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds("local, s3")
	if err != nil {
		t.Fatalf("ParseKinds: %v", err)
	}
	if len(kinds) != 2 || kinds[0] != KindLocal || kinds[1] != KindS3 {
		t.Errorf("ParseKinds = %v", kinds)
	}

	if _, err := ParseKinds("local,dropbox"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestErrorClassification(t *testing.T) {
	transient := NewTransient("write", errors.New("timeout"))
	terminal := NewTerminal("write", errors.New("access denied"))

	if !IsTransient(transient) {
		t.Error("transient error not detected")
	}
	if IsTransient(terminal) {
		t.Error("terminal error misclassified as transient")
	}
	if IsTransient(errors.New("plain")) {
		t.Error("unclassified error must not be treated as transient")
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := NewTerminal("read", inner)

	if !errors.Is(err, inner) {
		t.Error("sink error does not unwrap to inner error")
	}

	var se *Error
	if !errors.As(err, &se) || se.Op != "read" {
		t.Errorf("errors.As failed or wrong op: %+v", se)
	}
}
