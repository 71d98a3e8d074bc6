// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package retention

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/tomtom215/keeper/internal/schedule"
	"github.com/tomtom215/keeper/internal/sink"
)

// fakeSink tracks blobs in memory and records deletions.
type fakeSink struct {
	blobs     []sink.BlobInfo
	deleted   []string
	deleteErr map[string]error
	listErr   error
}

func (f *fakeSink) Kind() sink.Kind { return sink.KindLocal }

func (f *fakeSink) Write(context.Context, string, []byte) error {
	return errors.New("not used")
}

func (f *fakeSink) List(context.Context) ([]sink.BlobInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]sink.BlobInfo, len(f.blobs))
	copy(out, f.blobs)
	return out, nil
}

func (f *fakeSink) Read(context.Context, string) ([]byte, error) {
	return nil, errors.New("not used")
}

func (f *fakeSink) Delete(_ context.Context, name string) error {
	if err := f.deleteErr[name]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, name)
	return nil
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// blobAgedDays returns a blob created the given number of days before now.
func blobAgedDays(days int) sink.BlobInfo {
	ts := now.Add(-time.Duration(days) * 24 * time.Hour)
	return sink.BlobInfo{
		Name:      sink.BlobName(ts, true, false),
		Size:      100,
		CreatedAt: ts,
	}
}

func intPtr(n int) *int { return &n }

func TestCleanupNoBoundsIsNoOp(t *testing.T) {
	fs := &fakeSink{blobs: []sink.BlobInfo{blobAgedDays(400), blobAgedDays(1)}}

	deleted, err := Cleanup(context.Background(), fs, schedule.CleanupPolicy{}, now)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if len(deleted) != 0 || len(fs.deleted) != 0 {
		t.Errorf("deleted = %v, want none", fs.deleted)
	}
}

func TestCleanupKeepLastNOnly(t *testing.T) {
	// Five blobs, ages 1..5 days. Keep 3 newest: ages 4 and 5 go.
	fs := &fakeSink{}
	for days := 1; days <= 5; days++ {
		fs.blobs = append(fs.blobs, blobAgedDays(days))
	}

	policy := schedule.CleanupPolicy{KeepLastN: intPtr(3)}
	deleted, err := Cleanup(context.Background(), fs, policy, now)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	want := []string{blobAgedDays(4).Name, blobAgedDays(5).Name}
	sort.Strings(deleted)
	sort.Strings(want)
	if len(deleted) != 2 || deleted[0] != want[0] || deleted[1] != want[1] {
		t.Errorf("deleted = %v, want %v", deleted, want)
	}
}

func TestCleanupOlderThanDaysOnly(t *testing.T) {
	fs := &fakeSink{blobs: []sink.BlobInfo{
		blobAgedDays(5),
		blobAgedDays(29),
		blobAgedDays(31),
		blobAgedDays(90),
	}}

	policy := schedule.CleanupPolicy{OlderThanDays: intPtr(30)}
	deleted, err := Cleanup(context.Background(), fs, policy, now)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("deleted = %v, want blobs aged 31 and 90 days", deleted)
	}
}

func TestCleanupConjunction(t *testing.T) {
	// keepLastN=2 AND olderThan=30: only blobs beyond rank 2 that are also
	// older than 30 days are removed.
	fs := &fakeSink{blobs: []sink.BlobInfo{
		blobAgedDays(1),  // rank 0: kept by N
		blobAgedDays(10), // rank 1: kept by N
		blobAgedDays(20), // rank 2: beyond N but younger than 30d, kept
		blobAgedDays(40), // rank 3: beyond N and older, deleted
		blobAgedDays(60), // rank 4: beyond N and older, deleted
	}}

	policy := schedule.CleanupPolicy{KeepLastN: intPtr(2), OlderThanDays: intPtr(30)}
	deleted, err := Cleanup(context.Background(), fs, policy, now)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("deleted = %v, want exactly the 40d and 60d blobs", deleted)
	}
	for _, name := range deleted {
		if name == blobAgedDays(20).Name {
			t.Error("blob younger than cutoff deleted despite rank violation")
		}
	}
}

func TestCleanupOldBlobsWithinKeepLastNSurvive(t *testing.T) {
	// All blobs ancient, but keepLastN=3 protects the newest three.
	fs := &fakeSink{blobs: []sink.BlobInfo{
		blobAgedDays(100),
		blobAgedDays(200),
		blobAgedDays(300),
	}}

	policy := schedule.CleanupPolicy{KeepLastN: intPtr(3), OlderThanDays: intPtr(30)}
	deleted, err := Cleanup(context.Background(), fs, policy, now)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("deleted = %v, want none (all within keepLastN)", deleted)
	}
}

func TestCleanupListFailure(t *testing.T) {
	fs := &fakeSink{listErr: sink.NewTransient("list", errors.New("timeout"))}

	policy := schedule.CleanupPolicy{KeepLastN: intPtr(1)}
	if _, err := Cleanup(context.Background(), fs, policy, now); err == nil {
		t.Fatal("Cleanup() expected error when listing fails")
	}
}

func TestCleanupDeleteFailureContinuesSweep(t *testing.T) {
	bad := blobAgedDays(40)
	fs := &fakeSink{
		blobs: []sink.BlobInfo{
			blobAgedDays(1),
			bad,
			blobAgedDays(60),
		},
		deleteErr: map[string]error{
			bad.Name: sink.NewTransient("delete", errors.New("throttled")),
		},
	}

	policy := schedule.CleanupPolicy{KeepLastN: intPtr(1)}
	deleted, err := Cleanup(context.Background(), fs, policy, now)
	if err == nil {
		t.Fatal("Cleanup() expected joined error from failed delete")
	}
	if len(deleted) != 1 || deleted[0] != blobAgedDays(60).Name {
		t.Errorf("deleted = %v, want the 60d blob despite the failure", deleted)
	}
}
