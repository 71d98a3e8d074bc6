// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package schedule

import (
	"testing"
	"time"

	"github.com/tomtom215/keeper/internal/sink"
)

func timePtr(t time.Time) *time.Time { return &t }

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if s.Enabled {
		t.Error("default schedule must start disabled")
	}
	if s.Frequency.Kind != Manual {
		t.Errorf("default frequency = %v, want manual", s.Frequency)
	}
	if !s.Compress {
		t.Error("default schedule must compress")
	}
	if s.MaxRetries != 3 {
		t.Errorf("default MaxRetries = %d, want 3", s.MaxRetries)
	}
	if s.Cleanup.KeepLastN == nil || *s.Cleanup.KeepLastN != 10 {
		t.Errorf("default KeepLastN = %v, want 10", s.Cleanup.KeepLastN)
	}
	if s.Cleanup.OlderThanDays == nil || *s.Cleanup.OlderThanDays != 30 {
		t.Errorf("default OlderThanDays = %v, want 30", s.Cleanup.OlderThanDays)
	}
}

func TestScheduleValidate(t *testing.T) {
	one := 1
	zero := 0

	tests := []struct {
		name    string
		mutate  func(*Schedule)
		wantErr bool
	}{
		{"default", func(s *Schedule) {}, false},
		{"both destinations", func(s *Schedule) {
			s.Destinations = []sink.Kind{sink.KindLocal, sink.KindS3}
		}, false},
		{"no destinations", func(s *Schedule) {
			s.Destinations = nil
		}, true},
		{"unknown destination", func(s *Schedule) {
			s.Destinations = []sink.Kind{"ftp"}
		}, true},
		{"duplicate destination", func(s *Schedule) {
			s.Destinations = []sink.Kind{sink.KindLocal, sink.KindLocal}
		}, true},
		{"zero retries", func(s *Schedule) {
			s.MaxRetries = 0
		}, true},
		{"invalid frequency hour", func(s *Schedule) {
			s.Frequency = EveryDayAt(24)
		}, true},
		{"keepLastN one", func(s *Schedule) {
			s.Cleanup.KeepLastN = &one
		}, false},
		{"keepLastN zero", func(s *Schedule) {
			s.Cleanup.KeepLastN = &zero
		}, true},
		{"olderThanDays zero", func(s *Schedule) {
			s.Cleanup.OlderThanDays = &zero
		}, true},
		{"no cleanup bounds", func(s *Schedule) {
			s.Cleanup = CleanupPolicy{}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNextRun(t *testing.T) {
	now := mustParse(t, "2026-03-10T12:30:00Z")

	tests := []struct {
		name    string
		enabled bool
		freq    Frequency
		lastRun *time.Time
		want    *time.Time
	}{
		{
			name:    "disabled never fires",
			enabled: false,
			freq:    EveryHour(),
			lastRun: timePtr(mustParse(t, "2026-03-10T11:00:00Z")),
			want:    nil,
		},
		{
			name:    "manual never fires",
			enabled: true,
			freq:    OnDemand(),
			want:    nil,
		},
		{
			name:    "hourly never run is due now",
			enabled: true,
			freq:    EveryHour(),
			want:    timePtr(now),
		},
		{
			name:    "hourly one hour after last run",
			enabled: true,
			freq:    EveryHour(),
			lastRun: timePtr(mustParse(t, "2026-03-10T11:45:00Z")),
			want:    timePtr(mustParse(t, "2026-03-10T12:45:00Z")),
		},
		{
			name:    "weekly seven days after last run",
			enabled: true,
			freq:    EveryWeek(),
			lastRun: timePtr(mustParse(t, "2026-03-08T06:00:00Z")),
			want:    timePtr(mustParse(t, "2026-03-15T06:00:00Z")),
		},
		{
			name:    "daily hour not yet passed fires today",
			enabled: true,
			freq:    EveryDayAt(15),
			lastRun: timePtr(mustParse(t, "2026-03-09T15:00:10Z")),
			want:    timePtr(mustParse(t, "2026-03-10T15:00:00Z")),
		},
		{
			name:    "daily hour passed without a run skips to tomorrow",
			enabled: true,
			freq:    EveryDayAt(9),
			lastRun: timePtr(mustParse(t, "2026-03-09T09:00:10Z")),
			want:    timePtr(mustParse(t, "2026-03-11T09:00:00Z")),
		},
		{
			name:    "daily never run and hour passed skips to tomorrow",
			enabled: true,
			freq:    EveryDayAt(9),
			want:    timePtr(mustParse(t, "2026-03-11T09:00:00Z")),
		},
		{
			name:    "daily already ran today fires tomorrow",
			enabled: true,
			freq:    EveryDayAt(9),
			lastRun: timePtr(mustParse(t, "2026-03-10T09:00:05Z")),
			want:    timePtr(mustParse(t, "2026-03-11T09:00:00Z")),
		},
		{
			name:    "daily never run and hour not passed fires today",
			enabled: true,
			freq:    EveryDayAt(20),
			want:    timePtr(mustParse(t, "2026-03-10T20:00:00Z")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			s.Enabled = tt.enabled
			s.Frequency = tt.freq
			s.LastRun = tt.lastRun

			got := NextRun(s, now)
			switch {
			case got == nil && tt.want != nil:
				t.Errorf("NextRun() = nil, want %v", tt.want)
			case got != nil && tt.want == nil:
				t.Errorf("NextRun() = %v, want nil", got)
			case got != nil && !got.Equal(*tt.want):
				t.Errorf("NextRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextRunDeterministic(t *testing.T) {
	now := mustParse(t, "2026-03-10T12:30:00Z")
	s := Default()
	s.Enabled = true
	s.Frequency = EveryDayAt(7)
	s.LastRun = timePtr(mustParse(t, "2026-03-09T07:00:02Z"))

	first := NextRun(s, now)
	for i := 0; i < 100; i++ {
		again := NextRun(s, now)
		if first == nil || again == nil || !first.Equal(*again) {
			t.Fatalf("NextRun not deterministic: %v vs %v", first, again)
		}
	}
}

func TestIsDue(t *testing.T) {
	now := mustParse(t, "2026-03-10T12:30:00Z")

	tests := []struct {
		name    string
		enabled bool
		freq    Frequency
		lastRun *time.Time
		nextRun *time.Time
		want    bool
	}{
		{"disabled", false, EveryHour(), nil, timePtr(now), false},
		{"manual", true, OnDemand(), nil, nil, false},
		{"hourly never run", true, EveryHour(), nil, nil, true},
		{"hourly elapsed", true, EveryHour(), timePtr(now.Add(-61 * time.Minute)), nil, true},
		{"hourly not elapsed", true, EveryHour(), timePtr(now.Add(-30 * time.Minute)), nil, false},
		{"weekly elapsed", true, EveryWeek(), timePtr(now.Add(-8 * 24 * time.Hour)), nil, true},
		{"weekly not elapsed", true, EveryWeek(), timePtr(now.Add(-6 * 24 * time.Hour)), nil, false},
		{"stored next run in future wins", true, EveryHour(),
			timePtr(now.Add(-3 * time.Hour)), timePtr(now.Add(30 * time.Minute)), false},
		{"stored next run reached", true, EveryHour(),
			timePtr(now.Add(-3 * time.Hour)), timePtr(now.Add(-time.Minute)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			s.Enabled = tt.enabled
			s.Frequency = tt.freq
			s.LastRun = tt.lastRun
			s.NextRun = tt.nextRun

			if got := IsDue(s, now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReconcileClearsWhenDisabled(t *testing.T) {
	now := mustParse(t, "2026-03-10T12:30:00Z")
	s := Default()
	s.Enabled = true
	s.Frequency = EveryHour()
	s.NextRun = timePtr(now.Add(time.Hour))

	s.Enabled = false
	s.Reconcile(now)
	if s.NextRun != nil {
		t.Errorf("NextRun = %v after disabling, want nil", s.NextRun)
	}
}

func TestReanchorIgnoresStaleLastRun(t *testing.T) {
	now := mustParse(t, "2026-03-10T12:30:00Z")
	stale := mustParse(t, "2026-01-01T00:00:00Z")

	s := Default()
	s.Enabled = true
	s.Frequency = EveryHour()
	s.LastRun = timePtr(stale)

	s.Reanchor(now)
	if s.NextRun == nil {
		t.Fatal("Reanchor() left NextRun nil")
	}
	want := now.Add(time.Hour)
	if !s.NextRun.Equal(want) {
		t.Errorf("NextRun = %v, want %v (anchored at now, not stale lastRun)", s.NextRun, want)
	}
	if IsDue(s, now) {
		t.Error("re-enabled schedule must not be due immediately on a stale slot")
	}
	if !IsDue(s, now.Add(61*time.Minute)) {
		t.Error("re-enabled schedule must become due after a full interval")
	}
}

func TestReanchorDailyAfterHourWaitsForTomorrow(t *testing.T) {
	now := mustParse(t, "2026-03-10T12:00:00Z")

	s := Default()
	s.Enabled = true
	s.Frequency = EveryDayAt(9)
	s.LastRun = timePtr(mustParse(t, "2026-01-05T09:00:03Z"))

	s.Reanchor(now)
	want := mustParse(t, "2026-03-11T09:00:00Z")
	if s.NextRun == nil || !s.NextRun.Equal(want) {
		t.Errorf("NextRun = %v, want %v", s.NextRun, want)
	}
	if IsDue(s, now) {
		t.Error("re-enabled daily schedule must not fire on today's passed hour")
	}
}

func TestReanchorNeverRunIsDueImmediately(t *testing.T) {
	now := mustParse(t, "2026-03-10T12:30:00Z")

	for _, freq := range []Frequency{EveryHour(), EveryWeek()} {
		s := Default()
		s.Enabled = true
		s.Frequency = freq

		s.Reanchor(now)
		if s.NextRun == nil || !s.NextRun.Equal(now) {
			t.Errorf("%v: NextRun = %v, want %v", freq, s.NextRun, now)
		}
		if !IsDue(s, now) {
			t.Errorf("%v: never-run schedule must be due immediately", freq)
		}
	}
}

func TestReanchorManualClears(t *testing.T) {
	now := mustParse(t, "2026-03-10T12:30:00Z")
	s := Default()
	s.Enabled = true
	s.Frequency = OnDemand()
	s.NextRun = timePtr(now)

	s.Reanchor(now)
	if s.NextRun != nil {
		t.Errorf("NextRun = %v for manual schedule, want nil", s.NextRun)
	}
}

func TestMarkRunAdvancesSchedule(t *testing.T) {
	now := mustParse(t, "2026-03-10T12:30:00Z")
	s := Default()
	s.Enabled = true
	s.Frequency = EveryHour()

	s.MarkRun(now)
	if s.LastRun == nil || !s.LastRun.Equal(now) {
		t.Fatalf("LastRun = %v, want %v", s.LastRun, now)
	}
	if s.NextRun == nil || !s.NextRun.Equal(now.Add(time.Hour)) {
		t.Errorf("NextRun = %v, want %v", s.NextRun, now.Add(time.Hour))
	}
	if IsDue(s, now) {
		t.Error("schedule must not be due right after a run")
	}
	if !IsDue(s, now.Add(time.Hour)) {
		t.Error("schedule must be due one interval after the run")
	}
}
