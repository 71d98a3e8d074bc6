// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package schedule

import (
	"fmt"

	"github.com/goccy/go-json"
)

// FrequencyKind discriminates the frequency union.
type FrequencyKind string

const (
	// Hourly runs one hour after the previous run.
	Hourly FrequencyKind = "hourly"

	// DailyAt runs at a fixed hour of the day (0-23).
	DailyAt FrequencyKind = "dailyAt"

	// Weekly runs seven days after the previous run.
	Weekly FrequencyKind = "weekly"

	// Manual never runs on a schedule; only explicit triggers run.
	Manual FrequencyKind = "manual"
)

// Frequency is the backup frequency policy. It is a tagged union: Hour is
// meaningful only when Kind == DailyAt.
//
// The wire format matches the schedule config boundary: plain variants encode
// as bare strings ("hourly", "weekly", "manual"), DailyAt encodes as
// {"dailyAt":{"hour":H}}.
type Frequency struct {
	Kind FrequencyKind
	Hour int
}

// EveryHour returns the hourly frequency.
func EveryHour() Frequency { return Frequency{Kind: Hourly} }

// EveryDayAt returns a daily frequency firing at the given hour (0-23).
func EveryDayAt(hour int) Frequency { return Frequency{Kind: DailyAt, Hour: hour} }

// EveryWeek returns the weekly frequency.
func EveryWeek() Frequency { return Frequency{Kind: Weekly} }

// OnDemand returns the manual frequency.
func OnDemand() Frequency { return Frequency{Kind: Manual} }

// Validate checks the frequency is a known kind with a valid hour.
func (f Frequency) Validate() error {
	switch f.Kind {
	case Hourly, Weekly, Manual:
		return nil
	case DailyAt:
		if f.Hour < 0 || f.Hour > 23 {
			return fmt.Errorf("dailyAt hour must be between 0 and 23, got %d", f.Hour)
		}
		return nil
	default:
		return fmt.Errorf("unknown frequency %q", f.Kind)
	}
}

// String returns a human-readable description.
func (f Frequency) String() string {
	if f.Kind == DailyAt {
		return fmt.Sprintf("dailyAt(%02d:00)", f.Hour)
	}
	return string(f.Kind)
}

type dailyAtPayload struct {
	Hour int `json:"hour"`
}

type dailyAtEnvelope struct {
	DailyAt dailyAtPayload `json:"dailyAt"`
}

// MarshalJSON implements the tagged-union wire format.
func (f Frequency) MarshalJSON() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Kind == DailyAt {
		return json.Marshal(dailyAtEnvelope{DailyAt: dailyAtPayload{Hour: f.Hour}})
	}
	return json.Marshal(string(f.Kind))
}

// UnmarshalJSON implements the tagged-union wire format.
func (f *Frequency) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		switch FrequencyKind(plain) {
		case Hourly, Weekly, Manual:
			*f = Frequency{Kind: FrequencyKind(plain)}
			return nil
		default:
			return fmt.Errorf("unknown frequency %q", plain)
		}
	}

	var envelope map[string]dailyAtPayload
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("invalid frequency: %w", err)
	}
	payload, ok := envelope["dailyAt"]
	if !ok {
		return fmt.Errorf("invalid frequency object: expected dailyAt key")
	}
	*f = Frequency{Kind: DailyAt, Hour: payload.Hour}
	return f.Validate()
}
