// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/keeper/internal/logging"
	"github.com/tomtom215/keeper/internal/schedule"
)

// schedulerTick is how often the loop re-evaluates dueness. Scheduling
// granularity is one hour at its finest, so a minute of slack is invisible.
const schedulerTick = time.Minute

// RunScheduler loops until ctx is done, starting a run whenever the
// schedule is due. Runs execute off the ticker goroutine so retry backoff
// inside a run never delays the next dueness check. A tick that finds the
// run lock held simply waits for the next tick; dueness is re-derived from
// the schedule every time.
func (c *Coordinator) RunScheduler(ctx context.Context) error {
	logging.Info().Msg("Backup scheduler started")

	interval := c.cfg.TickInterval
	if interval <= 0 {
		interval = schedulerTick
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Backup scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			go c.tick(ctx)
		}
	}
}

// tick runs at most one scheduled backup. Split out for tests.
func (c *Coordinator) tick(ctx context.Context) {
	s := c.Schedule()
	if !schedule.IsDue(s, c.clock()) {
		return
	}

	entry, err := c.Run(ctx, TriggerScheduled)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			logging.Debug().Msg("Scheduled backup deferred: run in progress")
			return
		}
		logging.Error().Err(err).Msg("Scheduled backup failed to start")
		return
	}
	logging.Debug().
		Str("outcome", string(entry.Outcome)).
		Msg("Scheduled backup finished")
}
