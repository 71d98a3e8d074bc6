// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

// Package retry bounds repeated attempts at destination operations.
//
// Only transient failures are retried. Terminal failures (authentication,
// missing bucket, invalid payload) fail the attempt immediately: repeating
// them cannot succeed and only delays the run.
package retry

import (
	"context"
	"time"

	"github.com/tomtom215/keeper/internal/sink"
)

const (
	defaultBaseDelay = time.Second
	defaultMaxDelay  = time.Minute
)

// Sleeper waits for d or until ctx is done. Injectable so tests never sleep.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Controller runs operations with capped exponential backoff.
type Controller struct {
	base    time.Duration
	max     time.Duration
	sleep   Sleeper
	onRetry func(attempt int, err error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithSleeper replaces the real clock. Test hook.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) { c.sleep = s }
}

// WithBackoff overrides the base and cap delays.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Controller) {
		c.base = base
		c.max = max
	}
}

// WithOnRetry registers a callback invoked before each re-attempt, after
// the backoff wait is decided. Used for logging and retry metrics.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(c *Controller) { c.onRetry = fn }
}

// New returns a Controller waiting base*2^(attempt-1) between attempts,
// capped at max. Defaults: 1s base, 1m cap.
func New(opts ...Option) *Controller {
	c := &Controller{
		base:  defaultBaseDelay,
		max:   defaultMaxDelay,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Delay returns the wait before attempt n (1-based; attempt 1 never waits).
func (c *Controller) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := c.base
	for i := 1; i < attempt-1; i++ {
		d *= 2
		if d >= c.max {
			return c.max
		}
	}
	if d > c.max {
		return c.max
	}
	return d
}

// Do runs op up to maxAttempts times. The first attempt is immediate; each
// subsequent attempt waits Delay(n) first. A terminal error returns at once
// without consuming further attempts. When attempts are exhausted the last
// error observed is returned.
func (c *Controller) Do(ctx context.Context, maxAttempts int, op func(context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if c.onRetry != nil {
				c.onRetry(attempt, lastErr)
			}
			if err := c.sleep(ctx, c.Delay(attempt)); err != nil {
				return err
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !sink.IsTransient(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
