// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/keeper/internal/logging"
	"github.com/tomtom215/keeper/internal/metrics"
	"github.com/tomtom215/keeper/internal/retention"
	"github.com/tomtom215/keeper/internal/retry"
	"github.com/tomtom215/keeper/internal/schedule"
	"github.com/tomtom215/keeper/internal/sink"
	"github.com/tomtom215/keeper/internal/snapshot"
	"github.com/tomtom215/keeper/internal/store"
)

// DataStore is the live record store the engine snapshots and restores into.
// Satisfied by *store.Store.
type DataStore interface {
	snapshot.Source
	Put(ctx context.Context, kind store.EntityKind, record json.RawMessage) (string, error)
}

// Config carries the coordinator's static settings.
type Config struct {
	// DataDir holds the schedule and history JSON files.
	DataDir string

	// AppVersion is stamped into snapshot metadata.
	AppVersion string

	// EncryptionPassword encrypts backup payloads when non-empty.
	EncryptionPassword string

	// Clock overrides time.Now. Test hook.
	Clock func() time.Time

	// Sleeper overrides the retry backoff wait. Test hook.
	Sleeper retry.Sleeper

	// TickInterval overrides the scheduler tick. Test hook.
	TickInterval time.Duration
}

// Coordinator owns the schedule, the run history and the run lock.
type Coordinator struct {
	cfg      Config
	store    DataStore
	sinks    map[sink.Kind]sink.Sink
	producer *snapshot.Producer
	clock    func() time.Time

	// runMu is the run lock: backups and restores both take it, and a
	// trigger that finds it held fails synchronously.
	runMu sync.Mutex

	mu       sync.RWMutex
	schedule schedule.Schedule
	history  []HistoryEntry

	progressMu sync.Mutex
	progress   Progress
}

// New loads persisted state and returns a ready coordinator. A missing or
// unreadable schedule file falls back to the default schedule; history that
// cannot be parsed starts empty. Neither is fatal.
func New(cfg Config, ds DataStore, sinks map[sink.Kind]sink.Sink) *Coordinator {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	c := &Coordinator{
		cfg:      cfg,
		store:    ds,
		sinks:    sinks,
		producer: snapshot.NewProducer(ds, cfg.AppVersion).WithClock(clock),
		clock:    clock,
	}

	s, err := c.loadSchedule()
	if err != nil {
		logging.Warn().Err(err).Msg("Falling back to default backup schedule")
	}
	c.schedule = s

	history, err := c.loadHistory()
	if err != nil {
		logging.Warn().Err(err).Msg("Starting with empty backup history")
	}
	c.history = history

	return c
}

// Schedule returns a copy of the current schedule.
func (c *Coordinator) Schedule() schedule.Schedule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.schedule
}

// SetSchedule validates and persists a new schedule. LastRun is owned by the
// coordinator and survives updates. Enabling a schedule or changing its
// frequency re-anchors NextRun at now, so a stale LastRun never causes an
// immediate catch-up run. Updates are rejected with ErrRunInProgress while a
// backup or restore holds the run lock, so a live run never races a schedule
// mutation.
func (c *Coordinator) SetSchedule(next schedule.Schedule) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	for _, kind := range next.Destinations {
		if _, ok := c.sinks[kind]; !ok {
			return fmt.Errorf("destination %q: %w", kind, ErrDestinationNotConfigured)
		}
	}

	if !c.runMu.TryLock() {
		return ErrRunInProgress
	}
	defer c.runMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.schedule
	next.LastRun = prev.LastRun

	now := c.clock()
	if next.Enabled && (!prev.Enabled || next.Frequency != prev.Frequency) {
		next.Reanchor(now)
	} else {
		next.Reconcile(now)
	}

	c.schedule = next
	if err := c.saveScheduleLocked(); err != nil {
		return err
	}

	logging.Info().
		Bool("enabled", next.Enabled).
		Str("frequency", next.Frequency.String()).
		Int("destinations", len(next.Destinations)).
		Msg("Backup schedule updated")
	return nil
}

// History returns the journal, newest first.
func (c *Coordinator) History() []HistoryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}

// GetProgress returns a snapshot of the current run's progress.
func (c *Coordinator) GetProgress() Progress {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()

	p := c.progress
	p.CompletedSteps = append([]string(nil), c.progress.CompletedSteps...)
	p.FailedSteps = append([]string(nil), c.progress.FailedSteps...)
	return p
}

func (c *Coordinator) startProgress(step string) {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	c.progress = Progress{
		IsRunning:      true,
		CurrentStep:    step,
		CompletedSteps: []string{},
		FailedSteps:    []string{},
	}
}

func (c *Coordinator) setStep(step string) {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	c.progress.CurrentStep = step
}

func (c *Coordinator) stepDone(step string, ok bool) {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	if ok {
		c.progress.CompletedSteps = append(c.progress.CompletedSteps, step)
	} else {
		c.progress.FailedSteps = append(c.progress.FailedSteps, step)
	}
}

func (c *Coordinator) endProgress() {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	c.progress.IsRunning = false
	c.progress.CurrentStep = ""
}

// Run executes one backup run. If another run holds the lock the trigger is
// rejected with ErrRunInProgress; nothing queues. The returned entry always
// reflects the run's terminal outcome, including failures.
func (c *Coordinator) Run(ctx context.Context, trigger Trigger) (HistoryEntry, error) {
	if !c.runMu.TryLock() {
		return HistoryEntry{}, ErrRunInProgress
	}
	defer c.runMu.Unlock()

	return c.run(ctx, trigger), nil
}

func (c *Coordinator) run(ctx context.Context, trigger Trigger) HistoryEntry {
	start := c.clock().UTC()
	sched := c.Schedule()
	encrypted := c.cfg.EncryptionPassword != ""

	logging.Info().
		Str("trigger", string(trigger)).
		Int("destinations", len(sched.Destinations)).
		Msg("Backup run started")

	entry := HistoryEntry{
		ID:         uuid.NewString(),
		Timestamp:  start,
		Trigger:    trigger,
		Compressed: sched.Compress,
		Encrypted:  encrypted,
	}

	const exportStep = "exporting data"
	c.startProgress(exportStep)

	data, err := c.producePayload(ctx, sched.Compress)
	if err != nil {
		c.stepDone(exportStep, false)
		entry.Outcome = OutcomeFailed
		entry.Error = err.Error()
		c.finishRun(&entry, trigger, start)
		return entry
	}
	c.stepDone(exportStep, true)
	metrics.BlobSize.Observe(float64(len(data)))

	name := sink.BlobName(start, sched.Compress, encrypted)
	entry.SizeBytes = int64(len(data))
	entry.Destinations = c.writeAll(ctx, sched, name, data)

	succeeded, failed := 0, 0
	for _, r := range entry.Destinations {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	switch {
	case failed == 0:
		entry.Outcome = OutcomeSucceeded
	case succeeded == 0:
		entry.Outcome = OutcomeFailed
	default:
		entry.Outcome = OutcomePartiallyFailed
	}

	// Retention only after a fully successful run: pruning against a run
	// that failed to land everywhere could delete the last good copy.
	if entry.Outcome == OutcomeSucceeded {
		c.cleanup(ctx, sched)
	}

	c.finishRun(&entry, trigger, start)
	return entry
}

// producePayload exports a document and encodes it with the configured
// layers. Produce and encode failures are terminal: retrying cannot help.
func (c *Coordinator) producePayload(ctx context.Context, compress bool) ([]byte, error) {
	doc, err := c.producer.Produce(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Encode(doc, compress, c.cfg.EncryptionPassword)
}

// writeAll writes the payload to every destination concurrently. Results
// come back in destination order.
func (c *Coordinator) writeAll(ctx context.Context, sched schedule.Schedule, name string, data []byte) []DestinationResult {
	results := make([]DestinationResult, len(sched.Destinations))
	var wg sync.WaitGroup
	for i, kind := range sched.Destinations {
		wg.Add(1)
		go func(i int, kind sink.Kind) {
			defer wg.Done()
			results[i] = c.writeDestination(ctx, kind, name, data, sched.MaxRetries)
		}(i, kind)
	}
	wg.Wait()
	return results
}

func (c *Coordinator) writeDestination(ctx context.Context, kind sink.Kind, name string, data []byte, maxRetries int) DestinationResult {
	step := "writing to " + string(kind)
	c.setStep(step)

	s, ok := c.sinks[kind]
	if !ok {
		c.stepDone(step, false)
		metrics.RecordDestinationWrite(string(kind), "terminal_error")
		return DestinationResult{Kind: kind, Error: "destination not configured"}
	}

	opts := []retry.Option{
		retry.WithOnRetry(func(attempt int, err error) {
			metrics.RecordRetry(string(kind))
			logging.Warn().
				Err(err).
				Str("destination", string(kind)).
				Int("attempt", attempt).
				Msg("Retrying backup write")
		}),
	}
	if c.cfg.Sleeper != nil {
		opts = append(opts, retry.WithSleeper(c.cfg.Sleeper))
	}

	err := retry.New(opts...).Do(ctx, maxRetries, func(ctx context.Context) error {
		return s.Write(ctx, name, data)
	})
	if err != nil {
		c.stepDone(step, false)
		result := "terminal_error"
		if sink.IsTransient(err) {
			result = "transient_error"
		}
		metrics.RecordDestinationWrite(string(kind), result)
		logging.Error().
			Err(err).
			Str("destination", string(kind)).
			Str("blob", name).
			Msg("Backup write failed")
		return DestinationResult{Kind: kind, Error: err.Error()}
	}

	c.stepDone(step, true)
	metrics.RecordDestinationWrite(string(kind), "ok")
	return DestinationResult{Kind: kind, Success: true, Blob: name}
}

func (c *Coordinator) cleanup(ctx context.Context, sched schedule.Schedule) {
	const step = "cleaning up old backups"
	c.setStep(step)

	ok := true
	for _, kind := range sched.Destinations {
		s, found := c.sinks[kind]
		if !found {
			continue
		}
		deleted, err := retention.Cleanup(ctx, s, sched.Cleanup, c.clock())
		if err != nil {
			ok = false
			logging.Warn().
				Err(err).
				Str("destination", string(kind)).
				Msg("Backup cleanup incomplete")
		}
		if len(deleted) > 0 {
			metrics.BlobsDeleted.WithLabelValues(string(kind)).Add(float64(len(deleted)))
			logging.Info().
				Str("destination", string(kind)).
				Int("deleted", len(deleted)).
				Msg("Pruned old backups")
		}
	}
	c.stepDone(step, ok)
}

// finishRun journals the entry, advances the schedule and closes progress.
// The schedule advances on every outcome: a failed periodic run is not
// retried until its next slot.
func (c *Coordinator) finishRun(entry *HistoryEntry, trigger Trigger, start time.Time) {
	end := c.clock().UTC()

	c.mu.Lock()
	c.history = append([]HistoryEntry{*entry}, c.history...)
	if len(c.history) > maxHistoryEntries {
		c.history = c.history[:maxHistoryEntries]
	}
	if err := c.saveHistoryLocked(); err != nil {
		logging.Error().Err(err).Msg("Failed to persist backup history")
	}

	c.schedule.MarkRun(end)
	if err := c.saveScheduleLocked(); err != nil {
		logging.Error().Err(err).Msg("Failed to persist backup schedule")
	}
	c.mu.Unlock()

	c.endProgress()
	metrics.RecordRun(string(trigger), string(entry.Outcome), end.Sub(start))

	event := logging.Info()
	if entry.Outcome != OutcomeSucceeded {
		event = logging.Warn()
	}
	event.
		Str("trigger", string(trigger)).
		Str("outcome", string(entry.Outcome)).
		Int64("size_bytes", entry.SizeBytes).
		Dur("duration", end.Sub(start)).
		Msg("Backup run finished")
}

// Shutdown performs the backup-on-close run when the schedule asks for one.
// Best effort: failures are logged and shutdown proceeds.
func (c *Coordinator) Shutdown(ctx context.Context) {
	s := c.Schedule()
	if !s.Enabled || !s.BackupOnClose {
		return
	}

	logging.Info().Msg("Running final backup before shutdown")
	if _, err := c.Run(ctx, TriggerShutdown); err != nil {
		logging.Warn().Err(err).Msg("Shutdown backup skipped")
	}
}
