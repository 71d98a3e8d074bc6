// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

// Package metrics exposes Prometheus instrumentation for the backup engine.
//
// Metrics are served at /metrics in Prometheus text format:
//
//	backup_runs_total{trigger,outcome}        runs by trigger and outcome
//	backup_run_duration_seconds               end-to-end run duration
//	backup_destination_writes_total{kind,result} per-destination write outcomes
//	backup_retry_attempts_total{kind}         re-attempts after transient failures
//	backup_blob_size_bytes                    encoded payload sizes
//	backup_blobs_deleted_total{kind}          blobs removed by retention
//	restore_operations_total{outcome}         restore attempts by outcome
//	restore_records_merged_total{entity}      records upserted during restores
//	api_requests_total / api_request_duration_seconds HTTP surface
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run Metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_runs_total",
			Help: "Total backup runs by trigger and outcome",
		},
		[]string{"trigger", "outcome"}, // trigger: scheduled, manual, shutdown; outcome: succeeded, failed, partially_failed
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backup_run_duration_seconds",
			Help:    "End-to-end backup run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	DestinationWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_destination_writes_total",
			Help: "Per-destination write outcomes",
		},
		[]string{"kind", "result"}, // result: ok, transient_error, terminal_error
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_retry_attempts_total",
			Help: "Write re-attempts after transient failures",
		},
		[]string{"kind"},
	)

	BlobSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backup_blob_size_bytes",
			Help:    "Encoded backup payload sizes in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB .. 256MiB
		},
	)

	// Retention Metrics
	BlobsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_blobs_deleted_total",
			Help: "Blobs removed by retention cleanup",
		},
		[]string{"kind"},
	)

	// Restore Metrics
	RestoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restore_operations_total",
			Help: "Restore attempts by outcome",
		},
		[]string{"outcome"}, // succeeded, failed, rejected
	)

	RestoreRecordsMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restore_records_merged_total",
			Help: "Records upserted into the live store during restores",
		},
		[]string{"entity"}, // protocols, doseLogs, literature
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordRun records one completed run.
func RecordRun(trigger, outcome string, duration time.Duration) {
	RunsTotal.WithLabelValues(trigger, outcome).Inc()
	RunDuration.Observe(duration.Seconds())
}

// RecordDestinationWrite records the final outcome of one destination write.
func RecordDestinationWrite(kind string, result string) {
	DestinationWrites.WithLabelValues(kind, result).Inc()
}

// RecordRetry counts one re-attempt against a destination.
func RecordRetry(kind string) {
	RetryAttempts.WithLabelValues(kind).Inc()
}

// RecordRestore records one restore attempt and its merged record counts.
func RecordRestore(outcome string, protocols, doseLogs, literature int) {
	RestoreOperations.WithLabelValues(outcome).Inc()
	if protocols > 0 {
		RestoreRecordsMerged.WithLabelValues("protocols").Add(float64(protocols))
	}
	if doseLogs > 0 {
		RestoreRecordsMerged.WithLabelValues("doseLogs").Add(float64(doseLogs))
	}
	if literature > 0 {
		RestoreRecordsMerged.WithLabelValues("literature").Add(float64(literature))
	}
}

// RecordAPIRequest records one handled HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
