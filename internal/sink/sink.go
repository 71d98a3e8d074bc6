// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

// Package sink defines the destination contract for backup blobs and its
// implementations: a local filesystem directory and an S3-compatible object
// store.
//
// A sink stores immutable named blobs. Blob names embed a UTC timestamp that
// sorts lexicographically in creation order, so "list and sort by name" and
// "sort by creation time" always agree without extra metadata reads.
//
// Sink failures carry a classification that drives the retry controller:
// transient failures (timeouts, rate limits) are retried with backoff,
// terminal failures (auth revoked, disk full, not found) are not.
package sink

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Kind identifies a destination kind.
type Kind string

const (
	// KindLocal stores blobs in a directory on the local filesystem.
	KindLocal Kind = "local"

	// KindS3 stores blobs in an S3-compatible object store.
	KindS3 Kind = "s3"
)

// Valid reports whether k is a recognized destination kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLocal, KindS3:
		return true
	}
	return false
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	// Name is the blob's unique name within the sink.
	Name string `json:"name"`

	// Size is the blob size in bytes.
	Size int64 `json:"size"`

	// CreatedAt is the blob creation time, parsed from the name when
	// possible and falling back to storage metadata otherwise.
	CreatedAt time.Time `json:"created_at"`
}

// Sink is the destination contract for backup blobs.
//
// Write stores a named blob durably; blobs are immutable once written.
// List returns descriptors for every blob the sink holds, in no particular
// order. Read fetches a blob's contents. Delete removes a blob; deleting a
// blob that does not exist is a terminal not-found error.
type Sink interface {
	Kind() Kind
	Write(ctx context.Context, name string, data []byte) error
	List(ctx context.Context) ([]BlobInfo, error)
	Read(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
}

// ErrorClass classifies sink failures for the retry controller.
type ErrorClass int

const (
	// Transient failures (network timeout, rate limit, temporary lock)
	// may succeed on retry.
	Transient ErrorClass = iota

	// Terminal failures (auth revoked, disk full, not found) will not
	// succeed on retry and fail immediately.
	Terminal
)

// String returns the class name for logging.
func (c ErrorClass) String() string {
	if c == Transient {
		return "transient"
	}
	return "terminal"
}

// Error is a classified sink failure.
type Error struct {
	Class ErrorClass
	Op    string // "write", "list", "read", "delete"
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sink %s: %s failure: %v", e.Op, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewTransient wraps err as a retryable sink failure.
func NewTransient(op string, err error) *Error {
	return &Error{Class: Transient, Op: op, Err: err}
}

// NewTerminal wraps err as a non-retryable sink failure.
func NewTerminal(op string, err error) *Error {
	return &Error{Class: Terminal, Op: op, Err: err}
}

// IsTransient reports whether err is a sink failure classified as transient.
// Unclassified errors are treated as terminal so unknown failures are never
// retried blindly.
func IsTransient(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Class == Transient
}

// ErrNotFound indicates the named blob does not exist at the destination.
var ErrNotFound = errors.New("blob not found")

const (
	// blobPrefix is the common prefix of every backup blob name.
	blobPrefix = "keeper_backup_"

	// blobTimeLayout is the embedded timestamp layout. It is fixed-width
	// and zero-padded so names sort lexicographically by creation time.
	blobTimeLayout = "20060102T150405Z"
)

var blobNamePattern = regexp.MustCompile(`^keeper_backup_(\d{8}T\d{6}Z)\.json(\.gz)?(\.enc)?$`)

// BlobName builds the canonical blob name for a backup taken at ts.
// The extension records the payload shape: .json for plain JSON, .gz appended
// when compressed, .enc appended when encrypted.
func BlobName(ts time.Time, compressed, encrypted bool) string {
	name := blobPrefix + ts.UTC().Format(blobTimeLayout) + ".json"
	if compressed {
		name += ".gz"
	}
	if encrypted {
		name += ".enc"
	}
	return name
}

// IsBlobName reports whether name matches the backup blob naming convention.
func IsBlobName(name string) bool {
	return blobNamePattern.MatchString(name)
}

// BlobTime extracts the embedded creation timestamp from a blob name.
func BlobTime(name string) (time.Time, bool) {
	m := blobNamePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(blobTimeLayout, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// ParseKinds parses a comma-separated destination list from configuration.
func ParseKinds(s string) ([]Kind, error) {
	var kinds []Kind
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k := Kind(part)
		if !k.Valid() {
			return nil, fmt.Errorf("unknown destination kind %q", part)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
