// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

// Package snapshot produces and decodes backup payloads.
//
// A payload moves through up to three layers on its way to a destination:
// the JSON document envelope, optional gzip compression, and optional
// password-based encryption. Decoding peels the layers in reverse order,
// detecting each from the bytes themselves rather than trusting filenames.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Decode errors. Callers discriminate with errors.Is: a missing password is
// not the same failure as a rejected one, and neither means the payload is
// damaged.
var (
	// ErrPasswordRequired means the payload is encrypted and no password
	// was supplied.
	ErrPasswordRequired = errors.New("payload is encrypted and requires a password")

	// ErrWrongPassword means decryption was attempted and authentication
	// failed.
	ErrWrongPassword = errors.New("decryption failed: wrong password or corrupted data")

	// ErrCorrupt means the payload could not be decompressed or parsed.
	ErrCorrupt = errors.New("payload is corrupt")

	// ErrEmpty means the document contains no records at all.
	ErrEmpty = errors.New("backup file appears to be empty")
)

// Metadata describes a snapshot at export time.
type Metadata struct {
	ExportDate      string `json:"exportDate"`
	ProtocolsCount  int    `json:"protocolsCount"`
	DosesCount      int    `json:"dosesCount"`
	LiteratureCount int    `json:"literatureCount"`
	AppVersion      string `json:"appVersion"`
}

// Document is the backup payload envelope. Records are carried as raw JSON
// so the engine never depends on entity schemas.
type Document struct {
	Metadata   Metadata          `json:"metadata"`
	Protocols  []json.RawMessage `json:"protocols"`
	DoseLogs   []json.RawMessage `json:"doseLogs"`
	Literature []json.RawMessage `json:"literature"`
}

// Empty reports whether the document holds no records of any kind.
func (d *Document) Empty() bool {
	return len(d.Protocols) == 0 && len(d.DoseLogs) == 0 && len(d.Literature) == 0
}

// Preview is the read-only summary returned before a restore.
type Preview struct {
	Metadata        Metadata `json:"metadata"`
	ProtocolsCount  int      `json:"protocolsCount"`
	DoseLogsCount   int      `json:"doseLogsCount"`
	LiteratureCount int      `json:"literatureCount"`
}

// Preview summarizes the document without touching any live data.
func (d *Document) Preview() Preview {
	return Preview{
		Metadata:        d.Metadata,
		ProtocolsCount:  len(d.Protocols),
		DoseLogsCount:   len(d.DoseLogs),
		LiteratureCount: len(d.Literature),
	}
}

// Source supplies the live records a snapshot captures. Implemented by the
// data store.
type Source interface {
	Protocols(ctx context.Context) ([]json.RawMessage, error)
	DoseLogs(ctx context.Context) ([]json.RawMessage, error)
	Literature(ctx context.Context) ([]json.RawMessage, error)
}

// Producer builds snapshot documents from a Source.
type Producer struct {
	source     Source
	appVersion string
	now        func() time.Time
}

// NewProducer returns a Producer stamping documents with appVersion.
func NewProducer(source Source, appVersion string) *Producer {
	return &Producer{
		source:     source,
		appVersion: appVersion,
		now:        time.Now,
	}
}

// WithClock overrides the export timestamp source. Test hook.
func (p *Producer) WithClock(now func() time.Time) *Producer {
	p.now = now
	return p
}

// Produce captures a point-in-time document. Any source failure aborts the
// whole snapshot: a partial document would restore as silent data loss.
func (p *Producer) Produce(ctx context.Context) (*Document, error) {
	protocols, err := p.source.Protocols(ctx)
	if err != nil {
		return nil, fmt.Errorf("export protocols: %w", err)
	}
	doseLogs, err := p.source.DoseLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("export dose logs: %w", err)
	}
	literature, err := p.source.Literature(ctx)
	if err != nil {
		return nil, fmt.Errorf("export literature: %w", err)
	}

	return &Document{
		Metadata: Metadata{
			ExportDate:      p.now().UTC().Format(time.RFC3339),
			ProtocolsCount:  len(protocols),
			DosesCount:      len(doseLogs),
			LiteratureCount: len(literature),
			AppVersion:      p.appVersion,
		},
		Protocols:  protocols,
		DoseLogs:   doseLogs,
		Literature: literature,
	}, nil
}

// Encode serializes the document and applies the requested layers in order:
// JSON, then compression, then encryption. An empty password means no
// encryption.
func Encode(d *Document, compress bool, password string) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	if compress {
		if data, err = Compress(data); err != nil {
			return nil, err
		}
	}
	if password != "" {
		if data, err = Encrypt(data, password); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Decode peels encryption, compression and JSON from raw payload bytes.
// Layers are detected from content: the encryption envelope is plain JSON
// with an "encrypted" marker, gzip announces itself with magic bytes. The
// layer order tolerates both encrypt-then-compress and compress-then-encrypt
// payloads.
func Decode(data []byte, password string) (*Document, error) {
	var err error

	if IsGzip(data) {
		if data, err = Decompress(data); err != nil {
			return nil, err
		}
	}

	if IsEncrypted(data) {
		if password == "" {
			return nil, ErrPasswordRequired
		}
		if data, err = Decrypt(data, password); err != nil {
			return nil, err
		}
		// Inner payload may itself be compressed.
		if IsGzip(data) {
			if data, err = Decompress(data); err != nil {
				return nil, err
			}
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse document: %v", ErrCorrupt, err)
	}
	return &doc, nil
}
