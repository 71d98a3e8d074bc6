// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

// Package config loads layered configuration: built-in defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Data    DataConfig    `koanf:"data"`
	Backup  BackupConfig  `koanf:"backup"`
	S3      S3Config      `koanf:"s3"`
	Logging LoggingConfig `koanf:"logging"`
	API     APIConfig     `koanf:"api"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DataConfig locates the engine's on-disk state.
type DataConfig struct {
	// Dir holds the schedule and history JSON files.
	Dir string `koanf:"dir"`

	// StoreDir is the BadgerDB directory for live records.
	StoreDir string `koanf:"store_dir"`

	// BackupDir is the local destination directory for backup blobs.
	BackupDir string `koanf:"backup_dir"`
}

// BackupConfig carries engine-level backup settings that are not part of the
// user-editable schedule.
type BackupConfig struct {
	// EncryptionPassword encrypts backup payloads when non-empty. Kept out
	// of the schedule so it never round-trips through the API.
	EncryptionPassword string `koanf:"encryption_password"`
}

// S3Config configures the S3-compatible destination.
type S3Config struct {
	Enabled           bool    `koanf:"enabled"`
	Bucket            string  `koanf:"bucket"`
	Prefix            string  `koanf:"prefix"`
	Region            string  `koanf:"region"`
	Endpoint          string  `koanf:"endpoint"`
	AccessKeyID       string  `koanf:"access_key_id"`
	SecretAccessKey   string  `koanf:"secret_access_key"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// LoggingConfig configures the zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// APIConfig configures API-surface policies.
type APIConfig struct {
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// defaultConfig returns the built-in defaults, applied before the config
// file and environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            7420,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Data: DataConfig{
			Dir:       "/data",
			StoreDir:  "/data/store",
			BackupDir: "/data/backups",
		},
		Backup: BackupConfig{
			EncryptionPassword: "",
		},
		S3: S3Config{
			Enabled:           false,
			Prefix:            "",
			RequestsPerSecond: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		API: APIConfig{
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
	}
}

// Validate checks cross-field invariants after all layers are applied.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server timeout must be positive")
	}
	if c.Data.Dir == "" || c.Data.StoreDir == "" || c.Data.BackupDir == "" {
		return fmt.Errorf("data.dir, data.store_dir and data.backup_dir are required")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when s3 is enabled")
		}
		if c.S3.Region == "" && c.S3.Endpoint == "" {
			return fmt.Errorf("s3.region or s3.endpoint is required when s3 is enabled")
		}
		if c.S3.RequestsPerSecond <= 0 {
			return fmt.Errorf("s3.requests_per_second must be positive")
		}
	}
	if c.API.RateLimitReqs < 1 {
		return fmt.Errorf("api.rate_limit_reqs must be at least 1")
	}
	if c.API.RateLimitWindow <= 0 {
		return fmt.Errorf("api.rate_limit_window must be positive")
	}
	return nil
}
