// Keeper - Backup Scheduling and Restore Engine for PepTrack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/keeper

package snapshot

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Password-based encryption: Argon2id derives a 32-byte key from the
// password and a per-payload random salt, ChaCha20-Poly1305 authenticates
// and encrypts. The wire format is a plain JSON envelope so encryption is
// detectable without a password:
//
//	{"version":1,"encrypted":true,"salt":"…","nonce":"…","ciphertext":"…"}
//
// with salt, nonce and ciphertext base64-encoded.
const (
	cryptoVersion = 1
	saltSize      = 16

	// RFC 9106 low-memory Argon2id parameters.
	argonTime    = 2
	argonMemory  = 19 * 1024 // KiB
	argonThreads = 1
	argonKeyLen  = 32
)

type cryptoEnvelope struct {
	Version    int    `json:"version"`
	Encrypted  bool   `json:"encrypted"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// Encrypt seals data under a password-derived key. A fresh salt and nonce
// are drawn per call, so encrypting the same payload twice never yields the
// same envelope.
func Encrypt(data []byte, password string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	aead, err := chacha20poly1305.New(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, data, nil)

	envelope := cryptoEnvelope{
		Version:    cryptoVersion,
		Encrypted:  true,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}
	out, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal encrypted envelope: %w", err)
	}
	return out, nil
}

// Decrypt opens an encrypted envelope. Authentication failure maps to
// ErrWrongPassword; a malformed envelope maps to ErrCorrupt.
func Decrypt(data []byte, password string) ([]byte, error) {
	var envelope cryptoEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: parse encrypted envelope: %v", ErrCorrupt, err)
	}
	if envelope.Version != cryptoVersion {
		return nil, fmt.Errorf("%w: unsupported encryption version %d", ErrCorrupt, envelope.Version)
	}
	if !envelope.Encrypted {
		return nil, fmt.Errorf("%w: envelope not marked as encrypted", ErrCorrupt)
	}

	salt, err := base64.StdEncoding.DecodeString(envelope.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: decode salt: %v", ErrCorrupt, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(envelope.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: decode nonce: %v", ErrCorrupt, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: decode ciphertext: %v", ErrCorrupt, err)
	}

	aead, err := chacha20poly1305.New(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce length %d", ErrCorrupt, len(nonce))
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}

// IsEncrypted reports whether data looks like an encrypted envelope. Any
// JSON object with a true "encrypted" field counts; non-JSON data does not.
func IsEncrypted(data []byte) bool {
	var probe struct {
		Encrypted bool `json:"encrypted"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Encrypted
}
