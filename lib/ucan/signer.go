// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package ucan

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Signer is an immutable signing identity: an Ed25519 private key and
// its derived DID. The service identity is a Signer constructed once
// at startup and passed explicitly to every component that needs it —
// there is no ambient or global identity.
type Signer struct {
	key ed25519.PrivateKey
	did DID
}

// NewSigner wraps an existing Ed25519 private key.
func NewSigner(key ed25519.PrivateKey) (Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return Signer{}, fmt.Errorf("signer key is %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}
	public, ok := key.Public().(ed25519.PublicKey)
	if !ok {
		return Signer{}, fmt.Errorf("signer key has no ed25519 public key")
	}
	return Signer{key: key, did: FromPublicKey(public)}, nil
}

// ParseSignerKey decodes a hex-encoded Ed25519 private key, the form
// used in service configuration.
func ParseSignerKey(encoded string) (Signer, error) {
	decoded, err := hex.DecodeString(encoded)
	if err != nil {
		return Signer{}, fmt.Errorf("hex-decoding signer key: %w", err)
	}
	return NewSigner(ed25519.PrivateKey(decoded))
}

// Generate creates a fresh signing identity. Used by tests and by the
// key-generation path of the service binary.
func Generate() (Signer, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Signer{}, fmt.Errorf("generating signer key: %w", err)
	}
	return NewSigner(key)
}

// DID returns the signer's identity.
func (s Signer) DID() DID { return s.did }

// Sign returns the Ed25519 signature over payload.
func (s Signer) Sign(payload []byte) []byte {
	return ed25519.Sign(s.key, payload)
}

// PrivateKeyBytes returns a copy of the raw Ed25519 private key, for
// key generation output. Callers are responsible for handling the
// material carefully.
func (s Signer) PrivateKeyBytes() []byte {
	out := make([]byte, len(s.key))
	copy(out, s.key)
	return out
}

// IsZero reports whether the signer is unconstructed.
func (s Signer) IsZero() bool { return s.key == nil }
