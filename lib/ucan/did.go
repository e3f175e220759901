// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package ucan

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
)

// didKeyPrefix introduces a key-derived DID. The remainder of the
// identifier is the hex-encoded Ed25519 public key, so a DID carries
// everything needed to verify signatures from its holder.
const didKeyPrefix = "did:key:"

// DID is a decentralized identifier for an agent or service identity.
// The zero value is invalid.
type DID string

// ParseDID validates the string form of a DID. Only key-derived DIDs
// with a well-formed Ed25519 public key are accepted.
func ParseDID(s string) (DID, error) {
	d := DID(s)
	if _, err := d.PublicKey(); err != nil {
		return "", err
	}
	return d, nil
}

// FromPublicKey derives the DID for an Ed25519 public key.
func FromPublicKey(key ed25519.PublicKey) DID {
	return DID(didKeyPrefix + hex.EncodeToString(key))
}

// PublicKey extracts the Ed25519 public key embedded in the DID.
func (d DID) PublicKey() (ed25519.PublicKey, error) {
	encoded, ok := strings.CutPrefix(string(d), didKeyPrefix)
	if !ok {
		return nil, fmt.Errorf("did %q: missing %q prefix", d, didKeyPrefix)
	}
	decoded, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("did %q: invalid key encoding: %w", d, err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("did %q: key is %d bytes, want %d", d, len(decoded), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(decoded), nil
}

// Verify checks an Ed25519 signature over payload against the DID's
// embedded public key.
func (d DID) Verify(payload, signature []byte) error {
	key, err := d.PublicKey()
	if err != nil {
		return err
	}
	if !ed25519.Verify(key, payload, signature) {
		return fmt.Errorf("did %s: signature verification failed", d.Short())
	}
	return nil
}

// IsZero reports whether the DID is unset.
func (d DID) IsZero() bool { return d == "" }

// String returns the canonical string form.
func (d DID) String() string { return string(d) }

// Short returns an abbreviated form for logs: the prefix plus the
// first 8 hex characters of the key.
func (d DID) Short() string {
	if len(d) <= len(didKeyPrefix)+8 {
		return string(d)
	}
	return string(d[:len(didKeyPrefix)+8]) + "…"
}

// MarshalText implements encoding.TextMarshaler so DIDs serialize as
// text strings in CBOR, JSON, and YAML.
func (d DID) MarshalText() ([]byte, error) {
	return []byte(d), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Accepts any
// syntactically valid DID — signature verification happens later, so
// decoding an archive does not require key validation up front.
func (d *DID) UnmarshalText(text []byte) error {
	if !strings.HasPrefix(string(text), didKeyPrefix) {
		return fmt.Errorf("did %q: missing %q prefix", text, didKeyPrefix)
	}
	*d = DID(text)
	return nil
}
