// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package cid

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// CID is a 32-byte BLAKE3 digest identifying an immutable byte
// sequence. Archives, invocations, and tasks are all addressed by CID.
// The zero value is invalid and means "no CID".
//
// CID is comparable — it can be used directly as a map key. All store
// keys use the canonical encodings below so lookups are consistent
// across the blob, link, and task stores.
type CID [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures the same bytes hashed in different roles produce
// different identifiers, so an archive can never collide with an
// invocation that happens to serialize to identical bytes.
type domainKey [32]byte

// Domain separation keys. These are protocol constants — changing
// them invalidates every identifier already issued in that domain.
// The byte values are the ASCII domain name, zero-padded to 32 bytes,
// so the keys are readable in hex dumps.
var (
	archiveDomainKey = domainKey{
		'u', 'c', 'a', 'n', 's', 't', 'r', 'e', 'a', 'm', '.',
		'a', 'r', 'c', 'h', 'i', 'v', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	invocationDomainKey = domainKey{
		'u', 'c', 'a', 'n', 's', 't', 'r', 'e', 'a', 'm', '.',
		'i', 'n', 'v', 'o', 'c', 'a', 't', 'i', 'o', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// SumArchive computes the archive-domain CID of serialized archive
// bytes. This is the root CID under which archive blobs are stored.
func SumArchive(data []byte) CID {
	return keyedSum(archiveDomainKey, data)
}

// SumInvocation computes the invocation-domain CID of a serialized
// invocation or receipt body. Invocation CIDs are stable and
// content-derived, which is what makes duplicate submission safe.
func SumInvocation(data []byte) CID {
	return keyedSum(invocationDomainKey, data)
}

// IsZero reports whether the CID is the invalid zero value.
func (c CID) IsZero() bool {
	return c == CID{}
}

// Bytes returns the canonical 32-byte encoding.
func (c CID) Bytes() []byte {
	buf := make([]byte, len(c))
	copy(buf, c[:])
	return buf
}

// String returns the canonical string encoding: 64 lowercase hex
// characters. Used in store keys, stream records, and log output.
func (c CID) String() string {
	return hex.EncodeToString(c[:])
}

// Ref returns the short display form for logs: "cid-" followed by the
// first 12 hex characters. Never use Ref as a store key.
func (c CID) Ref() string {
	return "cid-" + hex.EncodeToString(c[:6])
}

// MarshalText implements encoding.TextMarshaler. CIDs serialize as
// their canonical hex string in CBOR, JSON, and YAML.
func (c CID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Parse parses the canonical 64-character hex encoding into a CID.
func Parse(s string) (CID, error) {
	var c CID
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("parsing cid: %w", err)
	}
	if len(decoded) != len(c) {
		return c, fmt.Errorf("cid is %d bytes, want %d", len(decoded), len(c))
	}
	copy(c[:], decoded)
	return c, nil
}

// FromBytes converts a canonical 32-byte encoding into a CID.
func FromBytes(data []byte) (CID, error) {
	var c CID
	if len(data) != len(c) {
		return c, fmt.Errorf("cid is %d bytes, want %d", len(data), len(c))
	}
	copy(c[:], data)
	return c, nil
}

// keyedSum computes the BLAKE3 keyed hash for the given domain key.
func keyedSum(key domainKey, data []byte) CID {
	// NewKeyed only fails for a wrong key length, which domainKey
	// makes impossible.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("cid: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var c CID
	copy(c[:], hasher.Sum(nil))
	return c
}
