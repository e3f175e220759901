// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the service's standard CBOR encoding
// configuration.
//
// Two serialization formats appear in this service with a clear
// boundary:
//
//   - CBOR for content-addressed data: archive envelopes, invocation
//     and receipt bodies, and task results. Anything that is hashed
//     into a CID must encode deterministically, so identical logical
//     content always yields identical bytes and therefore an
//     identical CID.
//   - JSON for the stream record wire shape consumed by downstream
//     billing, metrics, and replication consumers.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items. Duplicate archive submission depends on this — the root CID
// of an archive is derived from its serialized bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types with both json and cbor consumers carry json struct tags
// only; fxamacker/cbor reads json tags as fallback, so one tag
// controls field naming and omitempty for both formats.
package codec
