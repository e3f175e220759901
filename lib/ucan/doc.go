// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

// Package ucan defines the capability-authorization data model:
// DIDs, capabilities, signed invocations, and signed receipts.
//
// An invocation is a signed instruction from an issuer to an audience
// to execute a set of capabilities. A receipt is the signed result of
// executing an invocation, linked back to it by the invocation's CID.
// Both are content-addressed: their identity is the CID of their
// canonical CBOR encoding, which is what makes duplicate delivery
// detectable and retries safe.
//
// The processing pipeline treats invocations as opaque
// capability-tagged messages — capability semantics live behind the
// handler dispatch table in lib/pipeline, not here.
package ucan
