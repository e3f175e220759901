// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

// Package store provides the durable stores behind the processing
// pipeline: the archive blob store, the content-addressed link store,
// and the task result store.
//
// Every write is idempotent and keyed by content identifier, so
// concurrent duplicate requests (retries, at-least-once redelivery)
// converge without locking: a second write of the same archive, link,
// or result is a no-op.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/storacha/ucanstream/lib/cid"
)

// ErrNotFound is returned by lookups for keys that were never
// written. It is a definitive answer, not a transient failure — the
// retry layer never retries it.
var ErrNotFound = errors.New("not found")

// Namespace selects which role a content identifier was linked in. A
// CID can appear in both roles across different archives: first as an
// arriving invocation, later as the task a receipt resolves.
type Namespace string

const (
	// Inbound records "this invocation arrived inside this archive".
	Inbound Namespace = "in"

	// Outbound records "this receipt's task arrived inside this
	// archive".
	Outbound Namespace = "out"
)

// Valid reports whether the namespace is one of the two defined
// values.
func (n Namespace) Valid() bool {
	return n == Inbound || n == Outbound
}

// BlobStore is the durable mapping from archive CID to raw archive
// bytes.
type BlobStore interface {
	// Put stores bytes under their archive CID. Idempotent: if the
	// CID already exists the call succeeds without rewriting —
	// content addressing guarantees byte identity.
	Put(ctx context.Context, id cid.CID, data []byte) error

	// Get returns the stored bytes, or ErrNotFound.
	Get(ctx context.Context, id cid.CID) ([]byte, error)
}

// LinkStore is the durable record of which archive a given invocation
// or receipt CID arrived in.
type LinkStore interface {
	// PutLink records that source is contained in archive, in the
	// given namespace. Idempotent.
	PutLink(ctx context.Context, source, archive cid.CID, namespace Namespace) error

	// GetLink returns the archive recorded for source in the given
	// namespace, or ErrNotFound. When the same source was linked to
	// several archives (replays of identical content), the earliest
	// recorded archive wins — any of them contains the same bytes.
	GetLink(ctx context.Context, source cid.CID, namespace Namespace) (cid.CID, error)
}

// TaskStore is the durable mapping from task CID to its computed
// result and originating invocation.
type TaskStore interface {
	// PutResult stores the CBOR-encoded outcome for a task.
	// Idempotent on retry.
	PutResult(ctx context.Context, task cid.CID, result []byte) error

	// PutInvocationLink records which invocation produced the task's
	// result. Today task and invocation identity coincide; the link
	// is kept so they can diverge without a schema change.
	PutInvocationLink(ctx context.Context, task, invocation cid.CID) error

	// GetResult returns the stored result bytes, or ErrNotFound.
	GetResult(ctx context.Context, task cid.CID) ([]byte, error)

	// GetInvocationLink returns the invocation recorded for the
	// task, or ErrNotFound.
	GetInvocationLink(ctx context.Context, task cid.CID) (cid.CID, error)
}

// validateNamespace is shared by link store implementations.
func validateNamespace(namespace Namespace) error {
	if !namespace.Valid() {
		return fmt.Errorf("link store: invalid namespace %q", namespace)
	}
	return nil
}
