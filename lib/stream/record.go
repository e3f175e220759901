// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

// Package stream defines the normalized records published for
// downstream consumers (billing, metrics, replication) and the
// partitioned log they are appended to.
//
// Delivery is at-least-once: a crash between persisting an archive
// and acknowledging the request republishes the archive's records on
// retry. Consumers deduplicate by the CID inside each record. The
// only ordering guarantee is per-archive batch atomicity — records
// from one archive land together, records from concurrent requests
// interleave arbitrarily.
package stream

import (
	"context"

	"github.com/storacha/ucanstream/lib/cid"
	"github.com/storacha/ucanstream/lib/ucan"
)

// RecordType tags a stream record as an observed invocation or an
// observed receipt.
type RecordType string

const (
	// TypeWorkflow marks a record projected from an invocation.
	TypeWorkflow RecordType = "workflow"

	// TypeReceipt marks a record projected from a receipt.
	TypeReceipt RecordType = "receipt"
)

// Value is the normalized projection of an invocation: its capability
// attenuations, audience, issuer, and content identity. Consumers
// deduplicate on CID.
type Value struct {
	Att []ucan.Capability `json:"att"`
	Aud ucan.DID          `json:"aud"`
	Iss ucan.DID          `json:"iss"`
	CID cid.CID           `json:"cid"`
}

// Record is one entry on the stream. The JSON field names are the
// wire contract with downstream consumers.
type Record struct {
	// Type discriminates workflow and receipt records.
	Type RecordType `json:"type"`

	// ArchiveCID is the root CID of the archive the invocation or
	// receipt arrived in.
	ArchiveCID cid.CID `json:"carCid"`

	// InvocationCID is set on receipt records: the CID of the
	// invocation the receipt resolves.
	InvocationCID *cid.CID `json:"invocationCid,omitempty"`

	// Value is the normalized invocation. For receipt records it
	// describes the originating invocation, resolved through the
	// link store.
	Value Value `json:"value"`

	// Out carries the receipt outcome. Nil on workflow records.
	Out *ucan.Result `json:"out,omitempty"`

	// Ts is the observation timestamp in Unix milliseconds.
	Ts int64 `json:"ts"`
}

// NewWorkflowRecord projects an invocation observed in the given
// archive.
func NewWorkflowRecord(archive cid.CID, invocation *ucan.Invocation, ts int64) Record {
	return Record{
		Type:       TypeWorkflow,
		ArchiveCID: archive,
		Value:      normalize(invocation),
		Ts:         ts,
	}
}

// NewReceiptRecord projects a receipt observed in the given archive,
// resolved back to its originating invocation.
func NewReceiptRecord(archive cid.CID, invocation *ucan.Invocation, out ucan.Result, ts int64) Record {
	invocationCID := invocation.CID()
	return Record{
		Type:          TypeReceipt,
		ArchiveCID:    archive,
		InvocationCID: &invocationCID,
		Value:         normalize(invocation),
		Out:           &out,
		Ts:            ts,
	}
}

// normalize projects the stream-visible fields of an invocation.
func normalize(invocation *ucan.Invocation) Value {
	return Value{
		Att: invocation.Capabilities(),
		Aud: invocation.Audience(),
		Iss: invocation.Issuer(),
		CID: invocation.CID(),
	}
}

// Publisher appends records to the ordered, partitioned log. One call
// per archive-processing event; the batch is atomic.
type Publisher interface {
	Publish(ctx context.Context, records []Record) error
}
