// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

// Package archive implements the content-addressed container format
// for batches of invocations and receipts.
//
// An archive is the unit of one inbound request: a deterministic CBOR
// envelope holding the canonical bytes of each invocation and receipt
// it carries. The root CID is derived from the serialized envelope,
// so encoding the same set of invocations and receipts always yields
// the same root — the property every idempotent write in the pipeline
// rests on.
package archive

import (
	"fmt"
	"sort"

	"github.com/storacha/ucanstream/lib/cid"
	"github.com/storacha/ucanstream/lib/codec"
	"github.com/storacha/ucanstream/lib/ucan"
)

// ContentType identifies the archive encoding on inbound requests.
// Requests with any other content type are rejected before decoding.
const ContentType = "application/vnd.ucanstream.archive+cbor"

// envelopeVersion is the current archive format version. Bumped on
// incompatible envelope changes; the decoder rejects unknown versions.
const envelopeVersion = 1

// envelope is the serialized archive form. Invocations and receipts
// are stored as their canonical envelope bytes, not re-encoded, so
// block CIDs are preserved exactly through an encode/decode cycle.
type envelope struct {
	Version     int                `cbor:"version"`
	Invocations []codec.RawMessage `cbor:"invocations,omitempty"`
	Receipts    []codec.RawMessage `cbor:"receipts,omitempty"`
}

// Archive is a decoded content-addressed container.
type Archive struct {
	// Root is the archive's content-derived identity.
	Root cid.CID

	// Bytes is the serialized envelope, exactly as stored in the
	// blob store.
	Bytes []byte

	// Invocations holds the decoded invocations in canonical (CID)
	// order.
	Invocations []*ucan.Invocation

	// Receipts maps each receipt's own CID to the decoded receipt.
	Receipts map[cid.CID]*ucan.Receipt
}

// Encode packs invocations and receipts into a new archive. Blocks
// are sorted by CID before serialization so the root depends only on
// the set of blocks, not the order the caller assembled them in.
func Encode(invocations []*ucan.Invocation, receipts []*ucan.Receipt) (*Archive, error) {
	if len(invocations) == 0 && len(receipts) == 0 {
		return nil, fmt.Errorf("encoding archive: no invocations or receipts")
	}

	invocationBlocks := make([][]byte, len(invocations))
	for i, invocation := range invocations {
		invocationBlocks[i] = invocation.Bytes()
	}
	receiptBlocks := make([][]byte, len(receipts))
	for i, receipt := range receipts {
		receiptBlocks[i] = receipt.Bytes()
	}
	sortBlocks(invocationBlocks)
	sortBlocks(receiptBlocks)

	env := envelope{Version: envelopeVersion}
	for _, block := range invocationBlocks {
		env.Invocations = append(env.Invocations, codec.RawMessage(block))
	}
	for _, block := range receiptBlocks {
		env.Receipts = append(env.Receipts, codec.RawMessage(block))
	}

	data, err := codec.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding archive envelope: %w", err)
	}

	// Decode our own output rather than rebuilding the in-memory
	// view by hand. This keeps Encode and Decode trivially
	// consistent and exercises the round trip on every encode.
	return Decode(data)
}

// decodeBlocks populates the in-memory view from the envelope's raw
// blocks. Fails if any block fails to decode.
func (a *Archive) decodeBlocks(env envelope) error {
	for _, block := range env.Invocations {
		invocation, err := ucan.DecodeInvocation(block)
		if err != nil {
			return fmt.Errorf("archive %s: %w", a.Root.Ref(), err)
		}
		a.Invocations = append(a.Invocations, invocation)
	}

	a.Receipts = make(map[cid.CID]*ucan.Receipt, len(env.Receipts))
	for _, block := range env.Receipts {
		receipt, err := ucan.DecodeReceipt(block)
		if err != nil {
			return fmt.Errorf("archive %s: %w", a.Root.Ref(), err)
		}
		a.Receipts[receipt.CID()] = receipt
	}
	return nil
}

// Decode parses serialized archive bytes into an Archive. The root
// CID is computed from the bytes as given.
func Decode(data []byte) (*Archive, error) {
	var env envelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding archive envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("decoding archive: unsupported version %d", env.Version)
	}
	if len(env.Invocations) == 0 && len(env.Receipts) == 0 {
		return nil, fmt.Errorf("decoding archive: empty archive")
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	a := &Archive{
		Root:  cid.SumArchive(stored),
		Bytes: stored,
	}
	if err := a.decodeBlocks(env); err != nil {
		return nil, err
	}
	return a, nil
}

// Invocation returns the invocation with the given CID, or nil if the
// archive does not contain it.
func (a *Archive) Invocation(id cid.CID) *ucan.Invocation {
	for _, invocation := range a.Invocations {
		if invocation.CID() == id {
			return invocation
		}
	}
	return nil
}

// sortBlocks orders serialized blocks by their invocation-domain CID.
func sortBlocks(blocks [][]byte) {
	sort.Slice(blocks, func(i, j int) bool {
		return cid.SumInvocation(blocks[i]).String() < cid.SumInvocation(blocks[j]).String()
	})
}
