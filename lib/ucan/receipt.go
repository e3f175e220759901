// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package ucan

import (
	"fmt"

	"github.com/storacha/ucanstream/lib/cid"
	"github.com/storacha/ucanstream/lib/codec"
)

// receiptPayload is the signed portion of a receipt.
type receiptPayload struct {
	Issuer DID     `cbor:"iss"`
	Ran    cid.CID `cbor:"ran"`
	Out    Result  `cbor:"out"`
}

// receiptEnvelope is the canonical wire form.
type receiptEnvelope struct {
	Payload   codec.RawMessage `cbor:"payload"`
	Signature []byte           `cbor:"sig"`
}

// Receipt is the signed result of executing an invocation. Ran links
// it to the invocation it resolves; Out carries the outcome. A
// receipt may travel in a different, later archive than its
// invocation.
type Receipt struct {
	issuer    DID
	ran       cid.CID
	out       Result
	payload   []byte
	signature []byte
	bytes     []byte
	cid       cid.CID
}

// IssueReceipt creates and signs a receipt resolving the invocation
// identified by ran.
func IssueReceipt(issuer Signer, ran cid.CID, out Result) (*Receipt, error) {
	if issuer.IsZero() {
		return nil, fmt.Errorf("issuing receipt: signer is required")
	}
	if ran.IsZero() {
		return nil, fmt.Errorf("issuing receipt: ran link is required")
	}
	if out.Ok == nil && out.Error == nil {
		return nil, fmt.Errorf("issuing receipt: outcome is required")
	}

	payload, err := codec.Marshal(receiptPayload{
		Issuer: issuer.DID(),
		Ran:    ran,
		Out:    out,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding receipt payload: %w", err)
	}

	signature := issuer.Sign(payload)
	envelope, err := codec.Marshal(receiptEnvelope{
		Payload:   payload,
		Signature: signature,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding receipt envelope: %w", err)
	}

	return &Receipt{
		issuer:    issuer.DID(),
		ran:       ran,
		out:       out,
		payload:   payload,
		signature: signature,
		bytes:     envelope,
		cid:       cid.SumInvocation(envelope),
	}, nil
}

// DecodeReceipt parses canonical receipt envelope bytes.
func DecodeReceipt(data []byte) (*Receipt, error) {
	var envelope receiptEnvelope
	if err := codec.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding receipt envelope: %w", err)
	}

	var payload receiptPayload
	if err := codec.Unmarshal(envelope.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decoding receipt payload: %w", err)
	}
	if payload.Issuer.IsZero() {
		return nil, fmt.Errorf("decoding receipt: issuer is required")
	}
	if payload.Ran.IsZero() {
		return nil, fmt.Errorf("decoding receipt: ran link is required")
	}

	bytes := make([]byte, len(data))
	copy(bytes, data)

	return &Receipt{
		issuer:    payload.Issuer,
		ran:       payload.Ran,
		out:       payload.Out,
		payload:   []byte(envelope.Payload),
		signature: envelope.Signature,
		bytes:     bytes,
		cid:       cid.SumInvocation(bytes),
	}, nil
}

// Verify checks the issuer's signature over the receipt payload.
func (r *Receipt) Verify() error {
	if err := r.issuer.Verify(r.payload, r.signature); err != nil {
		return fmt.Errorf("receipt %s: %w", r.cid.Ref(), err)
	}
	return nil
}

// TaskID returns the identifier of the task this receipt resolves.
//
// Today a task is identified by its invocation's CID, so TaskID is
// Ran. Once an explicit instruction layer exists the two will
// diverge; every task-identity decision in the pipeline goes through
// this method so that change lands in one place.
func (r *Receipt) TaskID() cid.CID { return r.ran }

// Ran returns the CID of the invocation this receipt resolves.
func (r *Receipt) Ran() cid.CID { return r.ran }

// Out returns the outcome.
func (r *Receipt) Out() Result { return r.out }

// Issuer returns the DID that signed the receipt.
func (r *Receipt) Issuer() DID { return r.issuer }

// CID returns the content-derived identity of the receipt itself.
func (r *Receipt) CID() cid.CID { return r.cid }

// Bytes returns the canonical envelope encoding. Callers must not
// mutate the returned slice.
func (r *Receipt) Bytes() []byte { return r.bytes }
