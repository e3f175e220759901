// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package ucan

import (
	"fmt"

	"github.com/storacha/ucanstream/lib/cid"
	"github.com/storacha/ucanstream/lib/codec"
)

// invocationPayload is the signed portion of an invocation. The
// signature covers the exact CBOR bytes of this struct, which the
// envelope preserves verbatim so verification never depends on
// re-encoding decoded caveat values.
type invocationPayload struct {
	Issuer       DID          `cbor:"iss"`
	Audience     DID          `cbor:"aud"`
	Capabilities []Capability `cbor:"att"`
}

// invocationEnvelope is the canonical wire form: the raw payload
// bytes plus the issuer's Ed25519 signature over them.
type invocationEnvelope struct {
	Payload   codec.RawMessage `cbor:"payload"`
	Signature []byte           `cbor:"sig"`
}

// Invocation is a signed instruction to execute a set of capabilities.
// Immutable after construction; identity is the CID of the canonical
// envelope bytes.
type Invocation struct {
	issuer       DID
	audience     DID
	capabilities []Capability
	payload      []byte
	signature    []byte
	bytes        []byte
	cid          cid.CID
}

// Issue creates and signs an invocation from issuer to audience.
func Issue(issuer Signer, audience DID, capabilities []Capability) (*Invocation, error) {
	if issuer.IsZero() {
		return nil, fmt.Errorf("issuing invocation: signer is required")
	}
	if audience.IsZero() {
		return nil, fmt.Errorf("issuing invocation: audience is required")
	}
	if len(capabilities) == 0 {
		return nil, fmt.Errorf("issuing invocation: at least one capability is required")
	}
	for _, capability := range capabilities {
		if err := capability.Validate(); err != nil {
			return nil, fmt.Errorf("issuing invocation: %w", err)
		}
	}

	payload, err := codec.Marshal(invocationPayload{
		Issuer:       issuer.DID(),
		Audience:     audience,
		Capabilities: capabilities,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding invocation payload: %w", err)
	}

	signature := issuer.Sign(payload)
	envelope, err := codec.Marshal(invocationEnvelope{
		Payload:   payload,
		Signature: signature,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding invocation envelope: %w", err)
	}

	return &Invocation{
		issuer:       issuer.DID(),
		audience:     audience,
		capabilities: capabilities,
		payload:      payload,
		signature:    signature,
		bytes:        envelope,
		cid:          cid.SumInvocation(envelope),
	}, nil
}

// DecodeInvocation parses canonical envelope bytes. The CID is
// derived from the bytes as given — an invocation decoded from an
// archive has the same identity it had when issued. Signature
// verification is separate ([Invocation.Verify]) so decode stays
// usable on archives whose issuers are unknown to the caller.
func DecodeInvocation(data []byte) (*Invocation, error) {
	var envelope invocationEnvelope
	if err := codec.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding invocation envelope: %w", err)
	}

	var payload invocationPayload
	if err := codec.Unmarshal(envelope.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decoding invocation payload: %w", err)
	}
	if payload.Issuer.IsZero() || payload.Audience.IsZero() {
		return nil, fmt.Errorf("decoding invocation: issuer and audience are required")
	}
	if len(payload.Capabilities) == 0 {
		return nil, fmt.Errorf("decoding invocation: no capabilities")
	}

	bytes := make([]byte, len(data))
	copy(bytes, data)

	return &Invocation{
		issuer:       payload.Issuer,
		audience:     payload.Audience,
		capabilities: payload.Capabilities,
		payload:      []byte(envelope.Payload),
		signature:    envelope.Signature,
		bytes:        bytes,
		cid:          cid.SumInvocation(bytes),
	}, nil
}

// Verify checks the issuer's signature over the invocation payload.
func (inv *Invocation) Verify() error {
	if err := inv.issuer.Verify(inv.payload, inv.signature); err != nil {
		return fmt.Errorf("invocation %s: %w", inv.cid.Ref(), err)
	}
	return nil
}

// CID returns the content-derived identity of the invocation.
func (inv *Invocation) CID() cid.CID { return inv.cid }

// Issuer returns the DID that signed the invocation.
func (inv *Invocation) Issuer() DID { return inv.issuer }

// Audience returns the DID the invocation is addressed to.
func (inv *Invocation) Audience() DID { return inv.audience }

// Capabilities returns the capability attenuations. Callers must not
// mutate the returned slice.
func (inv *Invocation) Capabilities() []Capability { return inv.capabilities }

// Bytes returns the canonical envelope encoding. Callers must not
// mutate the returned slice.
func (inv *Invocation) Bytes() []byte { return inv.bytes }
