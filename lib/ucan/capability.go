// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package ucan

import "fmt"

// Capability is one (resource, action, caveats) authorization unit
// attached to an invocation: "perform Can on With, constrained by Nb".
//
// Carries json tags: capabilities are embedded in CBOR invocation
// bodies and projected unchanged into JSON stream records.
type Capability struct {
	// Can is the action name, e.g. "store/add".
	Can string `json:"can"`

	// With is the resource the action applies to, typically a DID.
	With string `json:"with"`

	// Nb holds capability-specific caveats. Opaque to the pipeline.
	Nb map[string]any `json:"nb,omitempty"`
}

// Validate checks the structural requirements common to every
// capability. Caveat semantics are the handler's concern.
func (c Capability) Validate() error {
	if c.Can == "" {
		return fmt.Errorf("capability: can is required")
	}
	if c.With == "" {
		return fmt.Errorf("capability %q: with is required", c.Can)
	}
	return nil
}

// Result is the outcome of executing an invocation: exactly one of Ok
// or Error is set. The payload shape is capability-defined.
type Result struct {
	Ok    map[string]any `json:"ok,omitempty"`
	Error map[string]any `json:"error,omitempty"`
}

// OK builds a success result.
func OK(payload map[string]any) Result {
	if payload == nil {
		payload = map[string]any{}
	}
	return Result{Ok: payload}
}

// Fail builds an error result with the conventional message field.
func Fail(message string) Result {
	return Result{Error: map[string]any{"message": message}}
}

// Succeeded reports whether the result is a success.
func (r Result) Succeeded() bool { return r.Ok != nil }
