// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storacha/ucanstream/lib/ucan"
)

// Handler executes one capability from an invocation and returns its
// outcome. Implementations own all capability semantics; the pipeline
// treats invocations as opaque capability-tagged messages and never
// consults the dispatch table itself.
type Handler func(ctx context.Context, capability ucan.Capability, invocation *ucan.Invocation) (ucan.Result, error)

// Dispatcher maps capability action names (e.g. "store/add") to their
// handlers. Immutable after construction-time registration; safe for
// concurrent dispatch.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher creates an empty dispatch table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register binds a handler to an action name. Registering the same
// action twice is a wiring bug and fails loudly.
func (d *Dispatcher) Register(action string, handler Handler) error {
	if action == "" {
		return fmt.Errorf("dispatch: action name is required")
	}
	if handler == nil {
		return fmt.Errorf("dispatch: handler for %q is nil", action)
	}
	if _, exists := d.handlers[action]; exists {
		return fmt.Errorf("dispatch: handler for %q already registered", action)
	}
	d.handlers[action] = handler
	return nil
}

// Actions returns the registered action names.
func (d *Dispatcher) Actions() []string {
	actions := make([]string, 0, len(d.handlers))
	for action := range d.handlers {
		actions = append(actions, action)
	}
	return actions
}

// Executor runs invocations through the dispatch table on behalf of
// the service identity and signs receipts for their outcomes.
type Executor struct {
	self       ucan.Signer
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewExecutor builds an executor for the given service identity.
func NewExecutor(self ucan.Signer, dispatcher *Dispatcher, logger *slog.Logger) (*Executor, error) {
	if self.IsZero() {
		return nil, fmt.Errorf("executor: service identity is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("executor: dispatcher is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("executor: logger is required")
	}
	return &Executor{self: self, dispatcher: dispatcher, logger: logger}, nil
}

// Execute verifies an invocation addressed to the service, runs its
// capability through the dispatch table, and returns a signed
// receipt. Handler failures become error outcomes in the receipt, not
// Go errors — a receipt is issued either way. Execute itself errors
// only when no receipt can be honestly issued: bad signature, wrong
// audience, or no registered handler.
func (e *Executor) Execute(ctx context.Context, invocation *ucan.Invocation) (*ucan.Receipt, error) {
	if err := invocation.Verify(); err != nil {
		return nil, fmt.Errorf("executing %s: %w", invocation.CID().Ref(), err)
	}
	if invocation.Audience() != e.self.DID() {
		return nil, fmt.Errorf("executing %s: audience %s is not this service",
			invocation.CID().Ref(), invocation.Audience().Short())
	}

	capabilities := invocation.Capabilities()
	if len(capabilities) != 1 {
		return nil, fmt.Errorf("executing %s: expected exactly one capability, got %d",
			invocation.CID().Ref(), len(capabilities))
	}
	capability := capabilities[0]

	handler, ok := e.dispatcher.handlers[capability.Can]
	if !ok {
		return nil, fmt.Errorf("executing %s: no handler for %q", invocation.CID().Ref(), capability.Can)
	}

	out, err := handler(ctx, capability, invocation)
	if err != nil {
		e.logger.Warn("capability handler failed",
			"invocation", invocation.CID().Ref(),
			"can", capability.Can,
			"error", err,
		)
		out = ucan.Fail(err.Error())
	}

	return ucan.IssueReceipt(e.self, invocation.CID(), out)
}
