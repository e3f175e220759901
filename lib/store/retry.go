// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storacha/ucanstream/lib/cid"
	"github.com/storacha/ucanstream/lib/clock"
)

// RetryPolicy bounds retries of transient store failures. Delays grow
// exponentially from BaseDelay, capped at MaxDelay.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// BaseDelay is the sleep before the second attempt.
	BaseDelay time.Duration

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
}

// DefaultRetryPolicy matches the bounded-retry requirement for
// transient storage errors: a few quick attempts, then surface the
// failure to the caller, whose full-request retry is safe.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
	}
}

// retry runs fn up to policy.MaxAttempts times, backing off between
// attempts. ErrNotFound and context cancellation are definitive and
// never retried. The last error is returned when attempts exhaust.
func retry(ctx context.Context, clk clock.Clock, policy RetryPolicy, op string, fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := policy.BaseDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt >= attempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		clk.Sleep(delay)
		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, attempts, err)
}

// RetryingBlobStore decorates a BlobStore with bounded retries.
type RetryingBlobStore struct {
	inner  BlobStore
	policy RetryPolicy
	clock  clock.Clock
}

// NewRetryingBlobStore wraps inner with the given retry policy.
func NewRetryingBlobStore(inner BlobStore, policy RetryPolicy, clk clock.Clock) *RetryingBlobStore {
	return &RetryingBlobStore{inner: inner, policy: policy, clock: clk}
}

func (s *RetryingBlobStore) Put(ctx context.Context, id cid.CID, data []byte) error {
	return retry(ctx, s.clock, s.policy, "blob put", func() error {
		return s.inner.Put(ctx, id, data)
	})
}

func (s *RetryingBlobStore) Get(ctx context.Context, id cid.CID) ([]byte, error) {
	var data []byte
	err := retry(ctx, s.clock, s.policy, "blob get", func() error {
		var innerErr error
		data, innerErr = s.inner.Get(ctx, id)
		return innerErr
	})
	return data, err
}

// RetryingLinkStore decorates a LinkStore with bounded retries.
type RetryingLinkStore struct {
	inner  LinkStore
	policy RetryPolicy
	clock  clock.Clock
}

// NewRetryingLinkStore wraps inner with the given retry policy.
func NewRetryingLinkStore(inner LinkStore, policy RetryPolicy, clk clock.Clock) *RetryingLinkStore {
	return &RetryingLinkStore{inner: inner, policy: policy, clock: clk}
}

func (s *RetryingLinkStore) PutLink(ctx context.Context, source, archive cid.CID, namespace Namespace) error {
	return retry(ctx, s.clock, s.policy, "link put", func() error {
		return s.inner.PutLink(ctx, source, archive, namespace)
	})
}

func (s *RetryingLinkStore) GetLink(ctx context.Context, source cid.CID, namespace Namespace) (cid.CID, error) {
	var archive cid.CID
	err := retry(ctx, s.clock, s.policy, "link get", func() error {
		var innerErr error
		archive, innerErr = s.inner.GetLink(ctx, source, namespace)
		return innerErr
	})
	return archive, err
}

// RetryingTaskStore decorates a TaskStore with bounded retries.
type RetryingTaskStore struct {
	inner  TaskStore
	policy RetryPolicy
	clock  clock.Clock
}

// NewRetryingTaskStore wraps inner with the given retry policy.
func NewRetryingTaskStore(inner TaskStore, policy RetryPolicy, clk clock.Clock) *RetryingTaskStore {
	return &RetryingTaskStore{inner: inner, policy: policy, clock: clk}
}

func (s *RetryingTaskStore) PutResult(ctx context.Context, task cid.CID, result []byte) error {
	return retry(ctx, s.clock, s.policy, "task result put", func() error {
		return s.inner.PutResult(ctx, task, result)
	})
}

func (s *RetryingTaskStore) PutInvocationLink(ctx context.Context, task, invocation cid.CID) error {
	return retry(ctx, s.clock, s.policy, "task invocation link put", func() error {
		return s.inner.PutInvocationLink(ctx, task, invocation)
	})
}

func (s *RetryingTaskStore) GetResult(ctx context.Context, task cid.CID) ([]byte, error) {
	var result []byte
	err := retry(ctx, s.clock, s.policy, "task result get", func() error {
		var innerErr error
		result, innerErr = s.inner.GetResult(ctx, task)
		return innerErr
	})
	return result, err
}

func (s *RetryingTaskStore) GetInvocationLink(ctx context.Context, task cid.CID) (cid.CID, error) {
	var invocation cid.CID
	err := retry(ctx, s.clock, s.policy, "task invocation link get", func() error {
		var innerErr error
		invocation, innerErr = s.inner.GetInvocationLink(ctx, task)
		return innerErr
	})
	return invocation, err
}
