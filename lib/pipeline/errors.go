// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a processing failure for the transport boundary.
// Every error leaving Process carries exactly one kind.
type Kind string

const (
	// KindAuth covers missing or invalid request credentials.
	// Fatal to the request; retrying without fixing the credential
	// cannot help.
	KindAuth Kind = "authentication"

	// KindMalformed covers structurally invalid requests: missing
	// body, unrecognized content type. The caller must fix the
	// request.
	KindMalformed Kind = "malformed_request"

	// KindDecode covers archive bytes that fail to parse.
	KindDecode Kind = "decode"

	// KindIntegrity covers a broken content-addressed link graph: a
	// receipt referencing an invocation the service never saw,
	// missing blob bytes behind an existing link, or an invocation
	// absent from its recorded archive. Hard failures, never
	// skipped.
	KindIntegrity Kind = "integrity"

	// KindStorage covers store or stream failures that survived the
	// bounded retry layer. The whole request is safe to retry.
	KindStorage Kind = "storage"
)

// Sentinel errors for the specific failures tests and callers match
// on. Each is always wrapped in an *Error carrying its kind.
var (
	// ErrNoToken: the request carried no Authorization header.
	ErrNoToken = errors.New("no authorization header provided")

	// ErrNotBasicAuth: the Authorization header is not a Basic
	// credential.
	ErrNotBasicAuth = errors.New("no basic authorization header provided")

	// ErrInvalidToken: the presented token does not match the
	// configured secret.
	ErrInvalidToken = errors.New("invalid authorization credentials provided")

	// ErrMissingBody: the request had no body.
	ErrMissingBody = errors.New("requests are required to have a body")

	// ErrUnsupportedContentType: the body's content type is not the
	// archive encoding.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrNoArchiveForReceipt: no inbound link exists for the
	// invocation a receipt resolves — the service never saw it.
	ErrNoArchiveForReceipt = errors.New("no archive found for receipt")

	// ErrNoArchiveBytes: an inbound link exists but the archive
	// blob is missing.
	ErrNoArchiveBytes = errors.New("no archive bytes found for receipt")

	// ErrInvocationNotFound: the linked archive decoded but does
	// not contain the expected invocation.
	ErrInvocationNotFound = errors.New("invocation not found in archive")
)

// Error is a classified processing failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or the empty Kind for
// errors that did not come from the pipeline.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}

// classify wraps err with a kind, preserving errors.Is matching on
// the underlying sentinel.
func classify(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// classifyf wraps a formatted error with a kind.
func classifyf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}
