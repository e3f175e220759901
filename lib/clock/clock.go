// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code
// injects Real(); tests inject Fake() with deterministic control.
//
// The pipeline stamps stream records with Now, and the store retry
// layer backs off with Sleep. Both take a Clock so tests can assert
// timestamps exactly and run retry schedules without real waiting.
package clock

import "time"

// Clock provides the time operations the service uses. Every
// production function that would call time.Now or time.Sleep takes a
// Clock (or is a method on a struct holding one) instead.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses the calling goroutine for at least duration d.
	Sleep(d time.Duration)
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
