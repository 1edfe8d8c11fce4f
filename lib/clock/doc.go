// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock interface parameter instead of calling
// time.Now directly. In production, Real() provides the standard library
// behavior. In tests, Fake() provides a deterministic clock that only
// moves forward when Advance is called, letting a test assert exact
// timestamp values instead of tolerance-checking time.Now.
//
// # Wiring Pattern
//
// Add a Clock field to structs that use time:
//
//	type Server struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	s := &Server{clock: clock.Real()}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	s := &Server{clock: c}
//	// ... exercise s, which stamps everything with c.Now() ...
//	c.Advance(5 * time.Second)
//	// ... assert the new timestamp ...
package clock
