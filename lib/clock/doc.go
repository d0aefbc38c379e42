// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for the bounded
// polling loops in the synchronization layer.
//
// Every wait that the protocol depends on (the disk-latency wait between
// console log reads, the settle delay after a setpos, the floor-portal
// velocity wait) goes through a Clock instead of calling time.Sleep
// directly. In production, Real() provides the standard library behavior.
// In tests, Fake() provides a deterministic clock that advances only when
// Advance is called, so a test can exhaust a ten-attempt retry loop
// without spending wall-clock time.
//
// # FakeClock Synchronization
//
// When a goroutine calls Sleep or After on a FakeClock, it registers a
// pending waiter. Use WaitForTimers to block until a goroutine has
// registered before calling Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go func() { done <- tail.Drain(true) }()
//	c.WaitForTimers(1)
//	c.Advance(20 * time.Millisecond)
//
// Socket read deadlines are not routed through Clock: the net package
// compares deadlines against the wall clock.
package clock
