// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(20 * time.Millisecond)
	want := epoch.Add(20 * time.Millisecond)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockAfterFiresOnAdvance(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(20 * time.Millisecond)

	select {
	case <-channel:
		t.Fatal("After fired before Advance")
	default:
	}

	clock.Advance(10 * time.Millisecond)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	clock.Advance(10 * time.Millisecond)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire after Advance")
	}
	if pending := clock.Pending(); pending != 0 {
		t.Errorf("Pending() = %d after firing, want 0", pending)
	}
}

func TestFakeClockAfterNonPositiveDuration(t *testing.T) {
	clock := Fake(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		select {
		case <-clock.After(d):
		default:
			t.Fatalf("After(%v) should fire immediately", d)
		}
	}
	if pending := clock.Pending(); pending != 0 {
		t.Errorf("Pending() = %d, want 0", pending)
	}
}

func TestFakeClockSleepUnblocksAfterAdvance(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		clock.Sleep(500 * time.Millisecond)
		close(done)
	}()

	clock.WaitForTimers(1)
	select {
	case <-done:
		t.Fatal("Sleep returned before Advance")
	default:
	}

	clock.Advance(500 * time.Millisecond)
	select {
	case <-done:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestFakeClockSleepZeroReturnsImmediately(t *testing.T) {
	clock := Fake(epoch)
	clock.Sleep(0)
	if pending := clock.Pending(); pending != 0 {
		t.Errorf("Pending() = %d, want 0", pending)
	}
}

func TestRealClockSatisfiesInterface(t *testing.T) {
	var c Clock = Real()
	before := time.Now()
	c.Sleep(time.Millisecond)
	if !c.Now().After(before) {
		t.Error("Real().Now() did not advance across Sleep")
	}
}
