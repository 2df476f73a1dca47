package timer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestCountdown() (*Countdown, *clockwork.FakeClock, *int) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	fired := 0
	c := NewCountdown(clock, func(context.Context) { fired++ })
	return c, clock, &fired
}

func TestCountdownExpiresOnce(t *testing.T) {
	ctx := context.Background()
	c, clock, fired := newTestCountdown()

	env := c.Start(3)
	if !env.Deadline.Equal(clock.Now().Add(3 * time.Second)) {
		t.Fatalf("unexpected deadline %v", env.Deadline)
	}

	clock.Advance(1200 * time.Millisecond)
	remaining, changed := c.Tick(ctx)
	if remaining != 2 || !changed {
		t.Fatalf("expected 2 remaining and a change, got %d changed=%v", remaining, changed)
	}
	if _, changed := c.Tick(ctx); changed {
		t.Fatalf("expected no change without time passing")
	}

	clock.Advance(2 * time.Second)
	c.Tick(ctx)
	c.Tick(ctx)
	if *fired != 1 {
		t.Fatalf("expected expiry callback once, got %d", *fired)
	}
	if c.State() != Idle {
		t.Fatalf("expected idle after expiry, got %s", c.State())
	}
}

func TestCountdownPauseFreezesRemaining(t *testing.T) {
	ctx := context.Background()
	c, clock, fired := newTestCountdown()

	c.Start(30)
	clock.Advance(10 * time.Second)

	remaining, ok := c.Pause()
	if !ok || remaining != 20 {
		t.Fatalf("expected pause with 20 remaining, got %d ok=%v", remaining, ok)
	}
	if _, running := c.Envelope(); running {
		t.Fatalf("expected no deadline while paused")
	}

	clock.Advance(time.Minute)
	c.Tick(ctx)
	if c.Remaining() != 20 {
		t.Fatalf("expected paused value to stay 20, got %d", c.Remaining())
	}
	if *fired != 0 {
		t.Fatalf("paused countdown must not expire")
	}

	env, ok := c.Resume(ctx)
	if !ok {
		t.Fatalf("expected resume")
	}
	if !env.Deadline.Equal(clock.Now().Add(20 * time.Second)) {
		t.Fatalf("expected fresh deadline 20s out, got %v", env.Deadline.Sub(clock.Now()))
	}
	if c.Remaining() != 20 {
		t.Fatalf("expected 20 after resume, got %d", c.Remaining())
	}
}

func TestCountdownPauseResumeRoundTripKeepsBound(t *testing.T) {
	ctx := context.Background()
	c, clock, _ := newTestCountdown()

	c.Start(15)
	clock.Advance(2500 * time.Millisecond)
	before := c.Remaining()
	c.Pause()
	c.Resume(ctx)
	after := c.Remaining()
	if after > 15 || after != before {
		t.Fatalf("expected %d after round trip within 15, got %d", before, after)
	}
}

func TestCountdownResumeGuards(t *testing.T) {
	ctx := context.Background()
	c, _, fired := newTestCountdown()

	if _, ok := c.Resume(ctx); ok {
		t.Fatalf("resume from idle must be a no-op")
	}
	if _, ok := c.Pause(); ok {
		t.Fatalf("pause from idle must be a no-op")
	}

	c.Start(10)
	if _, ok := c.Resume(ctx); ok {
		t.Fatalf("resume while running must be a no-op")
	}
	if *fired != 0 {
		t.Fatalf("unexpected expiry")
	}
}

func TestCountdownResumeWithNothingLeftExpires(t *testing.T) {
	ctx := context.Background()
	c, clock, fired := newTestCountdown()

	c.Start(1)
	clock.Advance(999 * time.Millisecond)
	// 1ms left still shows as 1; move past the deadline before pausing.
	clock.Advance(time.Millisecond)
	if remaining, ok := c.Pause(); !ok || remaining != 0 {
		t.Fatalf("expected pause with 0 remaining, got %d ok=%v", remaining, ok)
	}
	if _, ok := c.Resume(ctx); ok {
		t.Fatalf("expected resume to expire instead")
	}
	if *fired != 1 {
		t.Fatalf("expected expiry on empty resume, got %d", *fired)
	}
}

func TestCountdownStop(t *testing.T) {
	c, _, fired := newTestCountdown()

	if c.Stop() {
		t.Fatalf("stopping an idle countdown reports inactive")
	}
	c.Start(5)
	c.Pause()
	if !c.Stop() {
		t.Fatalf("expected stop of a paused countdown to report active")
	}
	if c.Remaining() != 0 || c.State() != Idle {
		t.Fatalf("expected cleared state after stop")
	}
	if *fired != 0 {
		t.Fatalf("stop must not fire expiry")
	}
}
