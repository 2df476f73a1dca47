package timer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// State of a Countdown.
type State int

const (
	Idle State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// ExpireFunc is invoked exactly once each time a running countdown reaches zero.
type ExpireFunc func(ctx context.Context)

// Envelope carries the absolute times of a running countdown.
type Envelope struct {
	StartedAt time.Time
	Deadline  time.Time
}

// Countdown is a deadline-driven timer with pause/resume-with-snapshot semantics.
//
// It owns no goroutine: the owner calls Tick on its own schedule, and all methods must be
// called under the owner's lock. While paused the deadline is cleared and the remaining
// seconds are frozen, so paused time never drains.
type Countdown struct {
	clock    clockwork.Clock
	onExpire ExpireFunc

	state     State
	startedAt time.Time
	deadline  time.Time
	paused    int
	shown     int
}

// NewCountdown returns an idle countdown.
func NewCountdown(clock clockwork.Clock, onExpire ExpireFunc) *Countdown {
	return &Countdown{clock: clock, onExpire: onExpire}
}

// Start (re)starts the countdown from any state.
func (c *Countdown) Start(seconds int) Envelope {
	if seconds < 0 {
		seconds = 0
	}
	now := c.clock.Now()
	c.state = Running
	c.startedAt = now
	c.deadline = now.Add(time.Duration(seconds) * time.Second)
	c.paused = 0
	c.shown = seconds
	return Envelope{StartedAt: c.startedAt, Deadline: c.deadline}
}

// Stop returns the countdown to Idle. It reports whether it was running or paused.
func (c *Countdown) Stop() bool {
	wasActive := c.state != Idle
	c.reset()
	return wasActive
}

// Pause freezes the remaining time. Only valid while running.
func (c *Countdown) Pause() (int, bool) {
	if c.state != Running {
		return 0, false
	}
	remaining := Remaining(c.deadline, c.clock.Now())
	c.state = Paused
	c.paused = remaining
	c.shown = remaining
	c.startedAt = time.Time{}
	c.deadline = time.Time{}
	return remaining, true
}

// Resume restarts a paused countdown with a fresh deadline built from the frozen value.
// A paused value of zero behaves as an immediate expiry. Resume is a no-op unless paused.
func (c *Countdown) Resume(ctx context.Context) (Envelope, bool) {
	if c.state != Paused {
		return Envelope{}, false
	}
	remaining := c.paused
	if remaining <= 0 {
		c.expire(ctx)
		return Envelope{}, false
	}
	now := c.clock.Now()
	c.state = Running
	c.startedAt = now
	c.deadline = now.Add(time.Duration(remaining) * time.Second)
	c.paused = 0
	c.shown = remaining
	return Envelope{StartedAt: c.startedAt, Deadline: c.deadline}, true
}

// Tick recomputes the remaining time from the deadline. It fires the expiry callback when
// the deadline has passed and reports whether the displayed whole-second value changed.
func (c *Countdown) Tick(ctx context.Context) (int, bool) {
	if c.state != Running {
		return c.Remaining(), false
	}
	remaining := Remaining(c.deadline, c.clock.Now())
	if remaining <= 0 {
		c.expire(ctx)
		return 0, false
	}
	changed := remaining != c.shown
	c.shown = remaining
	return remaining, changed
}

// Remaining returns the live value while running, the frozen value while paused, 0 when idle.
func (c *Countdown) Remaining() int {
	switch c.state {
	case Running:
		return Remaining(c.deadline, c.clock.Now())
	case Paused:
		return c.paused
	default:
		return 0
	}
}

// State returns the current state.
func (c *Countdown) State() State {
	return c.state
}

// Envelope returns the absolute times while running.
func (c *Countdown) Envelope() (Envelope, bool) {
	if c.state != Running {
		return Envelope{}, false
	}
	return Envelope{StartedAt: c.startedAt, Deadline: c.deadline}, true
}

func (c *Countdown) expire(ctx context.Context) {
	c.reset()
	if c.onExpire != nil {
		c.onExpire(ctx)
	}
}

func (c *Countdown) reset() {
	c.state = Idle
	c.startedAt = time.Time{}
	c.deadline = time.Time{}
	c.paused = 0
	c.shown = 0
}
