package session

import (
	"sort"
	"sync"
	"time"
)

// Clock reports the current time as a duration since an arbitrary epoch.
type Clock interface {
	Now() time.Duration
}

// Timer is a single-shot scheduled callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call stopped the timer
	// before it fired; stopping a fired or stopped timer is a no-op.
	Stop() bool
}

// Scheduler runs fn once after d. Implementations must run fn on the same
// logical thread that feeds events to the Controller.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Timer
}

// SystemClock measures wall time since it was created.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a SystemClock whose epoch is now.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the time elapsed since the clock was created.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}

// ManualClock is a Clock and Scheduler whose time only moves when told to.
// Timers fire synchronously from Advance and AdvanceTo, in deadline order.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Duration
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
}

// NewManualClock creates a ManualClock reading start.
func NewManualClock(start time.Duration) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current reading.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Schedule registers fn to run once the clock reaches Now()+d.
func (c *ManualClock) Schedule(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now + d, seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.AdvanceTo(c.Now() + d)
}

// AdvanceTo moves the clock to t, firing every timer due at or before t.
// Each timer runs with the clock set to its own deadline. The clock never
// moves backwards.
func (c *ManualClock) AdvanceTo(t time.Duration) {
	for {
		c.mu.Lock()
		next := c.nextDue(t)
		if next == nil {
			if t > c.now {
				c.now = t
			}
			c.mu.Unlock()
			return
		}
		if next.at > c.now {
			c.now = next.at
		}
		next.fired = true
		c.removeLocked(next)
		fn := next.fn
		c.mu.Unlock()

		fn()
	}
}

// Pending returns the number of timers that have neither fired nor been
// stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// NextDeadline returns the earliest pending deadline.
func (c *ManualClock) NextDeadline() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return 0, false
	}
	c.sortLocked()
	return c.timers[0].at, true
}

func (c *ManualClock) nextDue(t time.Duration) *manualTimer {
	if len(c.timers) == 0 {
		return nil
	}
	c.sortLocked()
	if c.timers[0].at > t {
		return nil
	}
	return c.timers[0]
}

func (c *ManualClock) sortLocked() {
	sort.Slice(c.timers, func(i, j int) bool {
		if c.timers[i].at != c.timers[j].at {
			return c.timers[i].at < c.timers[j].at
		}
		return c.timers[i].seq < c.timers[j].seq
	})
}

func (c *ManualClock) removeLocked(t *manualTimer) {
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.clock.removeLocked(t)
	return true
}
