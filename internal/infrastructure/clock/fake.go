package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a deterministic Clock for tests. Time moves only when
// Advance is called.
//
// AfterFunc callbacks run synchronously inside Advance, in deadline
// order. A callback may schedule new timers; those fire in the same
// Advance if their deadline falls inside the advanced window. Do not
// call Advance from within a callback.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
	changed *sync.Cond
}

type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time
	callback func()
	stopped  bool
	fired    bool
}

// Fake returns a FakeClock starting at initial.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives once the clock has advanced by d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}

	c.waiters = append(c.waiters, &fakeWaiter{
		deadline: c.current.Add(d),
		channel:  channel,
	})
	c.changed.Broadcast()
	return channel
}

// AfterFunc schedules f to run once the clock has advanced by d.
// If d <= 0, f runs before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stopFunc: func() bool { return false }}
	}

	c.mu.Lock()
	waiter := &fakeWaiter{
		deadline: c.current.Add(d),
		callback: f,
	}
	c.waiters = append(c.waiters, waiter)
	c.changed.Broadcast()
	c.mu.Unlock()

	return &Timer{
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if waiter.stopped || waiter.fired {
				return false
			}
			waiter.stopped = true
			return true
		},
	}
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline falls within the new time.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		next := c.popNext(target)
		if next == nil {
			break
		}
		if next.callback != nil {
			next.callback()
		} else {
			select {
			case next.channel <- next.deadline:
			default:
			}
		}
	}

	c.mu.Lock()
	c.current = target
	c.mu.Unlock()
}

// popNext removes and returns the earliest waiter due at or before
// target, moving the clock to its deadline. Returns nil when none is due.
func (c *FakeClock) popNext(target time.Time) *fakeWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := c.waiters[:0]
	for _, waiter := range c.waiters {
		if !waiter.stopped && !waiter.fired {
			live = append(live, waiter)
		}
	}
	c.waiters = live

	sort.SliceStable(c.waiters, func(i, j int) bool {
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})

	if len(c.waiters) == 0 || c.waiters[0].deadline.After(target) {
		return nil
	}

	next := c.waiters[0]
	c.waiters = c.waiters[1:]
	next.fired = true
	if next.deadline.After(c.current) {
		c.current = next.deadline
	}
	return next
}

// WaitForTimers blocks until at least n waiters are pending. It removes
// the race between a goroutine registering a timer and the test
// advancing the clock.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of active waiters.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, waiter := range c.waiters {
		if !waiter.stopped && !waiter.fired {
			count++
		}
	}
	return count
}
