// Package clock abstracts time so timers can be cancelled and driven
// deterministically in tests.
//
// Production code injects Real(). Tests inject Fake() and call Advance
// to fire cooldowns, reconnect backoff, heartbeats and the SOS broadcast
// loop without waiting on the wall clock.
package clock

import "time"

// Clock is the subset of the time package the Sentinel components use.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer cancels
	// the pending call. If d <= 0, f runs immediately (in a new goroutine
	// for Real, synchronously for Fake).
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the Timer from firing. It returns false if the timer
// already fired or was already stopped. A nil Timer is safe to stop.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}
