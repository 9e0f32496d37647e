package channel

import "time"

// backoffDelay returns the wait before reconnect attempt n (1-based):
// base doubled per attempt, capped at maxDelay.
func backoffDelay(base, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return min(delay, maxDelay)
}
