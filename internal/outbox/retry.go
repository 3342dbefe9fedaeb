package outbox

import "time"

// RetryPolicy decides when a failed event is retried and when it is
// quarantined.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// NewRetryPolicy fills in defaults for unset values.
func NewRetryPolicy(maxRetries int, baseDelay time.Duration) RetryPolicy {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: baseDelay}
}

// Backoff returns the delay before retry number attempt, doubling from
// BaseDelay and capped at one hour.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 31 {
		return time.Hour
	}
	delay := time.Duration(1<<uint(attempt-1)) * p.BaseDelay
	if delay > time.Hour || delay <= 0 {
		delay = time.Hour
	}
	return delay
}
