package pipeline

import "time"

// Policy maps a 1-based attempt number onto a fixed backoff schedule.
// Attempts past the end of the schedule clamp to the last entry.
type Policy struct {
	Schedule    []time.Duration
	MaxAttempts int
}

// DefaultPolicy returns the standard three-attempt backoff table
func DefaultPolicy() Policy {
	return Policy{
		Schedule:    []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second},
		MaxAttempts: 3,
	}
}

// DelayFor returns the backoff delay before the next attempt
func (p Policy) DelayFor(attempt int) time.Duration {
	if len(p.Schedule) == 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(p.Schedule) {
		attempt = len(p.Schedule)
	}
	return p.Schedule[attempt-1]
}

// Exhausted reports whether the attempt count has hit the cutoff
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
