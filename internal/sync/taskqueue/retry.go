package taskqueue

import (
	"math"
	"time"
)

// Decision is what a RetryPolicy tells the queue to do with a failed task.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Drop is the decision to discard a task.
var Drop = Decision{}

// RetryAfter is the decision to re-run a task after d.
func RetryAfter(d time.Duration) Decision {
	return Decision{Retry: true, Delay: d}
}

// RetryPolicy decides what happens after a failed attempt. The set of
// policies is closed: NoRetry, ExponentialBackoff and
// ExponentialBackoffThenDrop.
type RetryPolicy interface {
	// Next is called with the number of attempts made so far (1 after the
	// first failure) and the error of the last attempt.
	Next(attempts int, err error) Decision

	retryPolicy()
}

// NoRetry drops a task on its first failure.
type NoRetry struct{}

func (NoRetry) Next(int, error) Decision { return Drop }
func (NoRetry) retryPolicy()             {}

// ExponentialBackoff retries forever, doubling the delay after every
// failure up to MaxDelay.
type ExponentialBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (p ExponentialBackoff) Next(attempts int, _ error) Decision {
	return RetryAfter(backoffDelay(attempts, p.BaseDelay, p.MaxDelay))
}
func (ExponentialBackoff) retryPolicy() {}

// ExponentialBackoffThenDrop retries with exponential delays until
// MaxAttempts executions have failed, then drops the task.
type ExponentialBackoffThenDrop struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p ExponentialBackoffThenDrop) Next(attempts int, _ error) Decision {
	if attempts >= p.MaxAttempts {
		return Drop
	}
	return RetryAfter(backoffDelay(attempts, p.BaseDelay, p.MaxDelay))
}
func (ExponentialBackoffThenDrop) retryPolicy() {}

// BackOffAndDrop is used for per-unit fetches: losing a unit is acceptable
// because the next gap scan finds it again.
var BackOffAndDrop = ExponentialBackoffThenDrop{
	MaxAttempts: 10,
	BaseDelay:   time.Second,
	MaxDelay:    time.Minute,
}

// BackOffForever is the default for queues whose work must eventually run.
var BackOffForever = ExponentialBackoff{
	BaseDelay: time.Second,
	MaxDelay:  time.Minute,
}

// backoffDelay calculates BaseDelay * 2^(attempts-1), capped at MaxDelay.
func backoffDelay(attempts int, base, maxDelay time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := float64(base) * math.Pow(2, float64(attempts-1))
	if maxDelay > 0 && delay > float64(maxDelay) {
		return maxDelay
	}
	if delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}
