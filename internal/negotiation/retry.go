package negotiation

import "time"

// RetryPolicy spaces out reconnect requests after a transport failure so a
// flapping link does not turn into a tight failure loop.
type RetryPolicy struct {
	// Delay between detecting the failure and sending the request.
	Delay time.Duration

	// MaxAttempts caps consecutive requests; zero means unbounded.
	MaxAttempts int
}

// DefaultRetryPolicy matches the production cadence: one request two
// seconds after the failure, at most five in a row.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Delay: 2 * time.Second, MaxAttempts: 5}
}

// NextDelay returns the wait before attempt number attempt (zero-based)
// and whether another attempt is allowed.
func (p RetryPolicy) NextDelay(attempt int) (time.Duration, bool) {
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		return 0, false
	}
	return p.Delay, true
}
