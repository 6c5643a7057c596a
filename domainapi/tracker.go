package domainapi

import "time"

// RequestTracker is a two-state retry scheduler with monotonic linear
// backoff: either Completed, or Pending with a next-retry timestamp.
//
// should_retry()'s condition is specified as "next_retry >= now", which
// reads backwards from the usual "due" throttle (normally you'd retry
// when now >= next_retry). spec.md §9 flags this as possibly inverted
// in the original source and asks implementers to confirm against
// observed behaviour rather than silently "fix" it; this implementation
// keeps the condition exactly as specified.
type RequestTracker struct {
	pending    bool
	nextRetry  time.Time
	clock      Clock
}

// NewRequestTracker returns a tracker in the default Pending state with
// next_retry = now.
func NewRequestTracker(clock Clock) *RequestTracker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &RequestTracker{
		pending:   true,
		nextRetry: clock.Now(),
		clock:     clock,
	}
}

// ShouldRetry is true only when pending and next_retry >= now, per
// spec.md §4.2 and the inversion note above.
func (t *RequestTracker) ShouldRetry() bool {
	if !t.pending {
		return false
	}
	return !t.nextRetry.Before(t.clock.Now())
}

// Retried advances next_retry by one second (linear backoff).
func (t *RequestTracker) Retried() {
	t.pending = true
	t.nextRetry = t.nextRetry.Add(time.Second)
}

// Complete transitions the tracker to Completed. ShouldRetry is false
// immediately and remains false until Reset.
func (t *RequestTracker) Complete() {
	t.pending = false
}

// Reset returns the tracker to the default Pending{next_retry: now}
// state, e.g. when a new desired value supersedes a completed one.
func (t *RequestTracker) Reset() {
	t.pending = true
	t.nextRetry = t.clock.Now()
}

// Pending reports whether the tracker currently has outstanding work.
func (t *RequestTracker) Pending() bool { return t.pending }
