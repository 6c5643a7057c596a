package domainapi

import (
	"testing"
	"time"
)

func TestRequestTrackerCompleteStopsRetrying(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	tr := NewRequestTracker(clock)

	if !tr.ShouldRetry() {
		t.Fatalf("expected a fresh tracker (next_retry==now) to be retryable")
	}

	tr.Complete()
	if tr.ShouldRetry() {
		t.Fatalf("expected ShouldRetry false immediately after Complete")
	}

	clock.Advance(time.Hour)
	if tr.ShouldRetry() {
		t.Fatalf("expected ShouldRetry to remain false forever until Reset")
	}

	tr.Reset()
	if !tr.ShouldRetry() {
		t.Fatalf("expected ShouldRetry true again after Reset")
	}
}

func TestRequestTrackerRetriedAdvancesNextRetry(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	tr := NewRequestTracker(clock)
	tr.Retried()
	if !tr.Pending() {
		t.Fatalf("expected tracker to remain pending after Retried")
	}

	// next_retry moved from now to now+1s, so it is still >= now half a
	// second later; without the advance it would already be behind now.
	clock.Advance(500 * time.Millisecond)
	if !tr.ShouldRetry() {
		t.Fatalf("expected Retried to advance next_retry by one second")
	}
}
