package domainapi

import (
	"testing"
	"time"
)

func TestRemoteValueQuiescentRoundTrip(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	rv := NewRemoteValue(clock, "a")

	tag, snap, ok := rv.StartUpdate()
	if !ok {
		t.Fatalf("expected StartUpdate to fire on a fresh value")
	}
	if snap != "a" {
		t.Fatalf("expected snapshot %q, got %q", "a", snap)
	}

	rv.FinishUpdate(tag, true)

	local, remote := rv.Counters()
	if local != remote {
		t.Fatalf("expected quiescent local==remote, got local=%d remote=%d", local, remote)
	}
	if !rv.Quiescent() {
		t.Fatalf("expected Quiescent() true")
	}

	if _, _, ok := rv.StartUpdate(); ok {
		t.Fatalf("expected no further update pending once quiescent")
	}
}

func TestRemoteValueAtMostOneInFlight(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	rv := NewRemoteValue(clock, 1)

	if _, _, ok := rv.StartUpdate(); !ok {
		t.Fatalf("expected first StartUpdate to succeed")
	}
	if _, _, ok := rv.StartUpdate(); ok {
		t.Fatalf("expected second concurrent StartUpdate to be refused")
	}
}

func TestRemoteValueDirtyFlagSurvivesConcurrentModify(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	rv := NewRemoteValue(clock, "a")

	tag, _, ok := rv.StartUpdate()
	if !ok {
		t.Fatalf("expected StartUpdate to fire")
	}

	// A concurrent modification arrives while the push is in flight.
	rv.Set("b")

	rv.FinishUpdate(tag, true)

	local, remote := rv.Counters()
	if local <= remote {
		t.Fatalf("expected local > remote after concurrent modify, got local=%d remote=%d", local, remote)
	}
	if rv.Quiescent() {
		t.Fatalf("expected not quiescent: a modification arrived mid-flight")
	}

	// The next tick must re-enqueue the newer value.
	_, snap, ok := rv.StartUpdate()
	if !ok {
		t.Fatalf("expected the dirty value to be re-enqueued")
	}
	if snap != "b" {
		t.Fatalf("expected re-enqueued snapshot %q, got %q", "b", snap)
	}
}

func TestRemoteValueFailedPushLeavesDirty(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	rv := NewRemoteValue(clock, "a")

	tag, _, ok := rv.StartUpdate()
	if !ok {
		t.Fatalf("expected StartUpdate to fire")
	}
	rv.FinishUpdate(tag, false)

	if rv.Quiescent() {
		t.Fatalf("expected a failed push to leave the value dirty for retry")
	}
	if rv.InProgress() {
		t.Fatalf("expected in-flight flag cleared after FinishUpdate")
	}
}

func TestRemoteValueInvariantLocalGERemote(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	rv := NewRemoteValue(clock, 0)

	ops := []func(){
		func() { rv.Set(1) },
		func() { rv.MarkModified() },
		func() {
			if tag, _, ok := rv.StartUpdate(); ok {
				rv.FinishUpdate(tag, true)
			}
		},
		func() { rv.Set(2) },
		func() {
			if tag, _, ok := rv.StartUpdate(); ok {
				rv.FinishUpdate(tag, false)
			}
		},
	}
	for _, op := range ops {
		op()
		local, remote := rv.Counters()
		if local < remote {
			t.Fatalf("invariant violated: local=%d < remote=%d", local, remote)
		}
	}
}
