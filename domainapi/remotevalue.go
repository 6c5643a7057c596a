package domainapi

import (
	"sync"
	"time"
)

// RemoteValue wraps a locally-owned value with two monotonic counters,
// local and remote, used to drive single-flight replication of that
// value to a remote collaborator (a driver, an engine). The zero value
// is not usable; construct with NewRemoteValue.
//
// Invariants (spec.md §4.1, §8 invariants 1-3):
//   - local >= remote >= 0 always.
//   - after MarkModified, local > remote (remote reset to 0).
//   - StartUpdate returns a snapshot only when not already pushing and
//     local != remote; it sets the in-flight flag.
//   - FinishUpdate clears the in-flight flag and, iff ok, sets
//     remote = seen. A concurrent MarkModified during the push leaves
//     local > seen, so the dirty flag survives the round trip.
type RemoteValue[T any] struct {
	mu                sync.Mutex
	value             T
	local             uint64
	remote            uint64
	updateInProgress  bool
	lastModified      time.Time
	clock             Clock
}

// NewRemoteValue constructs a RemoteValue seeded with v: local=1,
// remote=0, so the first StartUpdate immediately has something to push.
func NewRemoteValue[T any](clock Clock, v T) *RemoteValue[T] {
	if clock == nil {
		clock = SystemClock{}
	}
	return &RemoteValue[T]{
		value:        v,
		local:        1,
		remote:       0,
		clock:        clock,
		lastModified: clock.Now(),
	}
}

// Get returns the current locally-owned value.
func (r *RemoteValue[T]) Get() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Set replaces the value and marks it modified.
func (r *RemoteValue[T]) Set(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = v
	r.markModifiedLocked()
}

// MarkModified advances local and resets remote to 0, guaranteeing the
// next StartUpdate fires even if local wrapped back to the old remote.
func (r *RemoteValue[T]) MarkModified() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markModifiedLocked()
}

func (r *RemoteValue[T]) markModifiedLocked() {
	r.local++
	r.remote = 0
	r.lastModified = r.clock.Now()
}

// StartUpdate returns a (tag, snapshot) pair iff no update is currently
// in flight and local != remote, and marks an update in flight. The tag
// must be handed back to FinishUpdate unchanged.
func (r *RemoteValue[T]) StartUpdate() (tag uint64, snapshot T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateInProgress || r.local == r.remote {
		var zero T
		return 0, zero, false
	}
	r.updateInProgress = true
	return r.local, r.value, true
}

// FinishUpdate clears the in-flight flag. If ok, remote is advanced to
// seen; a concurrent MarkModified during the push (which bumped local
// further) leaves local > seen, so the next tick re-enqueues.
func (r *RemoteValue[T]) FinishUpdate(seen uint64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateInProgress = false
	if ok {
		r.remote = seen
	}
}

// Quiescent reports whether local == remote: no push is pending or in
// flight.
func (r *RemoteValue[T]) Quiescent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local == r.remote
}

// InProgress reports whether an update is currently in flight.
func (r *RemoteValue[T]) InProgress() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateInProgress
}

// Counters returns the current (local, remote) pair, for tests and
// diagnostics.
func (r *RemoteValue[T]) Counters() (local, remote uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local, r.remote
}
