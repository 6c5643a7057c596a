package tasks

import (
	"sync"

	"github.com/audiocloud/domain-server/domainapi"
)

// MediaObject is one entry of TaskMediaObjects, grounded on
// original_source/.../tasks/task_media_objects.rs: a media object is
// "ready" once it has a resolved path.
type MediaObject struct {
	Path     *string
	Size     int64
	Checksum string
}

// MediaObjects aggregates media readiness for a task (spec.md §3
// TaskMediaObjects, §8 invariant 4: monotone on resolved media — once
// an object acquires a path, it keeps one across subsequent merges).
type MediaObjects struct {
	mu      sync.Mutex
	objects map[domainapi.MediaObjectId]MediaObject
}

func NewMediaObjects(refs []domainapi.MediaObjectId) *MediaObjects {
	objects := make(map[domainapi.MediaObjectId]MediaObject, len(refs))
	for _, id := range refs {
		objects[id] = MediaObject{}
	}
	return &MediaObjects{objects: objects}
}

// UpdateMedia merges update into the current set without dropping
// locally-pending entries or regressing a resolved path to unresolved,
// and reports whether the waiting-for-media set changed.
func (m *MediaObjects) UpdateMedia(update map[domainapi.MediaObjectId]MediaObject) (changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := m.waitingLocked()
	for id, incoming := range update {
		current, ok := m.objects[id]
		if !ok {
			m.objects[id] = incoming
			continue
		}
		if current.Path != nil && incoming.Path == nil {
			// never regress a resolved object back to unresolved.
			incoming.Path = current.Path
		}
		m.objects[id] = incoming
	}
	after := m.waitingLocked()
	return !sameSet(before, after)
}

// WaitingForMedia returns every MediaObjectId that doesn't yet have a
// resolved path.
func (m *MediaObjects) WaitingForMedia() []domainapi.MediaObjectId {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waitingLocked()
}

func (m *MediaObjects) waitingLocked() []domainapi.MediaObjectId {
	var waiting []domainapi.MediaObjectId
	for id, obj := range m.objects {
		if obj.Path == nil {
			waiting = append(waiting, id)
		}
	}
	return waiting
}

// Ready reports whether every referenced media object has a path.
func (m *MediaObjects) Ready() bool {
	return len(m.WaitingForMedia()) == 0
}

func sameSet(a, b []domainapi.MediaObjectId) bool {
	if len(a) != len(b) {
		return false
	}
	seen := map[domainapi.MediaObjectId]struct{}{}
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}
