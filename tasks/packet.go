package tasks

import (
	"encoding/json"
	"time"

	"github.com/audiocloud/domain-server/domainapi"
)

// DiffStamped pairs a value with its offset from a packet's base
// timestamp, grounded on
// original_source/.../tasks/task/packet_handling.rs.
type DiffStamped[T any] struct {
	Delta time.Duration
	Value T
}

// PadMetering is one peak-meter reading for a node pad.
type PadMetering struct {
	Peak float64 `json:"peak"`
	RMS  float64 `json:"rms"`
}

// CompressedAudio is one compressed-audio frame destined for streaming
// clients; the codec itself is an external collaborator (spec.md §1).
type CompressedAudio struct {
	PlayId domainapi.PlayId
	Data   []byte
}

// StreamingPacket is a task's rolling telemetry buffer (spec.md §3,
// §4.4). Flushed by Actor's tick on an age or frame-count threshold.
type StreamingPacket struct {
	CreatedAt        time.Time
	PadMetering      map[domainapi.NodePadId][]DiffStamped[PadMetering]
	InstanceMetering map[domainapi.InstanceId][]DiffStamped[json.RawMessage]
	Audio            []DiffStamped[CompressedAudio]
}

// newPacket starts a fresh, empty packet stamped at now.
func newPacket(now time.Time) StreamingPacket {
	return StreamingPacket{
		CreatedAt:        now,
		PadMetering:      map[domainapi.NodePadId][]DiffStamped[PadMetering]{},
		InstanceMetering: map[domainapi.InstanceId][]DiffStamped[json.RawMessage]{},
	}
}

func (p *StreamingPacket) appendPadMetering(pad domainapi.NodePadId, now time.Time, v PadMetering) {
	p.PadMetering[pad] = append(p.PadMetering[pad], DiffStamped[PadMetering]{Delta: now.Sub(p.CreatedAt), Value: v})
}

func (p *StreamingPacket) appendInstanceMetering(id domainapi.InstanceId, now time.Time, reports json.RawMessage) {
	p.InstanceMetering[id] = append(p.InstanceMetering[id], DiffStamped[json.RawMessage]{Delta: now.Sub(p.CreatedAt), Value: reports})
}

func (p *StreamingPacket) appendAudio(now time.Time, audio CompressedAudio) {
	p.Audio = append(p.Audio, DiffStamped[CompressedAudio]{Delta: now.Sub(p.CreatedAt), Value: audio})
}

func (p *StreamingPacket) audioFrameCount() int {
	return len(p.Audio)
}
