// Package instancedriver is the narrow external-collaborator contract
// for talking to an instance driver process: setting parameters and
// desired play state over HTTP, and consuming its server-sent event
// stream. The wire protocol of any individual driver (USB HID, serial,
// OSC, vendor HTTP) is out of scope per spec.md §1 — this package only
// speaks the driver's own HTTP control-plane API, the same way the
// teacher's remoteAgent only speaks the harpoon agent's v0 HTTP API.
package instancedriver

import "encoding/json"

// JsonObject is a free-form JSON object, used for instance parameters.
type JsonObject = map[string]json.RawMessage

// PlayStateKind is the tagged-union discriminant for
// DesiredInstancePlayState / ActualInstancePlayState.
type PlayStateKind string

const (
	PlayStateStopped   PlayStateKind = "stopped"
	PlayStatePlaying   PlayStateKind = "playing"
	PlayStateRendering PlayStateKind = "rendering"
)

// DesiredInstancePlayState is what a client (via a TaskActor) wants an
// instance to be doing.
type DesiredInstancePlayState struct {
	Kind     PlayStateKind `json:"kind"`
	PlayId   string        `json:"play_id,omitempty"`
	RenderId string        `json:"render_id,omitempty"`
	Length   float64       `json:"length_seconds,omitempty"`
}

// ActualInstancePlayState is what the driver reports the instance is
// actually doing, paired with media position.
type ActualInstancePlayState struct {
	Desired  DesiredInstancePlayState `json:"desired"`
	Current  PlayStateKind            `json:"current"`
	MediaPos float64                  `json:"media_position_seconds"`
}
