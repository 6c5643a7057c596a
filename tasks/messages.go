package tasks

import (
	"encoding/json"

	"github.com/audiocloud/domain-server/domainapi"
)

type playRequest struct {
	play PlaySpec
	resp chan error
}

type renderRequest struct {
	render RenderSpec
	resp   chan error
}

type stopPlayRequest struct {
	playId domainapi.PlayId
	resp   chan error
}

type cancelRenderRequest struct {
	renderId domainapi.RenderId
	resp     chan error
}

// notifyMediaTaskState implements NotifyMediaTaskState: merges into
// media_objects, triggers an update (spec.md §4.4).
type notifyMediaTaskState struct {
	media map[domainapi.MediaObjectId]MediaObject
}

// notifyFixedInstanceRouting carries NotifyFixedInstanceRouting. The
// actor accepts it and discards the map; it keeps no routing map of
// its own.
type notifyFixedInstanceRouting struct {
	routing map[domainapi.InstanceId]json.RawMessage
}

// notifyFixedInstanceReports implements NotifyFixedInstanceReports:
// appends a DiffStamped report into packet.instance_metering.
type notifyFixedInstanceReports struct {
	instanceId domainapi.InstanceId
	reports    json.RawMessage
}

type notifyEngineEvent struct {
	event EngineEvent
}

type snapshotRequest struct {
	resp chan TaskSummary
}
