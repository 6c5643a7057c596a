package eventbus

import (
	"encoding/json"

	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/domainconfig"
)

// NotifyDomainConfiguration carries a freshly-reconciled config
// snapshot; every supervisor subscribed to it diffs against its own
// current state (spec.md §4.3).
type NotifyDomainConfiguration struct {
	Config domainconfig.DomainConfig
}

// NotifyFixedInstanceReports carries a raw report payload from a
// driver, fanned out by instance id (spec.md §4.2, §4.3).
type NotifyFixedInstanceReports struct {
	InstanceId domainapi.InstanceId
	Reports    json.RawMessage
}

// NotifyTaskDeleted is broadcast once a task is torn down, so
// SocketsSupervisor can drop it from client memberships (spec.md §4.6).
// Instance actors learn of the deletion through a direct
// FixedInstanceBinder.NotifyTaskDeleted call, not through the bus.
type NotifyTaskDeleted struct {
	TaskId domainapi.TaskId
}

// NotifyTaskSpecChanged is broadcast whenever a task's binding is
// pushed, so TasksSupervisor can rebuild its membership index (spec.md
// §4.5). Instance actors are (re)bound through a direct
// FixedInstanceBinder.NotifyTaskSpec call, not through the bus.
type NotifyTaskSpecChanged struct {
	TaskId domainapi.TaskId
	Spec   TaskSpecSnapshot
}

// TaskSpecSnapshot is the minimal slice of a task spec every consumer
// of NotifyTaskSpecChanged actually needs: which instances the task
// currently binds.
type TaskSpecSnapshot struct {
	FixedInstances []domainapi.InstanceId
}

// NotifyTaskSecurity is broadcast whenever a task's security map
// changes (spec.md §4.6).
type NotifyTaskSecurity struct {
	TaskId   domainapi.TaskId
	Security map[domainapi.ClientId]uint32
}

// NotifyStreamingPacket is emitted by a TaskActor's flush tick (spec.md
// §4.4) and consumed by SocketsSupervisor to fan out to subscribed
// clients.
type NotifyStreamingPacket struct {
	TaskId domainapi.TaskId
	Packet any // *tasks.StreamingPacket; kept untyped here to avoid an eventbus<->tasks import cycle.
}
