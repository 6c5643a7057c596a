package fixedinstances

import (
	"encoding/json"

	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/instancedriver"
)

// setParametersRequest implements SetInstanceParameters (spec.md §4.2):
// deep-merge full_object into current parameters and mark modified.
type setParametersRequest struct {
	params instancedriver.JsonObject
	resp   chan error
}

// mergeParametersRequest implements MergeInstanceParameters: overwrite
// only parameters[parameter][channel] iff that array index exists.
type mergeParametersRequest struct {
	parameter string
	channel   int
	value     json.RawMessage
	resp      chan error
}

// setDesiredPlayStateRequest implements SetInstanceDesiredPlayState,
// valid only when the instance has a media controller.
type setDesiredPlayStateRequest struct {
	desired instancedriver.DesiredInstancePlayState
	resp    chan error
}

// notifyDriverURL implements NotifyInstanceDriverUrl: update the
// driver client's base URL iff instance_id == self.id.
type notifyDriverURL struct {
	instanceId domainapi.InstanceId
	baseURL    string
}

// notifyTaskSpec implements NotifyTaskSpec: bind iff spec references
// self.id, trigger update.
type notifyTaskSpec struct {
	taskId         domainapi.TaskId
	fixedInstances []domainapi.InstanceId
	binding        TaskBinding
}

// notifyTaskDeleted implements NotifyTaskDeleted: clear spec iff bound
// to that task.
type notifyTaskDeleted struct {
	taskId domainapi.TaskId
}

// notifyReports implements NotifyFixedInstanceReports: forward to the
// power controller iff it references instanceId. Nothing else is done
// with the report here; the actor's own driver reports are fanned out
// onto the event bus from its driver stream handler instead.
type notifyReports struct {
	instanceId domainapi.InstanceId
	reports    json.RawMessage
}

// snapshotRequest is an internal read-only query used by
// FixedInstancesSupervisor and tests to observe actor state without
// reaching into it directly.
type snapshotRequest struct {
	resp chan InstanceSnapshot
}

// TaskBinding is the slice of a task spec an instance actor needs: just
// enough to decide its own desired state (playing vs rendering vs
// idle), mirroring spec.md §3's "Option<TaskBinding>".
type TaskBinding struct {
	TaskId   domainapi.TaskId
	Kind     BindingKind
	PlayId   domainapi.PlayId
	RenderId domainapi.RenderId
	Length   float64
}

// BindingKind discriminates what a bound task currently wants from this
// instance.
type BindingKind string

const (
	BindingIdle      BindingKind = "idle"
	BindingPlaying   BindingKind = "playing"
	BindingRendering BindingKind = "rendering"
)

// InstanceSnapshot is a read-only view of a FixedInstanceActor's state,
// used by the supervisor to answer GetInstanceWithStatus-style queries
// and by tests.
type InstanceSnapshot struct {
	Id         domainapi.InstanceId
	Connected  bool
	Parameters instancedriver.JsonObject
	Binding    *TaskBinding
}
