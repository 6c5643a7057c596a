// Package tasks implements the Task Supervisor and Task Actor subsystem
// (spec.md §4.4-4.5): per-task play/render lifecycle, aggregation of
// engine and instance telemetry into streaming packets, and readiness
// tracking against bound instances and referenced media.
package tasks

import (
	"encoding/json"
	"time"

	"github.com/audiocloud/domain-server/domainapi"
)

// PlaySpec is the client-supplied intent behind PlayTask: an opaque
// mixer/graph description handed straight to the engine, since the DSP
// graph itself is an external collaborator (spec.md §1 Non-goals). The
// instances bound are the task's own TaskSpec.FixedInstances, fixed at
// CreateTask.
type PlaySpec struct {
	PlayId domainapi.PlayId
	Graph  json.RawMessage
}

// RenderSpec is the client-supplied intent behind RenderTask.
type RenderSpec struct {
	RenderId domainapi.RenderId
	Length   float64
	Graph    json.RawMessage
}

// TaskPlayStateKind discriminates TaskState's play/render lifecycle.
type TaskPlayStateKind string

const (
	TaskIdle      TaskPlayStateKind = "idle"
	TaskPlaying   TaskPlayStateKind = "playing"
	TaskRendering TaskPlayStateKind = "rendering"
)

// TaskState is the task's locally-tracked play/render state plus
// readiness flags, mirroring spec.md §3 SupervisedTask.state.
type TaskState struct {
	Kind             TaskPlayStateKind
	PlayId           domainapi.PlayId
	RenderId         domainapi.RenderId
	InstancesReady   bool
	MediaReady       bool
}

// TaskSpec is the task's reservation: which instances it binds and
// which media objects its graph references.
type TaskSpec struct {
	FixedInstances []domainapi.InstanceId
	MediaObjects   []domainapi.MediaObjectId
	ReservedFrom   time.Time
	ReservedTo     time.Time
}

// SecurityMap grants per-client access levels to a task, mirroring
// eventbus.NotifyTaskSecurity's payload shape.
type SecurityMap map[domainapi.ClientId]uint32

// TaskSummary is the read-through snapshot returned by
// GetTaskWithStatusAndSpec / ListTasks.
type TaskSummary struct {
	Id    domainapi.TaskId
	Spec  TaskSpec
	State TaskState
}
