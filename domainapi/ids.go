// Package domainapi holds the value types, error taxonomy and
// reconciliation primitives shared by every domain server component:
// identifiers, RemoteValue, RequestTracker, and the monotonic clock
// seam. Nothing in this package owns goroutines; it is pure data and
// helper logic, consumed by the actors in fixedinstances and tasks.
package domainapi

import "fmt"

// InstanceId identifies a fixed instance by its manufacturer, model and
// serial number. The triple is totally ordered and safe as a map key.
type InstanceId struct {
	Manufacturer string
	Model        string
	Serial       string
}

func NewInstanceId(manufacturer, model, serial string) InstanceId {
	return InstanceId{Manufacturer: manufacturer, Model: model, Serial: serial}
}

func (id InstanceId) String() string {
	return fmt.Sprintf("%s/%s/%s", id.Manufacturer, id.Model, id.Serial)
}

func (id InstanceId) Less(other InstanceId) bool {
	if id.Manufacturer != other.Manufacturer {
		return id.Manufacturer < other.Manufacturer
	}
	if id.Model != other.Model {
		return id.Model < other.Model
	}
	return id.Serial < other.Serial
}

// AppId names the application that owns a task.
type AppId string

// TaskId identifies a task by owning app plus a task name unique within
// that app.
type TaskId struct {
	App  AppId
	Task string
}

func NewTaskId(app AppId, task string) TaskId {
	return TaskId{App: app, Task: task}
}

func (id TaskId) String() string {
	return fmt.Sprintf("%s/%s", id.App, id.Task)
}

func (id TaskId) Less(other TaskId) bool {
	if id.App != other.App {
		return id.App < other.App
	}
	return id.Task < other.Task
}

// MediaObjectId identifies a media object referenced by a task spec.
type MediaObjectId string

// PlayId identifies a single play session requested against a task.
type PlayId string

// RenderId identifies a single render session requested against a task.
type RenderId string

// ClientId identifies a connected API client (user or service account).
type ClientId string

// ClientSocketId identifies one socket connection belonging to a client;
// a client may hold more than one concurrent socket.
type ClientSocketId struct {
	Client ClientId
	Socket string
}

func (id ClientSocketId) String() string {
	return fmt.Sprintf("%s/%s", id.Client, id.Socket)
}

// NodePadId identifies an input or output pad on a node within a task's
// audio graph.
type NodePadId struct {
	Node string
	Pad  string
}

func (id NodePadId) String() string {
	return fmt.Sprintf("%s:%s", id.Node, id.Pad)
}

func (id NodePadId) Less(other NodePadId) bool {
	if id.Node != other.Node {
		return id.Node < other.Node
	}
	return id.Pad < other.Pad
}
