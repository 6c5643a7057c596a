package domainapi

import "fmt"

// TaskNotFoundError is returned when an operation names a TaskId that
// isn't currently owned by the TasksSupervisor.
type TaskNotFoundError struct {
	TaskId TaskId
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskId)
}

// TaskExistsError is returned by CreateTask when the id is already in
// use.
type TaskExistsError struct {
	TaskId TaskId
}

func (e *TaskExistsError) Error() string {
	return fmt.Sprintf("task %s already exists", e.TaskId)
}

// InstanceNotFoundError is returned when an operation names an
// InstanceId not owned by the FixedInstancesSupervisor.
type InstanceNotFoundError struct {
	InstanceId InstanceId
}

func (e *InstanceNotFoundError) Error() string {
	return fmt.Sprintf("instance %s not found", e.InstanceId)
}

// InstanceNotCapableError is returned when an instance is asked to
// perform an operation its configuration doesn't support, e.g. setting
// desired play state on an instance with no media controller.
type InstanceNotCapableError struct {
	InstanceId InstanceId
	Operation  string
}

func (e *InstanceNotCapableError) Error() string {
	return fmt.Sprintf("instance %s not capable of %s", e.InstanceId, e.Operation)
}

// TaskIllegalPlayStateError is returned when a play/render command
// can't be satisfied by the task's current actual state, e.g. a
// StopPlayTask naming a play_id that isn't currently playing.
type TaskIllegalPlayStateError struct {
	TaskId TaskId
	State  string
}

func (e *TaskIllegalPlayStateError) Error() string {
	return fmt.Sprintf("task %s illegal play state: %s", e.TaskId, e.State)
}

// BadGatewayError wraps any downstream driver/engine failure, including
// transport errors, surfaced to a caller that issued a command the
// retry machinery can't silently absorb.
type BadGatewayError struct {
	Err error
}

func (e *BadGatewayError) Error() string {
	return fmt.Sprintf("bad gateway: %s", e.Err)
}

func (e *BadGatewayError) Unwrap() error { return e.Err }

func NewBadGatewayError(err error) *BadGatewayError {
	return &BadGatewayError{Err: err}
}

// SerializationError wraps a structural (de)serialization failure.
type SerializationError struct {
	Detail string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error: %s", e.Detail)
}

// ConfigError wraps a structural configuration failure.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Detail)
}
