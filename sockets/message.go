package sockets

import (
	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/tasks"
)

// MessageKind discriminates DomainServerMessage (spec.md §6).
type MessageKind string

const (
	MessageStreamingPacket MessageKind = "streaming_packet"
	MessageTaskStatus      MessageKind = "task_status"
	MessageCommandAck      MessageKind = "command_ack"
)

// CommandAck acknowledges a client-issued command, successful or not.
type CommandAck struct {
	CommandId string `msgpack:"command_id" json:"command_id"`
	Error     string `msgpack:"error,omitempty" json:"error,omitempty"`
}

// DomainServerMessage is the server→client envelope carrying streaming
// packets, task-status deltas, and command acknowledgements (spec.md
// §6). Field names are shared across both MsgPack and JSON encodings
// via struct tags, matching the teacher's convention of tagging wire
// structs for more than one codec.
type DomainServerMessage struct {
	Kind   MessageKind            `msgpack:"kind" json:"kind"`
	TaskId domainapi.TaskId       `msgpack:"task_id" json:"task_id"`
	Packet *tasks.StreamingPacket `msgpack:"packet,omitempty" json:"packet,omitempty"`
	Status *tasks.TaskSummary     `msgpack:"status,omitempty" json:"status,omitempty"`
	Ack    *CommandAck            `msgpack:"ack,omitempty" json:"ack,omitempty"`
}
