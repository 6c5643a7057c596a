// Package domainconfig defines the domain configuration surface
// (spec.md §6): the authoritative snapshot delivered by the reconciler,
// which supervisors diff against rather than re-instantiate from.
// Style grounded on the teacher's harpoon-configstore/lib (JobConfig /
// TaskConfig with Valid() methods).
package domainconfig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/audiocloud/domain-server/domainapi"
)

// DriverKind is a closed enum of instance driver transports. Only
// DriverHTTP is actually implemented by instancedriver.Client in this
// repository; the others are recognized and routed to the same Client
// interface, future driver transports being an external collaborator
// per spec.md §1. Grounded on
// original_source/rust/api/src/instance/driver/config/{http,osc}.rs.
type DriverKind string

const (
	DriverHTTP   DriverKind = "http"
	DriverOSC    DriverKind = "osc"
	DriverUSBHID DriverKind = "usb_hid"
	DriverSerial DriverKind = "serial"
)

// PowerDep names another instance that supplies this instance's power,
// plus the channel on that PDU this instance is wired to.
type PowerDep struct {
	Instance domainapi.InstanceId `json:"instance"`
	Channel  string               `json:"channel"`
}

// MediaCap marks an instance capable of play/render, i.e. it has a
// media controller.
type MediaCap struct {
	Capable bool `json:"capable"`
}

// InstanceConfig is one entry of DomainConfig.Instances.
type InstanceConfig struct {
	Id           domainapi.InstanceId `json:"id"`
	Model        string               `json:"model"`
	DriverKind   DriverKind           `json:"driver_kind"`
	DriverConfig map[string]string    `json:"driver_config"`
	Power        *PowerDep            `json:"power,omitempty"`
	Media        *MediaCap            `json:"media,omitempty"`
}

func (c InstanceConfig) Valid() error {
	var errs []string
	if c.Model == "" {
		errs = append(errs, "model not set")
	}
	switch c.DriverKind {
	case DriverHTTP, DriverOSC, DriverUSBHID, DriverSerial:
	default:
		errs = append(errs, fmt.Sprintf("unknown driver kind %q", c.DriverKind))
	}
	if len(errs) > 0 {
		return fmt.Errorf("instance %s: %s", c.Id, strings.Join(errs, "; "))
	}
	return nil
}

// CommandSourceKind discriminates the CommandSource tagged union.
type CommandSourceKind string

const (
	CommandSourceDisabled CommandSourceKind = "disabled"
	CommandSourceKafka    CommandSourceKind = "kafka"
	CommandSourceNATS     CommandSourceKind = "nats"
)

// CommandSource configures where client/engine commands arrive from
// outside the process. Only the contract fields are modeled; no
// client of either kind consumes commands in this repository (see
// DESIGN.md) — engine/client command ingestion is out of scope per
// spec.md §1, so CommandSource is parsed into this struct but neither
// checked by DomainConfig.Valid nor dispatched.
type CommandSource struct {
	Kind    CommandSourceKind `json:"kind"`
	Topic   string            `json:"topic,omitempty"`
	Brokers []string          `json:"brokers,omitempty"`
	User    string            `json:"user,omitempty"`
	Pw      string            `json:"pw,omitempty"`
	Offset  string            `json:"offset,omitempty"`
}

// EventSinkKind discriminates the EventSink tagged union.
type EventSinkKind string

const (
	EventSinkDisabled EventSinkKind = "disabled"
	EventSinkLog      EventSinkKind = "log"
	EventSinkKafka    EventSinkKind = "kafka"
	EventSinkNATS     EventSinkKind = "nats"
)

// EventSink configures where NotifyDomainConfiguration-visible events
// are additionally published, beyond the in-process event bus.
type EventSink struct {
	Kind    EventSinkKind `json:"kind"`
	Topic   string        `json:"topic,omitempty"`
	Brokers []string      `json:"brokers,omitempty"`
}

// TaskDefaults configures StreamingPacket flush thresholds for tasks
// that don't override them.
type TaskDefaults struct {
	MaxPacketAgeMs        int `json:"max_packet_age_ms"`
	MaxPacketAudioFrames  int `json:"max_packet_audio_frames"`
}

// SourceKind discriminates where DomainConfig itself was loaded from,
// supplementing the distilled spec with
// original_source/.../config/{cloud,file}.rs.
type SourceKind string

const (
	SourceFile  SourceKind = "file"
	SourceCloud SourceKind = "cloud"
)

// Source describes where the config blob came from, for diagnostics
// and for cloud-source refresh.
type Source struct {
	Kind SourceKind `json:"kind"`
	URI  string     `json:"uri"`
}

// DomainConfig is the authoritative snapshot delivered by the
// reconciler (spec.md §6).
type DomainConfig struct {
	DomainId      string           `json:"domain_id"`
	Instances     []InstanceConfig `json:"instances"`
	CommandSource CommandSource    `json:"command_source"`
	EventSink     EventSink        `json:"event_sink"`
	TaskDefaults  TaskDefaults     `json:"task_defaults"`
	Source        Source           `json:"-"`
}

// Valid performs structural validation, so a malformed config is
// rejected at load time rather than partway through reconciliation
// (spec.md §7 "Fatal conditions... config load failure aborts
// initialization").
func (c DomainConfig) Valid() error {
	var errs []string
	if c.DomainId == "" {
		errs = append(errs, "domain_id not set")
	}
	seen := map[domainapi.InstanceId]bool{}
	for i, inst := range c.Instances {
		if err := inst.Valid(); err != nil {
			errs = append(errs, fmt.Sprintf("instance %d: %s", i, err))
		}
		if seen[inst.Id] {
			errs = append(errs, fmt.Sprintf("instance %d: duplicate id %s", i, inst.Id))
		}
		seen[inst.Id] = true
	}
	if c.TaskDefaults.MaxPacketAgeMs <= 0 {
		errs = append(errs, "task_defaults.max_packet_age_ms must be positive")
	}
	if c.TaskDefaults.MaxPacketAudioFrames <= 0 {
		errs = append(errs, "task_defaults.max_packet_audio_frames must be positive")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// InstanceById returns the config entry for id, if present.
func (c DomainConfig) InstanceById(id domainapi.InstanceId) (InstanceConfig, bool) {
	for _, inst := range c.Instances {
		if inst.Id == id {
			return inst, true
		}
	}
	return InstanceConfig{}, false
}
