package tasks

import "github.com/audiocloud/domain-server/domainapi"

// EngineDesiredStateKind discriminates EngineDesiredState.
type EngineDesiredStateKind string

const (
	EngineDesiredIdle   EngineDesiredStateKind = "idle"
	EngineDesiredPlay   EngineDesiredStateKind = "play"
	EngineDesiredRender EngineDesiredStateKind = "render"
)

// EngineDesiredState is what a TaskActor asks the engine to be doing.
type EngineDesiredState struct {
	Kind EngineDesiredStateKind
	Play *PlaySpec
	Render *RenderSpec
}

// EngineActualStateKind discriminates EngineActualState.
type EngineActualStateKind string

const (
	EngineActualIdle      EngineActualStateKind = "idle"
	EngineActualPlaying   EngineActualStateKind = "playing"
	EngineActualRendering EngineActualStateKind = "rendering"
)

// EngineActualState is what the engine reports back, consulted by
// StopPlayTask/CancelRenderTask to validate the request (spec.md §4.4
// S3).
type EngineActualState struct {
	Kind     EngineActualStateKind
	PlayId   domainapi.PlayId
	RenderId domainapi.RenderId
}

// EngineCommandKind discriminates EngineCommand.
type EngineCommandKind string

const (
	EngineCommandStopPlay     EngineCommandKind = "stop_play"
	EngineCommandCancelRender EngineCommandKind = "cancel_render"
)

// EngineCommand is a one-shot instruction enqueued against the engine,
// distinct from a desired-state change.
type EngineCommand struct {
	Kind     EngineCommandKind
	PlayId   domainapi.PlayId
	RenderId domainapi.RenderId
}

// Engine is the per-task DSP engine collaborator contract (spec.md
// §1 Non-goals: "the DSP graph renderer itself" is out of scope — this
// interface is the narrow control surface a TaskActor drives, grounded
// on original_source/rust/audio-engine/src/events.rs for the event
// shapes it reports back via EngineEvent).
type Engine interface {
	SetDesiredState(desired EngineDesiredState) error
	Enqueue(cmd EngineCommand) error
	ActualPlayState() EngineActualState
	// ShouldBePlaying reports whether the engine currently believes
	// playId should be the active play session, used to drop stale
	// CompressedAudio frames from a prior play session (spec.md §4.4).
	ShouldBePlaying(playId domainapi.PlayId) bool
}

// EngineEventKind discriminates EngineEvent.
type EngineEventKind string

const (
	EngineEventPeakMeters      EngineEventKind = "peak_meters"
	EngineEventCompressedAudio EngineEventKind = "compressed_audio"
	EngineEventStateChanged    EngineEventKind = "state_changed"
)

// EngineEvent is delivered by the engine collaborator, tagged by
// task id, carrying peak meters, compressed audio, or state
// transitions (spec.md §6).
type EngineEvent struct {
	TaskId     domainapi.TaskId
	Kind       EngineEventKind
	Pad        domainapi.NodePadId
	Meter      PadMetering
	PlayId     domainapi.PlayId
	Audio      CompressedAudio
	NewState   EngineActualState
}

// EngineFactory constructs the Engine collaborator for a single task,
// mirroring instancedriver's per-instance Client: the engine handle is
// scoped to one task's lifetime, created by TasksSupervisor on
// CreateTask and discarded on DeleteTask.
type EngineFactory func(taskId domainapi.TaskId) (Engine, error)

// noopEngine is a minimal stand-in used where no engine collaborator
// is wired (e.g. a task defaults-only test harness); it never actually
// renders anything and always reports Idle, matching the contract-only
// framing of spec.md §1.
type noopEngine struct {
	actual EngineActualState
}

func newNoopEngine(domainapi.TaskId) (Engine, error) {
	return &noopEngine{actual: EngineActualState{Kind: EngineActualIdle}}, nil
}

func (e *noopEngine) SetDesiredState(EngineDesiredState) error { return nil }
func (e *noopEngine) Enqueue(EngineCommand) error               { return nil }
func (e *noopEngine) ActualPlayState() EngineActualState        { return e.actual }
func (e *noopEngine) ShouldBePlaying(domainapi.PlayId) bool     { return false }
