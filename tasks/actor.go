package tasks

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/eventbus"
	"github.com/audiocloud/domain-server/fixedinstances"
	"github.com/audiocloud/domain-server/instrumentation"
)

// packetTick is how often Actor checks its flush thresholds. Small
// relative to typical max_packet_age_ms so age-based flush fires close
// to its deadline (spec.md §4.4, §8 S5).
const packetTick = 20 * time.Millisecond

// FixedInstanceBinder is the slice of FixedInstancesSupervisor a
// TaskActor needs, looked up and held by the TasksSupervisor that
// constructs each Actor — never a raw actor handle (spec.md §9).
type FixedInstanceBinder interface {
	NotifyTaskSpec(taskId domainapi.TaskId, fixedInstances []domainapi.InstanceId, binding fixedinstances.TaskBinding)
	NotifyTaskDeleted(taskId domainapi.TaskId)
}

// InstancesConnected reports whether every named instance is currently
// Connected, used to compute TaskState.InstancesReady (spec.md §4.4
// "update recomputes whether all bound instances are Connected").
type InstancesConnected func(ids []domainapi.InstanceId) bool

// Actor is a TaskActor: per-task ownership of engine interaction,
// bound-instance binding, media readiness and the rolling streaming
// packet. Grounded on the teacher's basicScheduler
// (harpoon-scheduler/scheduler.go): one mailbox loop answering typed
// request/response channels, generalized from "schedule one job
// against a remote executor" to "reconcile one task's desired state
// across engine and instances".
type Actor struct {
	id        domainapi.TaskId
	spec      TaskSpec
	engine    Engine
	instances FixedInstanceBinder
	connected InstancesConnected
	media     *MediaObjects
	bus       *eventbus.Bus
	log       *zap.SugaredLogger
	clock     domainapi.Clock

	maxPacketAge    time.Duration
	maxPacketFrames int

	play        chan playRequest
	render      chan renderRequest
	stopPlay    chan stopPlayRequest
	cancelRender chan cancelRenderRequest
	mediaState  chan notifyMediaTaskState
	routing     chan notifyFixedInstanceRouting
	reports     chan notifyFixedInstanceReports
	engineEvent chan notifyEngineEvent
	snapshot    chan snapshotRequest
	quit        chan chan struct{}
}

// Deps bundles a TaskActor's external collaborators.
type Deps struct {
	Id              domainapi.TaskId
	Spec            TaskSpec
	Engine          Engine
	Instances       FixedInstanceBinder
	Connected       InstancesConnected
	Bus             *eventbus.Bus
	Log             *zap.SugaredLogger
	Clock           domainapi.Clock
	MaxPacketAgeMs  int
	MaxPacketFrames int
}

func NewActor(d Deps) *Actor {
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	clock := d.Clock
	if clock == nil {
		clock = domainapi.SystemClock{}
	}
	maxAge := time.Duration(d.MaxPacketAgeMs) * time.Millisecond
	if maxAge <= 0 {
		maxAge = 200 * time.Millisecond
	}
	maxFrames := d.MaxPacketFrames
	if maxFrames <= 0 {
		maxFrames = 64
	}

	a := &Actor{
		id:              d.Id,
		spec:            d.Spec,
		engine:          d.Engine,
		instances:       d.Instances,
		connected:       d.Connected,
		media:           NewMediaObjects(d.Spec.MediaObjects),
		bus:             d.Bus,
		log:             log.With("task_id", d.Id.String()),
		clock:           clock,
		maxPacketAge:    maxAge,
		maxPacketFrames: maxFrames,

		play:         make(chan playRequest),
		render:       make(chan renderRequest),
		stopPlay:     make(chan stopPlayRequest),
		cancelRender: make(chan cancelRenderRequest),
		mediaState:   make(chan notifyMediaTaskState),
		routing:      make(chan notifyFixedInstanceRouting),
		reports:      make(chan notifyFixedInstanceReports),
		engineEvent:  make(chan notifyEngineEvent),
		snapshot:     make(chan snapshotRequest),
		quit:         make(chan chan struct{}),
	}
	go a.run()
	return a
}

func (a *Actor) Stop() {
	q := make(chan struct{})
	a.quit <- q
	<-q
}

func (a *Actor) PlayTask(play PlaySpec) error {
	req := playRequest{play: play, resp: make(chan error, 1)}
	a.play <- req
	return <-req.resp
}

func (a *Actor) RenderTask(render RenderSpec) error {
	req := renderRequest{render: render, resp: make(chan error, 1)}
	a.render <- req
	return <-req.resp
}

func (a *Actor) StopPlayTask(playId domainapi.PlayId) error {
	req := stopPlayRequest{playId: playId, resp: make(chan error, 1)}
	a.stopPlay <- req
	return <-req.resp
}

func (a *Actor) CancelRenderTask(renderId domainapi.RenderId) error {
	req := cancelRenderRequest{renderId: renderId, resp: make(chan error, 1)}
	a.cancelRender <- req
	return <-req.resp
}

func (a *Actor) NotifyMediaTaskState(media map[domainapi.MediaObjectId]MediaObject) {
	a.mediaState <- notifyMediaTaskState{media: media}
}

func (a *Actor) NotifyFixedInstanceRouting(routing map[domainapi.InstanceId]json.RawMessage) {
	a.routing <- notifyFixedInstanceRouting{routing: routing}
}

func (a *Actor) NotifyFixedInstanceReports(instanceId domainapi.InstanceId, reports json.RawMessage) {
	a.reports <- notifyFixedInstanceReports{instanceId: instanceId, reports: reports}
}

func (a *Actor) NotifyEngineEvent(ev EngineEvent) {
	a.engineEvent <- notifyEngineEvent{event: ev}
}

func (a *Actor) Snapshot() TaskSummary {
	req := snapshotRequest{resp: make(chan TaskSummary, 1)}
	a.snapshot <- req
	return <-req.resp
}

func (a *Actor) run() {
	state := TaskState{Kind: TaskIdle}
	packet := newPacket(a.clock.Now())

	ticker := time.NewTicker(packetTick)
	defer ticker.Stop()

	a.pushBinding(state)

	for {
		select {
		case req := <-a.play:
			state.Kind = TaskPlaying
			state.PlayId = req.play.PlayId
			a.pushBinding(state)
			if err := a.engine.SetDesiredState(EngineDesiredState{Kind: EngineDesiredPlay, Play: &req.play}); err != nil {
				req.resp <- domainapi.NewBadGatewayError(err)
				continue
			}
			req.resp <- nil

		case req := <-a.render:
			state.Kind = TaskRendering
			state.RenderId = req.render.RenderId
			a.pushBinding(state)
			if err := a.engine.SetDesiredState(EngineDesiredState{Kind: EngineDesiredRender, Render: &req.render}); err != nil {
				req.resp <- domainapi.NewBadGatewayError(err)
				continue
			}
			req.resp <- nil

		case req := <-a.stopPlay:
			actual := a.engine.ActualPlayState()
			if actual.Kind != EngineActualPlaying || actual.PlayId != req.playId {
				req.resp <- &domainapi.TaskIllegalPlayStateError{TaskId: a.id, State: string(actual.Kind)}
				continue
			}
			if err := a.engine.Enqueue(EngineCommand{Kind: EngineCommandStopPlay, PlayId: req.playId}); err != nil {
				req.resp <- domainapi.NewBadGatewayError(err)
				continue
			}
			state.Kind = TaskIdle
			a.pushBinding(state)
			req.resp <- nil

		case req := <-a.cancelRender:
			actual := a.engine.ActualPlayState()
			if actual.Kind != EngineActualRendering || actual.RenderId != req.renderId {
				req.resp <- &domainapi.TaskIllegalPlayStateError{TaskId: a.id, State: string(actual.Kind)}
				continue
			}
			if err := a.engine.Enqueue(EngineCommand{Kind: EngineCommandCancelRender, RenderId: req.renderId}); err != nil {
				req.resp <- domainapi.NewBadGatewayError(err)
				continue
			}
			state.Kind = TaskIdle
			a.pushBinding(state)
			req.resp <- nil

		case msg := <-a.mediaState:
			a.media.UpdateMedia(msg.media)
			state.MediaReady = a.media.Ready()

		case <-a.routing:
			// the routing map is not stored or forwarded; nothing in
			// this actor's state depends on its contents.

		case msg := <-a.reports:
			packet.appendInstanceMetering(msg.instanceId, a.clock.Now(), msg.reports)

		case msg := <-a.engineEvent:
			switch msg.event.Kind {
			case EngineEventPeakMeters:
				packet.appendPadMetering(msg.event.Pad, a.clock.Now(), msg.event.Meter)
			case EngineEventCompressedAudio:
				if a.engine.ShouldBePlaying(msg.event.PlayId) {
					packet.appendAudio(a.clock.Now(), msg.event.Audio)
				}
			case EngineEventStateChanged:
				// the engine's own state transitions are informational
				// here; play/render state is driven by this actor's own
				// commands, not mirrored back from the engine.
			}

		case req := <-a.snapshot:
			req.resp <- TaskSummary{Id: a.id, Spec: a.spec, State: state}

		case <-ticker.C:
			if a.connected != nil {
				state.InstancesReady = a.connected(a.spec.FixedInstances)
			}
			now := a.clock.Now()
			age := now.Sub(packet.CreatedAt)
			if age >= a.maxPacketAge || packet.audioFrameCount() >= a.maxPacketFrames {
				flushed := packet
				packet = newPacket(now)
				if a.bus != nil {
					a.bus.Publish(eventbus.TopicStreamingPacket, eventbus.NotifyStreamingPacket{TaskId: a.id, Packet: &flushed})
				}
				instrumentation.IncPacketsFlushed(1)
			}

		case q := <-a.quit:
			close(q)
			return
		}
	}
}

// pushBinding derives this task's current TaskBinding for its bound
// instances and pushes it down via FixedInstanceBinder, and publishes
// NotifyTaskSpecChanged so TasksSupervisor can keep its membership
// index current (spec.md §4.2 NotifyTaskSpec, §8 invariant 5).
func (a *Actor) pushBinding(state TaskState) {
	binding := fixedinstances.TaskBinding{TaskId: a.id}
	switch state.Kind {
	case TaskPlaying:
		binding.Kind = fixedinstances.BindingPlaying
		binding.PlayId = state.PlayId
	case TaskRendering:
		binding.Kind = fixedinstances.BindingRendering
		binding.RenderId = state.RenderId
	default:
		binding.Kind = fixedinstances.BindingIdle
	}

	if a.instances != nil {
		a.instances.NotifyTaskSpec(a.id, a.spec.FixedInstances, binding)
	}
	if a.bus != nil {
		a.bus.Publish(eventbus.TopicTaskSpecChanged, eventbus.NotifyTaskSpecChanged{
			TaskId: a.id,
			Spec:   eventbus.TaskSpecSnapshot{FixedInstances: a.spec.FixedInstances},
		})
	}
}
