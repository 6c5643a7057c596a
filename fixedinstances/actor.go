// Package fixedinstances implements the Fixed-Instance Supervisor
// subsystem (spec.md §4.2-4.3): a per-instance actor that owns
// parameters, power and play-state reconciliation against a driver,
// and a supervisor that routes messages to instance actors by id.
//
// The mailbox shape is grounded directly on the teacher's stateMachine
// (harpoon-scheduler/state_machine.go): a single loop goroutine owns
// all mutable state and answers request/response channels, generalized
// from "cache a remote agent's container instances" to "own a
// RemoteValue-backed parameter/play-state pair and tick a driver
// client".
package fixedinstances

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/eventbus"
	"github.com/audiocloud/domain-server/instancedriver"
	"github.com/audiocloud/domain-server/instrumentation"
)

// updateInterval is the FixedInstanceActor tick period (spec.md §4.2
// "every 100 ms").
const updateInterval = 100 * time.Millisecond

// driverCallTimeout bounds every outbound driver call (spec.md §5
// "default 5 s").
const driverCallTimeout = 5 * time.Second

// Actor is a FixedInstanceActor: one goroutine owning a single
// instance's connectivity, parameters, desired play state and optional
// power dependency.
type Actor struct {
	id     domainapi.InstanceId
	client instancedriver.Client
	media  *MediaController
	power  *PowerController
	bus    *eventbus.Bus
	log    *zap.SugaredLogger

	baseURL atomic.Value // string

	setParameters       chan setParametersRequest
	mergeParameters     chan mergeParametersRequest
	setDesiredPlayState chan setDesiredPlayStateRequest
	driverURL           chan notifyDriverURL
	taskSpec            chan notifyTaskSpec
	taskDeleted         chan notifyTaskDeleted
	reports             chan notifyReports
	snapshot            chan snapshotRequest
	quit                chan chan struct{}
}

// Deps bundles an actor's external collaborators, constructed by
// FixedInstancesSupervisor.
type Deps struct {
	Id          domainapi.InstanceId
	Client      instancedriver.Client
	Media       *MediaController
	Power       *PowerController
	Bus         *eventbus.Bus
	Log         *zap.SugaredLogger

	// events lets tests inject a driver event stream directly, bypassing
	// runDriverFeed's real subscribe-over-HTTP loop. Production callers
	// leave this nil.
	events <-chan instancedriver.Event
}

// NewActor constructs and starts a FixedInstanceActor.
func NewActor(d Deps) *Actor {
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	a := &Actor{
		id:                  d.Id,
		client:              d.Client,
		media:               d.Media,
		power:               d.Power,
		bus:                 d.Bus,
		log:                 log.With("instance_id", d.Id.String()),
		setParameters:       make(chan setParametersRequest),
		mergeParameters:     make(chan mergeParametersRequest),
		setDesiredPlayState: make(chan setDesiredPlayStateRequest),
		driverURL:           make(chan notifyDriverURL),
		taskSpec:            make(chan notifyTaskSpec),
		taskDeleted:         make(chan notifyTaskDeleted),
		reports:             make(chan notifyReports),
		snapshot:            make(chan snapshotRequest),
		quit:                make(chan chan struct{}),
	}
	a.baseURL.Store(d.Client.BaseURL())

	go a.run(d.events)
	return a
}

// Stop halts the actor's loop and its driver feed.
func (a *Actor) Stop() {
	q := make(chan struct{})
	a.quit <- q
	<-q
}

func (a *Actor) SetInstanceParameters(params instancedriver.JsonObject) error {
	req := setParametersRequest{params: params, resp: make(chan error, 1)}
	a.setParameters <- req
	return <-req.resp
}

func (a *Actor) MergeInstanceParameters(parameter string, channel int, value json.RawMessage) error {
	req := mergeParametersRequest{parameter: parameter, channel: channel, value: value, resp: make(chan error, 1)}
	a.mergeParameters <- req
	return <-req.resp
}

func (a *Actor) SetInstanceDesiredPlayState(desired instancedriver.DesiredInstancePlayState) error {
	req := setDesiredPlayStateRequest{desired: desired, resp: make(chan error, 1)}
	a.setDesiredPlayState <- req
	return <-req.resp
}

func (a *Actor) NotifyInstanceDriverUrl(instanceId domainapi.InstanceId, baseURL string) {
	a.driverURL <- notifyDriverURL{instanceId: instanceId, baseURL: baseURL}
}

func (a *Actor) NotifyTaskSpec(taskId domainapi.TaskId, fixedInstances []domainapi.InstanceId, binding TaskBinding) {
	a.taskSpec <- notifyTaskSpec{taskId: taskId, fixedInstances: fixedInstances, binding: binding}
}

func (a *Actor) NotifyTaskDeleted(taskId domainapi.TaskId) {
	a.taskDeleted <- notifyTaskDeleted{taskId: taskId}
}

func (a *Actor) NotifyFixedInstanceReports(instanceId domainapi.InstanceId, reports json.RawMessage) {
	a.reports <- notifyReports{instanceId: instanceId, reports: reports}
}

func (a *Actor) Snapshot() InstanceSnapshot {
	req := snapshotRequest{resp: make(chan InstanceSnapshot, 1)}
	a.snapshot <- req
	return <-req.resp
}

func (a *Actor) run(injectedEvents <-chan instancedriver.Event) {
	clock := domainapi.SystemClock{}
	parameters := domainapi.NewRemoteValue[instancedriver.JsonObject](clock, instancedriver.JsonObject{})
	desiredPlay := domainapi.NewRemoteValue[instancedriver.DesiredInstancePlayState](clock, instancedriver.DesiredInstancePlayState{Kind: instancedriver.PlayStateStopped})

	connected := false
	var binding *TaskBinding

	var driverEvents <-chan instancedriver.Event
	feedQuit := make(chan struct{})
	if injectedEvents != nil {
		driverEvents = injectedEvents
	} else {
		events := make(chan instancedriver.Event)
		driverEvents = events
		go runDriverFeed(func() string { return a.baseURL.Load().(string) }, a.log, events, feedQuit)
	}
	defer close(feedQuit)

	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

	for {
		select {
		case req := <-a.setParameters:
			merged := mergeJSONObjects(parameters.Get(), req.params)
			parameters.Set(merged)
			req.resp <- nil

		case req := <-a.mergeParameters:
			current := parameters.Get()
			raw, ok := current[req.parameter]
			if !ok {
				req.resp <- nil // unknown parameter silently ignored, spec.md §4.2
				continue
			}
			var arr []json.RawMessage
			if err := json.Unmarshal(raw, &arr); err != nil {
				req.resp <- nil
				continue
			}
			if req.channel < 0 || req.channel >= len(arr) {
				req.resp <- nil // unknown channel silently ignored
				continue
			}
			arr[req.channel] = req.value
			encoded, err := json.Marshal(arr)
			if err != nil {
				req.resp <- fmt.Errorf("encoding merged parameter %q: %w", req.parameter, err)
				continue
			}
			copied := copyJSONObject(current)
			copied[req.parameter] = encoded
			parameters.Set(copied)
			req.resp <- nil

		case req := <-a.setDesiredPlayState:
			if a.media == nil {
				req.resp <- &domainapi.InstanceNotCapableError{InstanceId: a.id, Operation: "set_desired_play_state"}
				continue
			}
			desiredPlay.Set(req.desired)
			req.resp <- nil

		case msg := <-a.driverURL:
			if msg.instanceId == a.id {
				a.baseURL.Store(msg.baseURL)
				a.client.SetBaseURL(msg.baseURL)
			}

		case msg := <-a.taskSpec:
			bound := false
			for _, id := range msg.fixedInstances {
				if id == a.id {
					bound = true
					break
				}
			}
			if bound {
				b := msg.binding
				b.TaskId = msg.taskId
				binding = &b
				if a.power != nil {
					a.power.SetDesired(b.Kind != BindingIdle)
				}
			}

		case msg := <-a.taskDeleted:
			if binding != nil && binding.TaskId == msg.taskId {
				binding = nil
				if a.power != nil {
					a.power.SetDesired(false)
				}
			}

		case msg := <-a.reports:
			if a.power != nil && a.power.Source() == msg.instanceId {
				a.power.IngestReport(msg.reports)
			}

		case req := <-a.snapshot:
			var b *TaskBinding
			if binding != nil {
				cp := *binding
				b = &cp
			}
			req.resp <- InstanceSnapshot{Id: a.id, Connected: connected, Parameters: parameters.Get(), Binding: b}

		case ev := <-driverEvents:
			switch ev.Kind {
			case instancedriver.EventStarted:
				// no-op, spec.md §4.2

			case instancedriver.EventIOError:
				a.log.Warnw("driver I/O error", "error", ev.Error)

			case instancedriver.EventConnectionLost:
				connected = false

			case instancedriver.EventConnected:
				connected = true
				instrumentation.IncDriverReconnects(1)
				// on_connected: force a re-push of parameters and desired
				// play state, regardless of quiescence.
				parameters.MarkModified()
				if a.media != nil {
					desiredPlay.MarkModified()
				}

			case instancedriver.EventReports:
				if a.bus != nil {
					a.bus.Publish(eventbus.TopicFixedInstanceReport, eventbus.NotifyFixedInstanceReports{
						InstanceId: a.id,
						Reports:    ev.Reports,
					})
				}

			case instancedriver.EventPlayState:
				// actual play state tracked by the caller via reports/engine
				// events; nothing to reconcile here beyond logging.
				if ev.PlayState != nil {
					a.log.Debugw("driver play state", "current", ev.PlayState.Current, "media_pos", ev.PlayState.MediaPos)
				}
			}

		case <-ticker.C:
			if !connected {
				continue
			}
			if tag, snap, ok := parameters.StartUpdate(); ok {
				err := a.client.SetParameters(snap)
				parameters.FinishUpdate(tag, err == nil)
				instrumentation.IncParameterPushes(1)
				if err != nil {
					a.log.Warnw("set parameters failed", "error", err)
				}
			}
			if a.media != nil {
				if tag, snap, ok := desiredPlay.StartUpdate(); ok {
					err := a.client.SetDesiredPlayState(snap)
					desiredPlay.FinishUpdate(tag, err == nil)
					instrumentation.IncPlayStatePushes(1)
					if err != nil {
						a.log.Warnw("set desired play state failed", "error", err)
					}
				}
			}
			if a.power != nil {
				a.power.Reconcile()
			}

		case q := <-a.quit:
			close(q)
			return
		}
	}
}

func copyJSONObject(src instancedriver.JsonObject) instancedriver.JsonObject {
	dst := make(instancedriver.JsonObject, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// mergeJSONObjects deep-merges src's keys into a copy of dst: nested
// JSON objects are merged recursively, any other value (including
// arrays) is replaced wholesale, matching spec.md §4.2
// "SetInstanceParameters: deep-merges object keys".
func mergeJSONObjects(dst, src instancedriver.JsonObject) instancedriver.JsonObject {
	merged := copyJSONObject(dst)
	for k, v := range src {
		existing, ok := merged[k]
		if ok && isJSONObject(existing) && isJSONObject(v) {
			var existingMap, srcMap instancedriver.JsonObject
			_ = json.Unmarshal(existing, &existingMap)
			_ = json.Unmarshal(v, &srcMap)
			nested := mergeJSONObjects(existingMap, srcMap)
			encoded, err := json.Marshal(nested)
			if err == nil {
				merged[k] = encoded
				continue
			}
		}
		merged[k] = v
	}
	return merged
}

func isJSONObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
