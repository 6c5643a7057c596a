package tasks

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/eventbus"
	"github.com/audiocloud/domain-server/instrumentation"
)

// Supervisor is the TasksSupervisor (spec.md §4.5): owns task
// lifecycle and a secondary fixed_instance_membership index, routing
// engine/media/instance events to the right TaskActor by id. Grounded
// on the teacher's registry.go (owns desired state, broadcasts changes
// to subscribers) merged with transformer.go's membership-index idea.
type Supervisor struct {
	mu    sync.RWMutex
	log   *zap.SugaredLogger
	bus   *eventbus.Bus

	tasks      map[domainapi.TaskId]*supervisedTask
	membership map[domainapi.InstanceId]domainapi.TaskId

	engineFactory EngineFactory
	instances     FixedInstanceBinder
	connected     InstancesConnected

	maxPacketAgeMs  int
	maxPacketFrames int

	specChangedCh chan any
	reportsCh     chan any
	quit          chan chan struct{}
}

type supervisedTask struct {
	actor *Actor
}

// SupervisorDeps bundles a TasksSupervisor's external collaborators.
type SupervisorDeps struct {
	Bus             *eventbus.Bus
	Log             *zap.SugaredLogger
	EngineFactory   EngineFactory
	Instances       FixedInstanceBinder
	Connected       InstancesConnected
	MaxPacketAgeMs  int
	MaxPacketFrames int
}

func NewSupervisor(d SupervisorDeps) *Supervisor {
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	factory := d.EngineFactory
	if factory == nil {
		factory = newNoopEngine
	}
	s := &Supervisor{
		log:             log,
		bus:             d.Bus,
		tasks:           map[domainapi.TaskId]*supervisedTask{},
		membership:      map[domainapi.InstanceId]domainapi.TaskId{},
		engineFactory:   factory,
		instances:       d.Instances,
		connected:       d.Connected,
		maxPacketAgeMs:  d.MaxPacketAgeMs,
		maxPacketFrames: d.MaxPacketFrames,
		specChangedCh:   make(chan any, 64),
		reportsCh:       make(chan any, 64),
		quit:            make(chan chan struct{}),
	}
	if d.Bus != nil {
		d.Bus.Subscribe(eventbus.TopicTaskSpecChanged, s.specChangedCh)
		d.Bus.Subscribe(eventbus.TopicFixedInstanceReport, s.reportsCh)
	}
	go s.routeEvents()
	return s
}

func (s *Supervisor) Stop() {
	s.mu.Lock()
	for _, st := range s.tasks {
		st.actor.Stop()
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Unsubscribe(eventbus.TopicTaskSpecChanged, s.specChangedCh)
		s.bus.Unsubscribe(eventbus.TopicFixedInstanceReport, s.reportsCh)
	}
	q := make(chan struct{})
	s.quit <- q
	<-q
}

// routeEvents rebuilds the membership index on every
// NotifyTaskSpecChanged and forwards NotifyFixedInstanceReports to
// whichever task currently references the reporting instance,
// satisfying spec.md §8 invariant 5 and §4.5's membership-indexed
// routing.
func (s *Supervisor) routeEvents() {
	for {
		select {
		case ev := <-s.specChangedCh:
			if changed, ok := ev.(eventbus.NotifyTaskSpecChanged); ok {
				s.rebuildMembership(changed.TaskId, changed.Spec.FixedInstances)
			}

		case ev := <-s.reportsCh:
			if report, ok := ev.(eventbus.NotifyFixedInstanceReports); ok {
				s.mu.RLock()
				taskId, ok := s.membership[report.InstanceId]
				var actor *Actor
				if ok {
					if st, exists := s.tasks[taskId]; exists {
						actor = st.actor
					}
				}
				s.mu.RUnlock()
				if actor != nil {
					actor.NotifyFixedInstanceReports(report.InstanceId, report.Reports)
				} else {
					s.log.Debugw("instance report for an instance no task currently references", "instance_id", report.InstanceId.String())
				}
			}

		case q := <-s.quit:
			close(q)
			return
		}
	}
}

func (s *Supervisor) rebuildMembership(taskId domainapi.TaskId, fixedInstances []domainapi.InstanceId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for instanceId, owner := range s.membership {
		if owner == taskId {
			delete(s.membership, instanceId)
		}
	}
	for _, id := range fixedInstances {
		s.membership[id] = taskId
	}
}

// CreateTask inserts a new task with empty state and starts its actor.
func (s *Supervisor) CreateTask(id domainapi.TaskId, spec TaskSpec) error {
	s.mu.Lock()
	if _, exists := s.tasks[id]; exists {
		s.mu.Unlock()
		return &domainapi.TaskExistsError{TaskId: id}
	}
	s.mu.Unlock()

	engine, err := s.engineFactory(id)
	if err != nil {
		return domainapi.NewBadGatewayError(err)
	}

	actor := NewActor(Deps{
		Id:              id,
		Spec:            spec,
		Engine:          engine,
		Instances:       s.instances,
		Connected:       s.connected,
		Bus:             s.bus,
		Log:             s.log,
		MaxPacketAgeMs:  s.maxPacketAgeMs,
		MaxPacketFrames: s.maxPacketFrames,
	})

	s.mu.Lock()
	if _, exists := s.tasks[id]; exists {
		s.mu.Unlock()
		actor.Stop()
		return &domainapi.TaskExistsError{TaskId: id}
	}
	s.tasks[id] = &supervisedTask{actor: actor}
	s.mu.Unlock()
	instrumentation.IncTasksCreated(1)
	return nil
}

// DeleteTask stops the actor and emits NotifyTaskDeleted on the bus.
//
// Open question (spec.md §9): the source leaves DeleteTask on an
// actively-playing task as todo!(). Decision: delete unconditionally —
// no error, actor stops immediately, any in-flight engine/driver calls
// are dropped at their next suspension point per spec.md §5.
func (s *Supervisor) DeleteTask(id domainapi.TaskId) error {
	s.mu.Lock()
	st, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return &domainapi.TaskNotFoundError{TaskId: id}
	}
	delete(s.tasks, id)
	for instanceId, owner := range s.membership {
		if owner == id {
			delete(s.membership, instanceId)
		}
	}
	s.mu.Unlock()

	st.actor.Stop()
	if s.instances != nil {
		s.instances.NotifyTaskDeleted(id)
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.TopicTaskDeleted, eventbus.NotifyTaskDeleted{TaskId: id})
	}
	instrumentation.IncTasksDeleted(1)
	return nil
}

func (s *Supervisor) actorFor(id domainapi.TaskId) (*Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.tasks[id]
	if !ok {
		return nil, &domainapi.TaskNotFoundError{TaskId: id}
	}
	return st.actor, nil
}

// GetTaskWithStatusAndSpec is a read-through snapshot.
func (s *Supervisor) GetTaskWithStatusAndSpec(id domainapi.TaskId) (TaskSummary, error) {
	a, err := s.actorFor(id)
	if err != nil {
		return TaskSummary{}, err
	}
	return a.Snapshot(), nil
}

// ListTasks enumerates every task's summary.
func (s *Supervisor) ListTasks() []TaskSummary {
	s.mu.RLock()
	actors := make([]*Actor, 0, len(s.tasks))
	for _, st := range s.tasks {
		actors = append(actors, st.actor)
	}
	s.mu.RUnlock()

	summaries := make([]TaskSummary, 0, len(actors))
	for _, a := range actors {
		summaries = append(summaries, a.Snapshot())
	}
	return summaries
}

func (s *Supervisor) PlayTask(id domainapi.TaskId, play PlaySpec) error {
	a, err := s.actorFor(id)
	if err != nil {
		return err
	}
	return a.PlayTask(play)
}

func (s *Supervisor) RenderTask(id domainapi.TaskId, render RenderSpec) error {
	a, err := s.actorFor(id)
	if err != nil {
		return err
	}
	return a.RenderTask(render)
}

func (s *Supervisor) StopPlayTask(id domainapi.TaskId, playId domainapi.PlayId) error {
	a, err := s.actorFor(id)
	if err != nil {
		return err
	}
	return a.StopPlayTask(playId)
}

func (s *Supervisor) CancelRenderTask(id domainapi.TaskId, renderId domainapi.RenderId) error {
	a, err := s.actorFor(id)
	if err != nil {
		return err
	}
	return a.CancelRenderTask(renderId)
}

// NotifyMediaTaskState routes by task id, silently dropping (with a
// warning) for unknown/inactive tasks per spec.md §4.5.
func (s *Supervisor) NotifyMediaTaskState(id domainapi.TaskId, media map[domainapi.MediaObjectId]MediaObject) {
	a, err := s.actorFor(id)
	if err != nil {
		s.log.Warnw("media state for unknown task, dropping", "task_id", id.String())
		return
	}
	a.NotifyMediaTaskState(media)
}

// NotifyFixedInstanceRouting routes by task id.
func (s *Supervisor) NotifyFixedInstanceRouting(id domainapi.TaskId, routing map[domainapi.InstanceId]json.RawMessage) {
	a, err := s.actorFor(id)
	if err != nil {
		s.log.Warnw("routing update for unknown task, dropping", "task_id", id.String())
		return
	}
	a.NotifyFixedInstanceRouting(routing)
}

// NotifyEngineEvent routes by the event's own task id.
func (s *Supervisor) NotifyEngineEvent(ev EngineEvent) {
	a, err := s.actorFor(ev.TaskId)
	if err != nil {
		s.log.Warnw("engine event for unknown task, dropping", "task_id", ev.TaskId.String())
		return
	}
	a.NotifyEngineEvent(ev)
}
