package fixedinstances

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/domainconfig"
	"github.com/audiocloud/domain-server/eventbus"
	"github.com/audiocloud/domain-server/instancedriver"
)

// Supervisor is the FixedInstancesSupervisor (spec.md §4.3): it owns one
// Actor per configured instance, reconciles that set against
// NotifyDomainConfiguration, and routes every instance-addressed
// operation to the right actor by id. Grounded on the teacher's
// transformer.go, which owns a map of named pipelines and routes
// incoming requests to the right one by name.
type Supervisor struct {
	mu  sync.RWMutex
	log *zap.SugaredLogger
	bus *eventbus.Bus

	instances map[domainapi.InstanceId]*supervisedInstance

	reportsCh chan any
	quit      chan chan struct{}
}

type supervisedInstance struct {
	actor  *Actor
	config domainconfig.InstanceConfig
}

// NewSupervisor constructs an empty Supervisor subscribed to the bus
// topics it needs to route cross-instance power reports.
func NewSupervisor(bus *eventbus.Bus, log *zap.SugaredLogger) *Supervisor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Supervisor{
		log:       log,
		bus:       bus,
		instances: map[domainapi.InstanceId]*supervisedInstance{},
		reportsCh: make(chan any, 64),
		quit:      make(chan chan struct{}),
	}
	if bus != nil {
		bus.Subscribe(eventbus.TopicFixedInstanceReport, s.reportsCh)
	}
	go s.routeReports()
	return s
}

// Stop tears down every instance actor and the report-routing loop.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	for _, si := range s.instances {
		si.actor.Stop()
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Unsubscribe(eventbus.TopicFixedInstanceReport, s.reportsCh)
	}
	q := make(chan struct{})
	s.quit <- q
	<-q
}

// routeReports forwards every NotifyFixedInstanceReports seen on the
// bus to whichever of this supervisor's instances has a power
// controller sourced from the reporting instance (spec.md §4.3 "for
// every instance whose configured power source matches the report's
// instance id, forward the report").
func (s *Supervisor) routeReports() {
	for {
		select {
		case ev := <-s.reportsCh:
			report, ok := ev.(eventbus.NotifyFixedInstanceReports)
			if !ok {
				continue
			}
			s.mu.RLock()
			actors := make([]*Actor, 0, len(s.instances))
			for _, si := range s.instances {
				actors = append(actors, si.actor)
			}
			s.mu.RUnlock()
			for _, a := range actors {
				a.NotifyFixedInstanceReports(report.InstanceId, report.Reports)
			}

		case q := <-s.quit:
			close(q)
			return
		}
	}
}

// lookupDriver implements DriverLookup for PowerController: resolve an
// instance id to its actor's driver client by reading the supervisor's
// map at call time, never by holding a stored reference.
func (s *Supervisor) lookupDriver(id domainapi.InstanceId) (instancedriver.Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	si, ok := s.instances[id]
	if !ok {
		return nil, false
	}
	return si.actor.client, true
}

// NotifyDomainConfiguration reconciles the supervisor's instance set
// against a fresh config: starts actors for new instances, pushes a
// changed driver base_url to retained instances, and stops actors for
// instances no longer present (spec.md §4.3). A retained instance keeps
// the power and media wiring its actor was started with; a change to
// either takes effect only when the instance is removed and re-added.
func (s *Supervisor) NotifyDomainConfiguration(cfg domainconfig.DomainConfig) {
	urlUpdates := map[*Actor]string{}
	s.mu.Lock()

	seen := map[domainapi.InstanceId]struct{}{}
	for _, ic := range cfg.Instances {
		seen[ic.Id] = struct{}{}

		if existing, ok := s.instances[ic.Id]; ok {
			if baseURL := driverConfigBaseURL(ic); baseURL != driverConfigBaseURL(existing.config) {
				urlUpdates[existing.actor] = baseURL
			}
			existing.config = ic
			continue
		}

		s.instances[ic.Id] = s.startInstance(ic)
	}

	for id, si := range s.instances {
		if _, ok := seen[id]; !ok {
			si.actor.Stop()
			delete(s.instances, id)
		}
	}
	s.mu.Unlock()

	// Sent after releasing s.mu: a ticking actor's power controller may
	// be waiting on it through lookupDriver.
	for a, baseURL := range urlUpdates {
		a.NotifyInstanceDriverUrl(a.id, baseURL)
	}
}

func (s *Supervisor) startInstance(ic domainconfig.InstanceConfig) *supervisedInstance {
	client, err := instancedriver.NewHTTPClient(driverConfigBaseURL(ic))
	if err != nil {
		s.log.Warnw("instance driver config invalid, starting disconnected", "instance_id", ic.Id.String(), "error", err)
		client, _ = instancedriver.NewHTTPClient("http://unconfigured.invalid")
	}

	var media *MediaController
	if ic.Media != nil && ic.Media.Capable {
		media = NewMediaController()
	}

	var power *PowerController
	if ic.Power != nil {
		power = NewPowerController(ic.Power.Instance, ic.Power.Channel, s.lookupDriver, s.log)
	}

	actor := NewActor(Deps{
		Id:     ic.Id,
		Client: client,
		Media:  media,
		Power:  power,
		Bus:    s.bus,
		Log:    s.log,
	})
	return &supervisedInstance{actor: actor, config: ic}
}

// driverConfigBaseURL extracts the HTTP base URL from an instance's
// driver configuration, defaulting to an unreachable placeholder until
// NotifyInstanceDriverUrl supplies the real one (spec.md §4.2 "driver
// URL is learned, not configured up front" for dynamically-discovered
// drivers).
func driverConfigBaseURL(ic domainconfig.InstanceConfig) string {
	if baseURL := ic.DriverConfig["base_url"]; baseURL != "" {
		return baseURL
	}
	return "http://unconfigured.invalid"
}

// --- routed operations, spec.md §4.3 ---

func (s *Supervisor) actorFor(id domainapi.InstanceId) (*Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	si, ok := s.instances[id]
	if !ok {
		return nil, &domainapi.InstanceNotFoundError{InstanceId: id}
	}
	return si.actor, nil
}

func (s *Supervisor) SetInstanceParameters(id domainapi.InstanceId, params instancedriver.JsonObject) error {
	a, err := s.actorFor(id)
	if err != nil {
		return err
	}
	return a.SetInstanceParameters(params)
}

func (s *Supervisor) MergeInstanceParameters(id domainapi.InstanceId, parameter string, channel int, value json.RawMessage) error {
	a, err := s.actorFor(id)
	if err != nil {
		return err
	}
	return a.MergeInstanceParameters(parameter, channel, value)
}

func (s *Supervisor) SetInstanceDesiredPlayState(id domainapi.InstanceId, desired instancedriver.DesiredInstancePlayState) error {
	a, err := s.actorFor(id)
	if err != nil {
		return err
	}
	return a.SetInstanceDesiredPlayState(desired)
}

func (s *Supervisor) NotifyInstanceDriverUrl(id domainapi.InstanceId, baseURL string) error {
	a, err := s.actorFor(id)
	if err != nil {
		return err
	}
	a.NotifyInstanceDriverUrl(id, baseURL)
	return nil
}

// NotifyTaskSpec pushes a task's binding down to every instance it
// names; each actor decides for itself whether it's one of them
// (spec.md §4.2 NotifyTaskSpec).
func (s *Supervisor) NotifyTaskSpec(taskId domainapi.TaskId, fixedInstances []domainapi.InstanceId, binding TaskBinding) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range fixedInstances {
		if si, ok := s.instances[id]; ok {
			si.actor.NotifyTaskSpec(taskId, fixedInstances, binding)
		}
	}
}

// NotifyTaskDeleted clears any binding held by instances for taskId.
func (s *Supervisor) NotifyTaskDeleted(taskId domainapi.TaskId) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, si := range s.instances {
		si.actor.NotifyTaskDeleted(taskId)
	}
}

// GetInstanceSnapshot answers a read-only status query for one
// instance, used by the ops surface and tests.
func (s *Supervisor) GetInstanceSnapshot(id domainapi.InstanceId) (InstanceSnapshot, error) {
	a, err := s.actorFor(id)
	if err != nil {
		return InstanceSnapshot{}, err
	}
	return a.Snapshot(), nil
}

// Connected reports whether every named instance currently has an
// actor that is connected to its driver; an unknown instance counts as
// not connected. Satisfies tasks.InstancesConnected, letting TaskActor
// recompute readiness by identifier lookup rather than holding a
// reference to any instance actor directly (spec.md §9).
func (s *Supervisor) Connected(ids []domainapi.InstanceId) bool {
	for _, id := range ids {
		snap, err := s.GetInstanceSnapshot(id)
		if err != nil || !snap.Connected {
			return false
		}
	}
	return true
}

// ListInstances returns every currently-configured instance id.
func (s *Supervisor) ListInstances() []domainapi.InstanceId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]domainapi.InstanceId, 0, len(s.instances))
	for id := range s.instances {
		ids = append(ids, id)
	}
	return ids
}
