package fixedinstances

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/instancedriver"
)

// powerChannelReport is the shape of a power PDU's report payload,
// grounded on
// original_source/domain/audiocloud-driver/src/netio/power_pdu_4c_mocked.rs:
// a named channel-state map, since that mock driver models a 4-channel
// PDU addressed by channel name.
type powerChannelReport struct {
	Channels map[string]bool `json:"channels"`
}

// DriverLookup resolves an InstanceId to its current driver client, the
// way FixedInstancesSupervisor resolves cross-instance references: by
// identifier, never by a stored handle (spec.md §9 "Cross-actor
// references").
type DriverLookup func(domainapi.InstanceId) (instancedriver.Client, bool)

// PowerController derives an instance's desired power channel state
// from reports ingested off its configured power source, and applies
// it through that source's driver client, looked up by id on every
// push rather than held directly.
type PowerController struct {
	mu sync.Mutex

	source  domainapi.InstanceId
	channel string
	lookup  DriverLookup
	log     *zap.SugaredLogger

	desiredOn   bool
	actualOn    bool
	actualKnown bool
}

// NewPowerController constructs a controller for an instance whose
// power comes from source/channel. lookup resolves source's current
// driver client at push time.
func NewPowerController(source domainapi.InstanceId, channel string, lookup DriverLookup, log *zap.SugaredLogger) *PowerController {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &PowerController{source: source, channel: channel, lookup: lookup, log: log}
}

func (p *PowerController) Source() domainapi.InstanceId {
	return p.source
}

// SetDesired records the desired power state. The owning Actor sets it
// on when the instance is bound to a task with a non-idle binding, and
// off when that task is deleted.
func (p *PowerController) SetDesired(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.desiredOn = on
}

// IngestReport parses a report from the power source instance and
// updates the known-actual channel state, per spec.md §4.2
// "NotifyFixedInstanceReports... forward to the power controller".
func (p *PowerController) IngestReport(reports json.RawMessage) {
	var parsed powerChannelReport
	if err := json.Unmarshal(reports, &parsed); err != nil {
		p.log.Debugw("power controller: unparseable report, ignoring", "error", err)
		return
	}
	on, ok := parsed.Channels[p.channel]
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actualOn = on
	p.actualKnown = true
}

// Reconcile pushes a power channel command through the source
// instance's driver client iff the derived desired state differs from
// the last known actual state (spec.md §4.2 tick rule). Returns false
// when there's nothing to do or the source instance is unavailable.
func (p *PowerController) Reconcile() (issued bool) {
	p.mu.Lock()
	desired, actual, known := p.desiredOn, p.actualOn, p.actualKnown
	source, channel := p.source, p.channel
	p.mu.Unlock()

	if known && desired == actual {
		return false
	}

	client, ok := p.lookup(source)
	if !ok {
		return false
	}
	if err := client.SetPowerChannel(channel, desired); err != nil {
		p.log.Warnw("power controller: push failed", "source", source, "channel", channel, "error", err)
		return false
	}
	return true
}
