package eventbus

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/audiocloud/domain-server/domainconfig"
)

// Forwarder republishes select bus events onto an external Sink,
// giving event_sink (spec.md §6) a real subscriber instead of a
// constructor nobody calls. It starts with a disabled sink and rebuilds
// it whenever a NotifyDomainConfiguration event carries a changed
// EventSink configuration, mirroring the way every other supervisor
// reacts to the reconciler rather than being handed a config up front.
// Grounded on sockets.Supervisor.routeEvents's single-goroutine,
// bus-subscribed actor shape.
type Forwarder struct {
	log  *zap.SugaredLogger
	sink Sink
	cfg  domainconfig.EventSink

	packetsCh chan any
	configCh  chan any
	quit      chan chan struct{}

	bus *Bus
}

// NewForwarder subscribes to the bus and starts forwarding immediately;
// until the first domain configuration arrives, the sink is a no-op.
func NewForwarder(bus *Bus, log *zap.SugaredLogger) *Forwarder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	f := &Forwarder{
		log:       log,
		sink:      &noopSink{},
		packetsCh: make(chan any, 64),
		configCh:  make(chan any, 64),
		quit:      make(chan chan struct{}),
		bus:       bus,
	}
	if bus != nil {
		bus.Subscribe(TopicStreamingPacket, f.packetsCh)
		bus.Subscribe(TopicDomainConfiguration, f.configCh)
	}
	go f.run()
	return f
}

// Stop unsubscribes from the bus and closes the current sink.
func (f *Forwarder) Stop() {
	if f.bus != nil {
		f.bus.Unsubscribe(TopicStreamingPacket, f.packetsCh)
		f.bus.Unsubscribe(TopicDomainConfiguration, f.configCh)
	}
	q := make(chan struct{})
	f.quit <- q
	<-q
	f.sink.Close()
}

func (f *Forwarder) run() {
	for {
		select {
		case ev := <-f.packetsCh:
			packet := ev.(NotifyStreamingPacket)
			f.publish("streaming_packet."+packet.TaskId.String(), packet)

		case ev := <-f.configCh:
			notify := ev.(NotifyDomainConfiguration)
			f.reconfigure(notify.Config.EventSink)
			f.publish("domain_configuration", notify)

		case q := <-f.quit:
			close(q)
			return
		}
	}
}

func (f *Forwarder) publish(subject string, payload any) {
	if err := f.sink.Publish(subject, payload); err != nil {
		f.log.Errorw("event sink publish failed", "subject", subject, "error", err)
	}
}

// reconfigure rebuilds the sink only when the EventSink config actually
// changed, so an unrelated reconciliation pass doesn't reconnect a
// perfectly healthy NATS connection.
func (f *Forwarder) reconfigure(cfg domainconfig.EventSink) {
	if reflect.DeepEqual(cfg, f.cfg) {
		return
	}
	sink, err := NewSink(cfg, f.log)
	if err != nil {
		f.log.Errorw("rebuilding event sink failed, keeping previous sink", "kind", cfg.Kind, "error", err)
		return
	}
	f.sink.Close()
	f.sink = sink
	f.cfg = cfg
}
