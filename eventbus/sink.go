package eventbus

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/audiocloud/domain-server/domainconfig"
)

// Sink is an optional external fan-out target for bus events, per
// spec.md §6 "event_sink: {Disabled|Log|Kafka{...}}". The Kafka variant
// is a contract struct only (see DESIGN.md: no Kafka client appears in
// the retrieved corpus); NATS is wired to a real client and reached
// through Forwarder, which republishes streaming packets and domain
// configuration notifications onto whichever Sink NewSink builds.
type Sink interface {
	Publish(subject string, payload any) error
	Close()
}

// NewSink constructs a Sink from domain config, returning a no-op sink
// for Disabled/Kafka (contract-only) and a logging sink for Log.
func NewSink(cfg domainconfig.EventSink, log *zap.SugaredLogger) (Sink, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	switch cfg.Kind {
	case domainconfig.EventSinkNATS:
		return newNATSSink(cfg, log)
	case domainconfig.EventSinkLog:
		return &logSink{log: log}, nil
	case domainconfig.EventSinkKafka:
		// Contract only: no Kafka client is wired, see DESIGN.md.
		log.Infow("event sink configured for kafka but no kafka client is wired; events will be dropped", "topic", cfg.Topic)
		return &noopSink{}, nil
	default:
		return &noopSink{}, nil
	}
}

type noopSink struct{}

func (*noopSink) Publish(string, any) error { return nil }
func (*noopSink) Close()                    {}

type logSink struct {
	log *zap.SugaredLogger
}

func (s *logSink) Publish(subject string, payload any) error {
	s.log.Infow("event", "subject", subject, "payload", payload)
	return nil
}

func (s *logSink) Close() {}

type natsSink struct {
	conn *nats.Conn
	log  *zap.SugaredLogger
}

func newNATSSink(cfg domainconfig.EventSink, log *zap.SugaredLogger) (*natsSink, error) {
	url := nats.DefaultURL
	if len(cfg.Brokers) > 0 {
		url = cfg.Brokers[0]
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &natsSink{conn: conn, log: log}, nil
}

func (s *natsSink) Publish(subject string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.conn.Publish(subject, body)
}

func (s *natsSink) Close() {
	s.conn.Close()
}
