package eventbus

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/domainconfig"
)

func newObservedForwarder(t *testing.T, bus *Bus) (*Forwarder, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	f := NewForwarder(bus, zap.New(core).Sugar())
	t.Cleanup(f.Stop)
	return f, logs
}

func waitForLogs(t *testing.T, logs *observer.ObservedLogs, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if logs.Len() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d log entries, got %d", n, logs.Len())
}

func TestForwarderStaysNoopUntilConfigArrives(t *testing.T) {
	bus := New()
	_, logs := newObservedForwarder(t, bus)

	bus.Publish(TopicStreamingPacket, NotifyStreamingPacket{TaskId: domainapi.TaskId{App: "app", Task: "t1"}})
	time.Sleep(20 * time.Millisecond)

	if logs.Len() != 0 {
		t.Fatalf("expected no log sink output before any EventSink config arrived, got %d entries", logs.Len())
	}
}

func TestForwarderSwitchesToLogSinkOnDomainConfiguration(t *testing.T) {
	bus := New()
	_, logs := newObservedForwarder(t, bus)

	bus.Publish(TopicDomainConfiguration, NotifyDomainConfiguration{
		Config: domainconfig.DomainConfig{EventSink: domainconfig.EventSink{Kind: domainconfig.EventSinkLog}},
	})

	bus.Publish(TopicStreamingPacket, NotifyStreamingPacket{TaskId: domainapi.TaskId{App: "app", Task: "t1"}})

	waitForLogs(t, logs, 2) // one for the domain_configuration event itself, one for the packet
}

func TestForwarderStopClosesSinkAndUnsubscribes(t *testing.T) {
	bus := New()
	f := NewForwarder(bus, nil)

	bus.Publish(TopicDomainConfiguration, NotifyDomainConfiguration{
		Config: domainconfig.DomainConfig{EventSink: domainconfig.EventSink{Kind: domainconfig.EventSinkLog}},
	})
	time.Sleep(20 * time.Millisecond)

	f.Stop()

	if got := bus.SubscriberCount(TopicStreamingPacket); got != 0 {
		t.Fatalf("expected Stop to unsubscribe from TopicStreamingPacket, got %d subscribers", got)
	}
	if got := bus.SubscriberCount(TopicDomainConfiguration); got != 0 {
		t.Fatalf("expected Stop to unsubscribe from TopicDomainConfiguration, got %d subscribers", got)
	}
}
