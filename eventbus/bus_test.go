package eventbus

import "testing"

func TestBusDeliversOnlyToSubscribedTopic(t *testing.T) {
	bus := New()
	instanceReports := make(chan any, 1)
	taskDeleted := make(chan any, 1)

	bus.Subscribe(TopicFixedInstanceReport, instanceReports)
	bus.Subscribe(TopicTaskDeleted, taskDeleted)

	bus.Publish(TopicFixedInstanceReport, NotifyFixedInstanceReports{})

	select {
	case <-instanceReports:
	default:
		t.Fatalf("expected the instance-report subscriber to receive the event")
	}
	select {
	case <-taskDeleted:
		t.Fatalf("did not expect the task-deleted subscriber to receive an instance-report event")
	default:
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	c := make(chan any, 1)
	bus.Subscribe(TopicTaskDeleted, c)
	bus.Unsubscribe(TopicTaskDeleted, c)

	bus.Publish(TopicTaskDeleted, NotifyTaskDeleted{})

	select {
	case <-c:
		t.Fatalf("did not expect delivery after unsubscribe")
	default:
	}
	if got := bus.SubscriberCount(TopicTaskDeleted); got != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", got)
	}
}

func TestBusMultipleSubscribersBothReceive(t *testing.T) {
	bus := New()
	a := make(chan any, 1)
	b := make(chan any, 1)
	bus.Subscribe(TopicTaskDeleted, a)
	bus.Subscribe(TopicTaskDeleted, b)

	bus.Publish(TopicTaskDeleted, NotifyTaskDeleted{})

	for _, c := range []chan any{a, b} {
		select {
		case <-c:
		default:
			t.Fatalf("expected every subscriber to receive the broadcast event")
		}
	}
}
