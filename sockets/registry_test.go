package sockets

import (
	"testing"
	"time"

	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/eventbus"
	"github.com/audiocloud/domain-server/tasks"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New()
	s := NewSupervisor(bus, nil)
	t.Cleanup(s.Stop)
	return s, bus
}

func TestGrantThenSendToClientDeliversToAllSockets(t *testing.T) {
	s, _ := newTestSupervisor(t)
	client := domainapi.ClientId("client-1")
	task := domainapi.TaskId{App: "app", Task: "t1"}
	s.Grant(client, task)

	connA, connB := &fakeConn{}, &fakeConn{}
	s.RegisterWebSocket(client, "a", NewSession(connA, EncodingJSON))
	s.RegisterWebSocket(client, "b", NewSession(connB, EncodingMsgPack))

	if err := s.SendToClient(client, DomainServerMessage{Kind: MessageTaskStatus, TaskId: task}); err != nil {
		t.Fatalf("SendToClient: %v", err)
	}
	if connA.data == nil {
		t.Fatalf("expected socket a to receive a frame")
	}
	if connB.data == nil {
		t.Fatalf("expected socket b to receive a frame")
	}
}

func TestSendToClientUnknownClientReturnsError(t *testing.T) {
	s, _ := newTestSupervisor(t)
	if err := s.SendToClient(domainapi.ClientId("ghost"), DomainServerMessage{}); err == nil {
		t.Fatalf("expected error for unregistered client")
	}
}

func TestFanOutPacketOnlyReachesMembers(t *testing.T) {
	s, bus := newTestSupervisor(t)
	task := domainapi.TaskId{App: "app", Task: "t1"}
	other := domainapi.TaskId{App: "app", Task: "other"}
	member, nonMember := domainapi.ClientId("member"), domainapi.ClientId("non-member")

	s.Grant(member, task)
	s.Grant(nonMember, other)

	connMember, connNonMember := &fakeConn{}, &fakeConn{}
	s.RegisterWebSocket(member, "a", NewSession(connMember, EncodingJSON))
	s.RegisterWebSocket(nonMember, "a", NewSession(connNonMember, EncodingJSON))

	bus.Publish(eventbus.TopicStreamingPacket, eventbus.NotifyStreamingPacket{
		TaskId: task,
		Packet: &tasks.StreamingPacket{},
	})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && connMember.data == nil {
		time.Sleep(5 * time.Millisecond)
	}
	if connMember.data == nil {
		t.Fatalf("expected member socket to receive the streaming packet")
	}
	if connNonMember.data != nil {
		t.Fatalf("non-member socket should not receive a packet for a task it isn't subscribed to")
	}
}

func TestNotifyTaskDeletedPrunesMembershipAndEmptyClients(t *testing.T) {
	s, bus := newTestSupervisor(t)
	task := domainapi.TaskId{App: "app", Task: "t1"}
	client := domainapi.ClientId("client-1")
	s.Grant(client, task)

	bus.Publish(eventbus.TopicTaskDeleted, eventbus.NotifyTaskDeleted{TaskId: task})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.RLock()
		_, ok := s.clients[client]
		s.mu.RUnlock()
		if !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected client with no remaining memberships or sockets to be pruned")
}

func TestNotifyTaskDeletedKeepsClientWithOpenSocket(t *testing.T) {
	s, bus := newTestSupervisor(t)
	task := domainapi.TaskId{App: "app", Task: "t1"}
	client := domainapi.ClientId("client-1")
	s.Grant(client, task)
	s.RegisterWebSocket(client, "a", NewSession(&fakeConn{}, EncodingJSON))

	bus.Publish(eventbus.TopicTaskDeleted, eventbus.NotifyTaskDeleted{TaskId: task})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.RLock()
		c, ok := s.clients[client]
		var stillMember bool
		if ok {
			_, stillMember = c.Memberships[task]
		}
		s.mu.RUnlock()
		if ok && !stillMember {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected client to survive with its membership to the deleted task removed")
}

func TestNotifyTaskSecurityReplacesMap(t *testing.T) {
	s, bus := newTestSupervisor(t)
	task := domainapi.TaskId{App: "app", Task: "t1"}

	bus.Publish(eventbus.TopicTaskSecurity, eventbus.NotifyTaskSecurity{
		TaskId:   task,
		Security: map[domainapi.ClientId]uint32{"c1": 1},
	})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.RLock()
		sec, ok := s.security[task]
		s.mu.RUnlock()
		if ok && sec["c1"] == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected security map for task to converge")
}
