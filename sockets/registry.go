// Package sockets implements the SocketsSupervisor (spec.md §4.6): a
// per-client session registry granting streaming access by task
// membership, fanning out streaming packets to connected clients with
// per-client delivery format negotiation, and keeping each task's
// security map.
package sockets

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/eventbus"
	"github.com/audiocloud/domain-server/tasks"
)

// ClientRegistration is one client's session state: every socket it
// currently holds open and the set of tasks it may stream from.
// Grounded on the teacher's registry.go subscription bookkeeping
// (`subscriptions map[chan<- registryState]struct{}`), generalized
// from one implicit subscription to per-client task membership.
type ClientRegistration struct {
	Id          domainapi.ClientId
	Memberships map[domainapi.TaskId]struct{}
	Sockets     map[string]*Session
}

func newClientRegistration(id domainapi.ClientId) *ClientRegistration {
	return &ClientRegistration{
		Id:          id,
		Memberships: map[domainapi.TaskId]struct{}{},
		Sockets:     map[string]*Session{},
	}
}

// Supervisor owns the client registry and each task's security map. It
// fans NotifyStreamingPacket bus events out to the clients whose
// memberships include the task; NotifyTaskSecurity and NotifyTaskDeleted
// only update the registry and are not sent to clients. Packet delivery
// is gated by membership alone; the stored security map is not
// consulted.
type Supervisor struct {
	mu sync.RWMutex

	log      *zap.SugaredLogger
	bus      *eventbus.Bus
	clients  map[domainapi.ClientId]*ClientRegistration
	security map[domainapi.TaskId]tasks.SecurityMap

	packetsCh  chan any
	deletedCh  chan any
	securityCh chan any
	quit       chan chan struct{}
}

func NewSupervisor(bus *eventbus.Bus, log *zap.SugaredLogger) *Supervisor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Supervisor{
		log:        log,
		bus:        bus,
		clients:    map[domainapi.ClientId]*ClientRegistration{},
		security:   map[domainapi.TaskId]tasks.SecurityMap{},
		packetsCh:  make(chan any, 64),
		deletedCh:  make(chan any, 64),
		securityCh: make(chan any, 64),
		quit:       make(chan chan struct{}),
	}
	if bus != nil {
		bus.Subscribe(eventbus.TopicStreamingPacket, s.packetsCh)
		bus.Subscribe(eventbus.TopicTaskDeleted, s.deletedCh)
		bus.Subscribe(eventbus.TopicTaskSecurity, s.securityCh)
	}
	go s.routeEvents()
	return s
}

func (s *Supervisor) Stop() {
	if s.bus != nil {
		s.bus.Unsubscribe(eventbus.TopicStreamingPacket, s.packetsCh)
		s.bus.Unsubscribe(eventbus.TopicTaskDeleted, s.deletedCh)
		s.bus.Unsubscribe(eventbus.TopicTaskSecurity, s.securityCh)
	}
	q := make(chan struct{})
	s.quit <- q
	<-q
}

func (s *Supervisor) routeEvents() {
	for {
		select {
		case ev := <-s.packetsCh:
			if notify, ok := ev.(eventbus.NotifyStreamingPacket); ok {
				s.fanOutPacket(notify)
			}

		case ev := <-s.deletedCh:
			if notify, ok := ev.(eventbus.NotifyTaskDeleted); ok {
				s.NotifyTaskDeleted(notify.TaskId)
			}

		case ev := <-s.securityCh:
			if notify, ok := ev.(eventbus.NotifyTaskSecurity); ok {
				sec := make(tasks.SecurityMap, len(notify.Security))
				for clientId, level := range notify.Security {
					sec[clientId] = level
				}
				s.NotifyTaskSecurity(notify.TaskId, sec)
			}

		case q := <-s.quit:
			close(q)
			return
		}
	}
}

func (s *Supervisor) fanOutPacket(notify eventbus.NotifyStreamingPacket) {
	packet, ok := notify.Packet.(*tasks.StreamingPacket)
	if !ok {
		s.log.Warnw("streaming packet event carried an unexpected payload type", "task_id", notify.TaskId.String())
		return
	}
	msg := DomainServerMessage{
		Kind:   MessageStreamingPacket,
		TaskId: notify.TaskId,
		Packet: packet,
	}

	s.mu.RLock()
	var targets []*ClientRegistration
	for _, c := range s.clients {
		if _, member := c.Memberships[notify.TaskId]; member {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range targets {
		s.sendToRegistration(c, msg)
	}
}

// NotifyTaskDeleted removes the task from every client's memberships
// and prunes clients left with no memberships and no open sockets.
func (s *Supervisor) NotifyTaskDeleted(taskId domainapi.TaskId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.security, taskId)
	for clientId, c := range s.clients {
		delete(c.Memberships, taskId)
		if len(c.Memberships) == 0 && len(c.Sockets) == 0 {
			delete(s.clients, clientId)
		}
	}
}

// NotifyTaskSecurity replaces the security map for a task.
func (s *Supervisor) NotifyTaskSecurity(taskId domainapi.TaskId, security tasks.SecurityMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.security[taskId] = security
}

// Grant adds taskId to a client's memberships, creating the client
// registration if this is its first one.
func (s *Supervisor) Grant(clientId domainapi.ClientId, taskId domainapi.TaskId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientId]
	if !ok {
		c = newClientRegistration(clientId)
		s.clients[clientId] = c
	}
	c.Memberships[taskId] = struct{}{}
}

// RegisterWebSocket attaches a negotiated Session to a client,
// creating its registration if needed.
func (s *Supervisor) RegisterWebSocket(clientId domainapi.ClientId, socketId string, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientId]
	if !ok {
		c = newClientRegistration(clientId)
		s.clients[clientId] = c
	}
	c.Sockets[socketId] = session
}

// UnregisterWebSocket drops one socket; the client registration itself
// survives unless it has neither sockets nor memberships left.
func (s *Supervisor) UnregisterWebSocket(clientId domainapi.ClientId, socketId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientId]
	if !ok {
		return
	}
	delete(c.Sockets, socketId)
	if len(c.Sockets) == 0 && len(c.Memberships) == 0 {
		delete(s.clients, clientId)
	}
}

// SendToClient delivers msg to every open socket a client currently
// holds, per its own negotiated encoding (spec.md §4.6, §6).
func (s *Supervisor) SendToClient(clientId domainapi.ClientId, msg DomainServerMessage) error {
	s.mu.RLock()
	c, ok := s.clients[clientId]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("client %s has no active registration", clientId)
	}
	return s.sendToRegistration(c, msg)
}

func (s *Supervisor) sendToRegistration(c *ClientRegistration, msg DomainServerMessage) error {
	s.mu.RLock()
	sockets := make([]*Session, 0, len(c.Sockets))
	for _, sess := range c.Sockets {
		sockets = append(sockets, sess)
	}
	s.mu.RUnlock()

	var firstErr error
	for _, sess := range sockets {
		if err := sess.Send(msg); err != nil && firstErr == nil {
			firstErr = err
			s.log.Warnw("failed delivering to client socket", "client_id", c.Id, "error", err)
		}
	}
	return firstErr
}
