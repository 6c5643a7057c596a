package tasks

import (
	"testing"
	"time"

	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/eventbus"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *fakeBinder) {
	t.Helper()
	binder := &fakeBinder{}
	s := NewSupervisor(SupervisorDeps{
		Bus:             eventbus.New(),
		EngineFactory:   func(domainapi.TaskId) (Engine, error) { return newFakeEngine(), nil },
		Instances:       binder,
		MaxPacketAgeMs:  1000,
		MaxPacketFrames: 1000,
	})
	t.Cleanup(s.Stop)
	return s, binder
}

// Invariant 7 (spec.md §8): CreateTask; DeleteTask; CreateTask succeeds.
func TestSupervisorCreateDeleteCreateRoundTrips(t *testing.T) {
	s, _ := newTestSupervisor(t)
	id := domainapi.TaskId{App: "app", Task: "t1"}

	if err := s.CreateTask(id, TaskSpec{}); err != nil {
		t.Fatalf("first CreateTask: %v", err)
	}
	if err := s.CreateTask(id, TaskSpec{}); err == nil {
		t.Fatalf("expected TaskExists on duplicate create")
	}
	if err := s.DeleteTask(id); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if err := s.CreateTask(id, TaskSpec{}); err != nil {
		t.Fatalf("re-CreateTask after delete: %v", err)
	}
}

func TestSupervisorUnknownTaskOperationsReturnNotFound(t *testing.T) {
	s, _ := newTestSupervisor(t)
	id := domainapi.TaskId{App: "app", Task: "ghost"}

	if _, err := s.GetTaskWithStatusAndSpec(id); err == nil {
		t.Fatalf("expected TaskNotFound")
	} else if _, ok := err.(*domainapi.TaskNotFoundError); !ok {
		t.Fatalf("expected TaskNotFoundError, got %T", err)
	}

	if err := s.PlayTask(id, PlaySpec{PlayId: "p1"}); err == nil {
		t.Fatalf("expected TaskNotFound from PlayTask on unknown task")
	}
}

// Invariant 5 (spec.md §8): fixed_instance_membership[i] = t iff
// tasks[t].spec currently references i.
func TestSupervisorMembershipTracksTaskSpec(t *testing.T) {
	s, _ := newTestSupervisor(t)
	id := domainapi.TaskId{App: "app", Task: "membership"}
	instance := domainapi.InstanceId{Manufacturer: "acme", Model: "box", Serial: "1"}

	if err := s.CreateTask(id, TaskSpec{FixedInstances: []domainapi.InstanceId{instance}}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	waitForMembership(t, s, instance, id)

	if err := s.DeleteTask(id); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}

	waitForNoMembership(t, s, instance)
}

func waitForMembership(t *testing.T, s *Supervisor, instance domainapi.InstanceId, want domainapi.TaskId) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.RLock()
		got, ok := s.membership[instance]
		s.mu.RUnlock()
		if ok && got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("membership for %s never converged to %s", instance, want)
}

func waitForNoMembership(t *testing.T, s *Supervisor, instance domainapi.InstanceId) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.RLock()
		_, ok := s.membership[instance]
		s.mu.RUnlock()
		if !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("membership for %s still present after delete", instance)
}
