package fixedinstances

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/instancedriver"
)

// fakeDriverClient records every call made to it, standing in for the
// HTTP driver client in tests that don't want a real server.
type fakeDriverClient struct {
	mu          sync.Mutex
	baseURL     string
	setParamsN  int
	lastParams  instancedriver.JsonObject
	setPlayN    int
	lastPlay    instancedriver.DesiredInstancePlayState
	powerCalls  []powerCall
	failNext    bool
}

type powerCall struct {
	channel string
	on      bool
}

func newFakeDriverClient() *fakeDriverClient {
	return &fakeDriverClient{baseURL: "http://fake.invalid"}
}

func (f *fakeDriverClient) SetParameters(params instancedriver.JsonObject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setParamsN++
	f.lastParams = params
	return nil
}

func (f *fakeDriverClient) SetDesiredPlayState(desired instancedriver.DesiredInstancePlayState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setPlayN++
	f.lastPlay = desired
	return nil
}

func (f *fakeDriverClient) SetPowerChannel(channel string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.powerCalls = append(f.powerCalls, powerCall{channel: channel, on: on})
	return nil
}

func (f *fakeDriverClient) SetBaseURL(baseURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseURL = baseURL
}

func (f *fakeDriverClient) BaseURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.baseURL
}

func (f *fakeDriverClient) counts() (setParamsN, setPlayN int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setParamsN, f.setPlayN
}

func newTestActor(t *testing.T, client *fakeDriverClient, media *MediaController, power *PowerController) (*Actor, chan instancedriver.Event) {
	t.Helper()
	events := make(chan instancedriver.Event, 8)
	a := NewActor(Deps{
		Id:     domainapi.InstanceId{Manufacturer: "acme", Model: "box", Serial: "1"},
		Client: client,
		Media:  media,
		Power:  power,
		events: events,
	})
	t.Cleanup(a.Stop)
	return a, events
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// S1 (spec.md §8): a disconnected instance accepts SetInstanceParameters
// without issuing any driver call, and the tick loop leaves it alone.
func TestActorDisconnectedInstanceDoesNotPushParameters(t *testing.T) {
	client := newFakeDriverClient()
	a, _ := newTestActor(t, client, nil, nil)

	if err := a.SetInstanceParameters(instancedriver.JsonObject{"gain": json.RawMessage(`[0]`)}); err != nil {
		t.Fatalf("SetInstanceParameters: %v", err)
	}

	time.Sleep(3 * updateInterval)
	n, _ := client.counts()
	if n != 0 {
		t.Fatalf("expected no driver call while disconnected, got %d", n)
	}
}

// S2 (spec.md §8): on Connected, one driver call is issued immediately
// (within a tick) even though the parameter was set before the instance
// connected.
func TestActorConnectPushesPendingParameters(t *testing.T) {
	client := newFakeDriverClient()
	a, events := newTestActor(t, client, nil, nil)

	if err := a.SetInstanceParameters(instancedriver.JsonObject{"gain": json.RawMessage(`[0]`)}); err != nil {
		t.Fatalf("SetInstanceParameters: %v", err)
	}
	events <- instancedriver.Event{Kind: instancedriver.EventConnected}

	waitForCondition(t, time.Second, func() bool {
		n, _ := client.counts()
		return n >= 1
	})
}

// Reconnect re-pushes parameters even when they were already quiescent,
// per spec.md §4.2 "on_connected: re-push parameters and desired play
// state".
func TestActorReconnectForcesRepush(t *testing.T) {
	client := newFakeDriverClient()
	a, events := newTestActor(t, client, nil, nil)

	if err := a.SetInstanceParameters(instancedriver.JsonObject{"gain": json.RawMessage(`[0]`)}); err != nil {
		t.Fatalf("SetInstanceParameters: %v", err)
	}
	events <- instancedriver.Event{Kind: instancedriver.EventConnected}
	waitForCondition(t, time.Second, func() bool {
		n, _ := client.counts()
		return n >= 1
	})

	events <- instancedriver.Event{Kind: instancedriver.EventConnectionLost}
	events <- instancedriver.Event{Kind: instancedriver.EventConnected}

	waitForCondition(t, time.Second, func() bool {
		n, _ := client.counts()
		return n >= 2
	})
}

func TestActorSetDesiredPlayStateRequiresMediaController(t *testing.T) {
	client := newFakeDriverClient()
	a, _ := newTestActor(t, client, nil, nil)

	err := a.SetInstanceDesiredPlayState(instancedriver.DesiredInstancePlayState{Kind: instancedriver.PlayStateStopped})
	if err == nil {
		t.Fatalf("expected InstanceNotCapableError, got nil")
	}
	var notCapable *domainapi.InstanceNotCapableError
	if !asInstanceNotCapable(err, &notCapable) {
		t.Fatalf("expected InstanceNotCapableError, got %T: %v", err, err)
	}
}

func asInstanceNotCapable(err error, target **domainapi.InstanceNotCapableError) bool {
	if e, ok := err.(*domainapi.InstanceNotCapableError); ok {
		*target = e
		return true
	}
	return false
}

func TestActorSetDesiredPlayStatePushesWhenConnected(t *testing.T) {
	client := newFakeDriverClient()
	media := NewMediaController()
	a, events := newTestActor(t, client, media, nil)

	events <- instancedriver.Event{Kind: instancedriver.EventConnected}
	if err := a.SetInstanceDesiredPlayState(instancedriver.DesiredInstancePlayState{Kind: instancedriver.PlayStatePlaying, PlayId: "p1"}); err != nil {
		t.Fatalf("SetInstanceDesiredPlayState: %v", err)
	}

	waitForCondition(t, time.Second, func() bool {
		_, n := client.counts()
		return n >= 1
	})
}

func TestActorMergeParametersIgnoresUnknownParameter(t *testing.T) {
	client := newFakeDriverClient()
	a, _ := newTestActor(t, client, nil, nil)

	if err := a.MergeInstanceParameters("gain", 0, json.RawMessage(`-6.0`)); err != nil {
		t.Fatalf("MergeInstanceParameters on unknown parameter should be silently ignored, got %v", err)
	}
}

func TestActorMergeParametersOverwritesExistingChannel(t *testing.T) {
	client := newFakeDriverClient()
	a, _ := newTestActor(t, client, nil, nil)

	if err := a.SetInstanceParameters(instancedriver.JsonObject{"gain": json.RawMessage(`[0,0]`)}); err != nil {
		t.Fatalf("SetInstanceParameters: %v", err)
	}
	if err := a.MergeInstanceParameters("gain", 1, json.RawMessage(`-6.0`)); err != nil {
		t.Fatalf("MergeInstanceParameters: %v", err)
	}

	snap := a.Snapshot()
	var arr []json.RawMessage
	if err := json.Unmarshal(snap.Parameters["gain"], &arr); err != nil {
		t.Fatalf("unmarshalling merged gain: %v", err)
	}
	if len(arr) != 2 || string(arr[1]) != "-6.0" {
		t.Fatalf("expected channel 1 overwritten to -6.0, got %v", arr)
	}
}

func TestActorTaskSpecBindsOnlyMatchingInstance(t *testing.T) {
	client := newFakeDriverClient()
	a, _ := newTestActor(t, client, NewMediaController(), nil)

	other := domainapi.InstanceId{Manufacturer: "acme", Model: "box", Serial: "other"}
	a.NotifyTaskSpec(domainapi.TaskId{App: "app", Task: "t1"}, []domainapi.InstanceId{other}, TaskBinding{Kind: BindingPlaying})

	snap := a.Snapshot()
	if snap.Binding != nil {
		t.Fatalf("expected no binding for an instance not named by the task spec, got %+v", snap.Binding)
	}
}

func TestActorTaskDeletedClearsBinding(t *testing.T) {
	client := newFakeDriverClient()
	a, _ := newTestActor(t, client, NewMediaController(), nil)

	id := domainapi.InstanceId{Manufacturer: "acme", Model: "box", Serial: "1"}
	taskId := domainapi.TaskId{App: "app", Task: "t1"}
	a.NotifyTaskSpec(taskId, []domainapi.InstanceId{id}, TaskBinding{Kind: BindingPlaying})

	snap := a.Snapshot()
	if snap.Binding == nil {
		t.Fatalf("expected binding after NotifyTaskSpec")
	}

	a.NotifyTaskDeleted(taskId)
	snap = a.Snapshot()
	if snap.Binding != nil {
		t.Fatalf("expected binding cleared after NotifyTaskDeleted, got %+v", snap.Binding)
	}
}
