package instancedriver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bernerdschaefer/eventsource"
	"go.uber.org/zap"
)

// Stopper stops a subscription started by Subscribe.
type Stopper interface {
	Stop()
}

type stopperChan chan struct{}

func (s stopperChan) Stop() { close(s) }

const apiEventsPath = "/events"

// Subscribe opens the driver's server-sent event stream and decodes
// each event into an Event, mirroring the teacher's remoteAgent.Events().
// The returned channel is closed when the stream ends; the caller (the
// FixedInstanceActor) is responsible for re-subscribing, per spec.md
// §4.2 "on stream end, re-subscribe".
func Subscribe(baseURL string, log *zap.SugaredLogger) (<-chan Event, Stopper, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	req, err := http.NewRequest(http.MethodGet, baseURL+apiVersionPrefix+apiEventsPath, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("constructing event stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	var (
		events = make(chan Event)
		stop   = make(chan struct{})
		es     = eventsource.New(req, 1*time.Second)
	)

	go func() {
		<-stop
		es.Close()
	}()

	go func() {
		defer close(events)
		for {
			ev, err := es.Read()
			if err != nil {
				log.Infow("instance driver event stream ended", "base_url", baseURL, "error", err)
				return
			}
			var decoded Event
			if err := json.Unmarshal(ev.Data, &decoded); err != nil {
				log.Warnw("instance driver sent an undecodable event", "base_url", baseURL, "error", err)
				continue
			}
			select {
			case events <- decoded:
			case <-stop:
				return
			}
		}
	}()

	return events, stopperChan(stop), nil
}
