package fixedinstances

import (
	"time"

	"go.uber.org/zap"

	"github.com/audiocloud/domain-server/instancedriver"
)

// driverFeedBackoff is how long runDriverFeed waits before re-subscribing
// after a failed subscribe or a stream that ended (driver restarted,
// network blip). The teacher's state_machine.go left this as a bare
// "TODO: re-establish connection" on stream end; this resolves it.
const driverFeedBackoff = 250 * time.Millisecond

// runDriverFeed owns the reconnect loop for one instance's driver event
// stream, so Actor.run's select loop never blocks on subscribe/backoff.
// It subscribes, forwards every event onto out, and on stream end or
// subscribe error waits driverFeedBackoff before trying again, until
// quit is closed.
func runDriverFeed(baseURL func() string, log *zap.SugaredLogger, out chan<- instancedriver.Event, quit <-chan struct{}) {
	for {
		select {
		case <-quit:
			return
		default:
		}

		events, stopper, err := instancedriver.Subscribe(baseURL(), log)
		if err != nil {
			log.Debugw("driver subscribe failed, backing off", "error", err)
			if !sleepOrQuit(driverFeedBackoff, quit) {
				return
			}
			continue
		}

		streamEnded := drainDriverEvents(events, out, quit)
		stopper.Stop()
		if !streamEnded {
			return
		}
		if !sleepOrQuit(driverFeedBackoff, quit) {
			return
		}
	}
}

// drainDriverEvents forwards events to out until the stream closes or
// quit fires. Returns true if the stream closed (caller should
// reconnect), false if quit fired (caller should stop).
func drainDriverEvents(events <-chan instancedriver.Event, out chan<- instancedriver.Event, quit <-chan struct{}) bool {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return true
			}
			select {
			case out <- ev:
			case <-quit:
				return false
			}
		case <-quit:
			return false
		}
	}
}

func sleepOrQuit(d time.Duration, quit <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-quit:
		return false
	}
}
