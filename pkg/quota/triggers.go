package quota

import "context"

// Notifier delivers zero-argument wake notifications for an ambient signal
// such as "connectivity restored" or "visibility regained". Each delivery
// means conditions may have improved and queued records are worth retrying.
type Notifier interface {
	// Notify returns the channel on which wake notifications arrive.
	// Closing the channel ends the subscription.
	Notify() <-chan struct{}
}

// Signal is a simple channel-backed Notifier. Integrations call Wake when
// their ambient condition fires.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates a Signal with a small buffer so Wake never blocks.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Wake delivers one notification. If a notification is already pending the
// call coalesces into it.
func (s *Signal) Wake() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Notify implements Notifier.
func (s *Signal) Notify() <-chan struct{} {
	return s.ch
}

// WatchTriggers subscribes the service to wake signals, each of which
// triggers a background flush of the whole backlog. Subscription happens at
// most once per service lifetime; subsequent calls are no-ops regardless of
// the notifiers passed.
//
// The subscriptions run until done is closed or a notifier closes its
// channel.
func (s *Service) WatchTriggers(done <-chan struct{}, notifiers ...Notifier) {
	s.watchOnce.Do(func() {
		for _, n := range notifiers {
			if n == nil {
				continue
			}
			go s.watchTrigger(done, n)
		}
	})
}

func (s *Service) watchTrigger(done <-chan struct{}, n Notifier) {
	for {
		select {
		case <-done:
			return
		case _, ok := <-n.Notify():
			if !ok {
				return
			}
			s.FlushPending(context.Background(), "")
		}
	}
}
