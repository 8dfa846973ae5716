package market

import "sync"

// sink receives the finality events published by the processing loop.
type sink interface {
	deliver(Event)
}

// notifier fans every finality event out to the registered sinks. The
// processing loop publishes from a single goroutine, while watchers come and
// go concurrently.
type notifier struct {
	sync.RWMutex

	sinks map[sink]struct{}
}

func newNotifier() *notifier {
	return &notifier{
		sinks: make(map[sink]struct{}),
	}
}

// register adds the sink to the fan-out set. Registering the same sink twice
// has no effect.
func (n *notifier) register(s sink) {
	n.Lock()
	n.sinks[s] = struct{}{}
	n.Unlock()
}

// unregister removes the sink, so it stops receiving events.
func (n *notifier) unregister(s sink) {
	n.Lock()
	delete(n.sinks, s)
	n.Unlock()
}

// publish delivers the event to every registered sink, one after the other.
func (n *notifier) publish(event Event) {
	n.RLock()
	defer n.RUnlock()

	for s := range n.sinks {
		s.deliver(event)
	}
}
