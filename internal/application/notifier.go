package application

import "sync"

// SessionListener receives an event after a session transition has been
// durably applied. Listeners run synchronously on the transitioning
// goroutine and should hand anything slow to their own workers.
type SessionListener func(event SessionEvent)

// sessionNotifier fans transition events out to registered listeners. It makes
// no delivery guarantees beyond "after the transition succeeded"; the engine
// does not depend on any particular push mechanism.
type sessionNotifier struct {
	mu        sync.RWMutex
	listeners []SessionListener
}

func newSessionNotifier() *sessionNotifier {
	return &sessionNotifier{}
}

func (n *sessionNotifier) subscribe(listener SessionListener) {
	if listener == nil {
		return
	}
	n.mu.Lock()
	n.listeners = append(n.listeners, listener)
	n.mu.Unlock()
}

func (n *sessionNotifier) notify(event SessionEvent) {
	n.mu.RLock()
	listeners := make([]SessionListener, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}
