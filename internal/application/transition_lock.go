package application

import "sync"

// transitionLocks serializes lifecycle transitions per session key. A caller
// that finds the key already held loses the race immediately instead of
// queueing; the state machine never retries on its own.
type transitionLocks struct {
	mu   sync.Mutex
	held map[SessionKey]struct{}
}

func newTransitionLocks() *transitionLocks {
	return &transitionLocks{held: make(map[SessionKey]struct{})}
}

// acquire claims the key, reporting false when another transition holds it.
func (l *transitionLocks) acquire(key SessionKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

// release frees the key for the next transition.
func (l *transitionLocks) release(key SessionKey) {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
}
