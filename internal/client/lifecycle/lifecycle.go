// Package lifecycle broadcasts the foreground/background state of the
// application to interested components.
package lifecycle

import "sync"

// AppState is the visibility of the application.
type AppState int

const (
	Active AppState = iota
	Inactive
	Background
)

func (s AppState) String() string {
	switch s {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	case Background:
		return "background"
	default:
		return "unknown"
	}
}

// Listener is called with the new state after every change.
type Listener func(AppState)

// Source is what consumers of the signal depend on.
type Source interface {
	Current() AppState
	Subscribe(fn Listener) (unsubscribe func())
}

type entry struct {
	id int
	fn Listener
}

// Signal is an in-process Source. Listeners run synchronously on the
// goroutine calling Set, in registration order.
type Signal struct {
	mu        sync.Mutex
	state     AppState
	listeners []entry
	nextID    int

	// serialises deliveries so listeners see changes in order
	setMu sync.Mutex
}

func NewSignal(initial AppState) *Signal {
	return &Signal{state: initial}
}

func (s *Signal) Current() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Set changes the state and notifies listeners. Setting the current state
// again is a no-op.
func (s *Signal) Set(state AppState) {
	s.setMu.Lock()
	defer s.setMu.Unlock()

	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	listeners := make([]entry, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(state)
	}
}

func (s *Signal) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, entry{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}
