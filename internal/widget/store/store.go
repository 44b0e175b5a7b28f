// Package store holds the conversation state of one widget instance.
package store

import (
	"sync"

	"github.com/zhouzirui/z-tavern/widget/internal/model/conversation"
)

// Store owns the session id, the conversation and the pending input for the
// lifetime of one widget. Each Store is independent; construct one per widget.
type Store struct {
	mu          sync.RWMutex
	state       conversation.State
	subscribers map[int]chan conversation.State
	nextSubID   int
}

// New returns an empty store.
func New() *Store {
	return &Store{subscribers: make(map[int]chan conversation.State)}
}

// Snapshot returns the current state. The returned value is immutable and may
// be retained freely.
func (s *Store) Snapshot() conversation.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch applies actions in order as a single atomic transition: readers
// observe either none or all of them. The resulting state is returned.
func (s *Store) Dispatch(actions ...Action) conversation.State {
	if len(actions) == 0 {
		return s.Snapshot()
	}

	s.mu.Lock()
	next := s.state
	for _, a := range actions {
		next = Reduce(next, a)
	}
	next.Version = s.state.Version + 1
	s.state = next
	for _, ch := range s.subscribers {
		publish(ch, next)
	}
	s.mu.Unlock()

	return next
}

// Subscribe returns a channel that receives the latest state after every
// dispatch. Slow readers only ever see the most recent state. Call cancel to
// stop receiving; the channel is closed afterwards.
func (s *Store) Subscribe() (<-chan conversation.State, func()) {
	ch := make(chan conversation.State, 1)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// publish replaces whatever is buffered with state. Called with s.mu held, so
// there is a single writer per channel.
func publish(ch chan conversation.State, state conversation.State) {
	select {
	case <-ch:
	default:
	}
	ch <- state
}
