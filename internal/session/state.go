package session

import (
	"sync"

	"github.com/foxseedlab/bolo/internal/audio"
	"github.com/foxseedlab/bolo/internal/transcriber"
)

// State is an immutable snapshot of what the controller exposes to
// observers.
type State struct {
	Listening      bool
	Level          audio.Level
	RecognizedText string
	SessionState   transcriber.State
	// LastError is the error that ended the most recent session, if any.
	LastError error
}

// stateStore publishes State snapshots. Subscribers hold a one-slot channel
// that always carries the latest value; slow readers miss intermediate
// states but never block the writer.
type stateStore struct {
	mu     sync.Mutex
	state  State
	subs   map[int]chan State
	nextID int
}

func newStateStore() *stateStore {
	return &stateStore{
		state: State{Level: audio.MinLevel, SessionState: transcriber.StateIdle},
		subs:  make(map[int]chan State),
	}
}

func (s *stateStore) snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stateStore) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	for _, ch := range s.subs {
		publishLatest(ch, s.state)
	}
}

func (s *stateStore) subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan State, 1)
	ch <- s.state
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func publishLatest(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
