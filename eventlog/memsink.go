package eventlog

import "sync"

// MemorySink captures every emitted event in memory, for tests and for
// any external collaborator that wants to inspect a run's event stream
// without standing up real persistence.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Emit appends ev to the captured list.
func (s *MemorySink) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, ev)
}

// Events returns a copy of every event captured so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, len(s.events))
	copy(out, s.events)

	return out
}

// CountByType returns the number of captured events of the given type.
func (s *MemorySink) CountByType(t Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for _, ev := range s.events {
		if ev.Type == t {
			n++
		}
	}

	return n
}
