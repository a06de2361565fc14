// Package memguard samples process resident memory so the destination
// queue's worker-count manager can refuse to add workers under memory
// pressure. Go has no direct portable RSS syscall, so this reads the
// runtime's own heap/stack accounting via runtime.MemStats as a proxy —
// close enough for an advisory governor that only ever widens or
// narrows a worker pool, never blocks progress.
package memguard

import (
	"runtime"
	"sync"
)

// Sampler tracks resident memory usage over time. The zero value is
// ready to use.
type Sampler struct {
	mu       sync.Mutex
	lastMB   uint64
	maxMB    uint64
}

// CurrentMB forces a fresh read and returns resident memory in MiB.
func (s *Sampler) CurrentMB() uint64 {
	var ms runtime.MemStats

	runtime.ReadMemStats(&ms)

	mb := (ms.HeapInuse + ms.StackInuse + ms.HeapIdle - ms.HeapReleased) / (1024 * 1024)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastMB = mb
	if mb > s.maxMB {
		s.maxMB = mb
	}

	return mb
}

// MaxMB returns the highest value CurrentMB has ever observed.
func (s *Sampler) MaxMB() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.maxMB
}

// OverLimit reports whether the most recent sample exceeds limitMB,
// taking a fresh sample first.
func (s *Sampler) OverLimit(limitMB uint64) bool {
	return s.CurrentMB() > limitMB
}
