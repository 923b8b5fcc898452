package shutdown

import "sync"

// SignalCounter counts shutdown signals and calls onForce when the count
// reaches forceAfter.
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	forceAfter int
	onForce    func()
}

// NewSignalCounter returns a counter. onForce may be nil.
func NewSignalCounter(forceAfter int, onForce func()) *SignalCounter {
	return &SignalCounter{forceAfter: forceAfter, onForce: onForce}
}

// Increment records a signal and returns the new count.
func (s *SignalCounter) Increment() int {
	s.mu.Lock()
	s.count++
	count, force := s.count, s.count >= s.forceAfter && s.onForce != nil
	onForce := s.onForce
	s.mu.Unlock()

	if force {
		onForce()
	}
	return count
}

// Count returns the number of signals seen.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
