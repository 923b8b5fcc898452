package shutdown

import (
	"errors"
	"sync"
	"time"
)

// ErrTrackerClosed is returned when an operation starts after shutdown began.
var ErrTrackerClosed = errors.New("shutdown: operation tracker is closed")

// ErrWaitTimeout is returned when in-flight operations outlive the wait.
var ErrWaitTimeout = errors.New("shutdown: operations did not complete in time")

// OperationTracker counts in-flight operations, such as a running inpaint
// cycle, so shutdown can wait for them.
type OperationTracker struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	active int64
	closed bool
}

// NewOperationTracker returns an open tracker.
func NewOperationTracker() *OperationTracker {
	return &OperationTracker{}
}

// Start registers an operation. It returns false once the tracker is closed;
// the caller must not run the operation then. Every true must be matched by
// Done.
func (t *OperationTracker) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	t.wg.Add(1)
	t.active++
	return true
}

// Done marks an operation finished.
func (t *OperationTracker) Done() {
	t.mu.Lock()
	t.active--
	t.mu.Unlock()
	t.wg.Done()
}

// Wait blocks until every started operation is done or timeout elapses.
func (t *OperationTracker) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrWaitTimeout
	}
}

// Close rejects new operations.
func (t *OperationTracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// ActiveCount returns the number of in-flight operations.
func (t *OperationTracker) ActiveCount() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// IsClosed reports whether Close has been called.
func (t *OperationTracker) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
