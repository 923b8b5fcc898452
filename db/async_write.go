package db

import (
	"sync"
	"time"
)

// DefaultQueueCapacity is the default number of pending writes.
const DefaultQueueCapacity = 100

// DefaultDrainTimeout bounds how long Close waits for queued writes.
const DefaultDrainTimeout = 30 * time.Second

// WriteOperation is one queued write.
type WriteOperation struct {
	Data      interface{}
	Timestamp time.Time
}

// WriteHandler performs a queued write. Errors go to the writer's error
// callback.
type WriteHandler func(op WriteOperation) error

// AsyncWriter moves writes off the caller's goroutine through a buffered
// queue drained by one background goroutine.
type AsyncWriter struct {
	queue   chan WriteOperation
	handler WriteHandler
	onError func(op WriteOperation, err error)
	done    chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewAsyncWriter returns a stopped writer with room for capacity pending
// writes. onError may be nil.
func NewAsyncWriter(handler WriteHandler, capacity int, onError func(WriteOperation, error)) *AsyncWriter {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if onError == nil {
		onError = func(WriteOperation, error) {}
	}
	return &AsyncWriter{
		queue:   make(chan WriteOperation, capacity),
		handler: handler,
		onError: onError,
		done:    make(chan struct{}),
	}
}

// Start launches the background goroutine. Extra calls are no-ops.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.closed {
		return
	}
	w.started = true
	go w.run()
}

func (w *AsyncWriter) run() {
	defer close(w.done)
	for op := range w.queue {
		if err := w.handler(op); err != nil {
			w.onError(op, err)
		}
	}
}

// Write queues data without blocking. It returns false when the writer is
// closed or the queue is full.
func (w *AsyncWriter) Write(data interface{}) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}
	select {
	case w.queue <- WriteOperation{Data: data, Timestamp: time.Now()}:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued writes.
func (w *AsyncWriter) Pending() int {
	return len(w.queue)
}

// IsStarted reports whether the background goroutine is running.
func (w *AsyncWriter) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started && !w.closed
}

// Close stops accepting writes and waits up to timeout for the queue to
// drain. It returns false if the timeout expired first.
func (w *AsyncWriter) Close(timeout time.Duration) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return true
	}
	w.closed = true
	started := w.started
	close(w.queue)
	w.mu.Unlock()

	if !started {
		return true
	}
	select {
	case <-w.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
