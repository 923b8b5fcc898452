// Package shutdown coordinates graceful shutdown: signal handling, ordered
// cleanup handlers, and waiting for in-flight inpaint cycles.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"inpaint_backend/core"
	"inpaint_backend/logging"
)

// DefaultTimeout bounds the whole shutdown sequence.
const DefaultTimeout = 60 * time.Second

// ErrShuttingDown is returned by WrapOperation once shutdown has begun.
var ErrShuttingDown = errors.New("shutdown: service is shutting down")

// Manager owns the shutdown sequence: it waits for in-flight operations,
// then runs registered handlers in priority order.
type Manager struct {
	logger   *logging.Logger
	timeout  time.Duration
	registry *ShutdownRegistry
	tracker  *OperationTracker
	exit     func(int)

	mu       sync.Mutex
	started  bool
	done     chan struct{}
	once     sync.Once
	exitCode int
	errs     []error
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets the shutdown timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithExitFunc replaces os.Exit for the forced exit on a second signal.
func WithExitFunc(fn func(int)) Option {
	return func(m *Manager) { m.exit = fn }
}

// NewManager returns a Manager. A nil logger discards output.
func NewManager(logger *logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		logger:   logger.Named("shutdown"),
		timeout:  DefaultTimeout,
		registry: NewShutdownRegistry(),
		tracker:  NewOperationTracker(),
		exit:     os.Exit,
		done:     make(chan struct{}),
		exitCode: core.ExitCodeSuccess,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a cleanup handler. Lower priorities run first.
//
// Priorities used by the service:
//
//	10 HTTP server
//	30 run history writer
//	40 database
//	45 temp files
//	90 logger sync
func (m *Manager) Register(name string, priority int, fn core.ShutdownFunc) {
	m.registry.Register(name, priority, fn)
}

// Start listens for SIGINT and SIGTERM. The first signal triggers Shutdown
// and cancel (if non-nil); a second signal exits immediately.
func (m *Manager) Start(cancel context.CancelFunc) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	counter := NewSignalCounter(2, func() {
		m.logger.Warn("Second signal received, forcing exit")
		m.exit(core.ExitCodeError)
	})

	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case sig := <-sigCh:
				if counter.Increment() > 1 {
					continue
				}
				m.logger.Info("Signal received, shutting down", zap.String("signal", sig.String()))
				m.setExitCode(signalExitCode(sig))
				if cancel != nil {
					cancel()
				}
				go m.Shutdown(context.Background())
			case <-m.done:
				return
			}
		}
	}()
}

func signalExitCode(sig os.Signal) int {
	if sig == syscall.SIGTERM {
		return core.ExitCodeSIGTERM
	}
	return core.ExitCodeSIGINT
}

func (m *Manager) setExitCode(code int) {
	m.mu.Lock()
	m.exitCode = code
	m.mu.Unlock()
}

// Shutdown runs the sequence once; later calls wait for the first to finish
// and return its errors.
func (m *Manager) Shutdown(ctx context.Context) []error {
	m.once.Do(func() {
		defer close(m.done)

		ctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		start := time.Now()
		m.tracker.Close()
		if active := m.tracker.ActiveCount(); active > 0 {
			m.logger.Info("Waiting for in-flight operations", zap.Int64("active", active))
		}
		remaining := m.timeout
		if deadline, ok := ctx.Deadline(); ok {
			remaining = time.Until(deadline)
		}
		var errs []error
		if err := m.tracker.Wait(remaining); err != nil {
			m.logger.Warn("Operations still running at shutdown", zap.Int64("active", m.tracker.ActiveCount()))
			errs = append(errs, err)
		}

		errs = append(errs, m.registry.Shutdown(ctx)...)
		for _, err := range errs {
			m.logger.Error("Shutdown handler failed", zap.Error(err))
		}
		m.logger.Info("Shutdown complete",
			zap.Duration("duration", time.Since(start)),
			zap.Int("errors", len(errs)))

		m.mu.Lock()
		m.errs = errs
		m.mu.Unlock()
	})
	<-m.done

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs
}

// Wait blocks until Shutdown has completed.
func (m *Manager) Wait() {
	<-m.done
}

// Done is closed when Shutdown has completed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// ExitCode returns the code the process should exit with: the signal code
// if a signal started shutdown, success otherwise.
func (m *Manager) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode
}

// WrapOperation runs fn as a tracked operation so Shutdown waits for it.
func (m *Manager) WrapOperation(fn func() error) error {
	if !m.tracker.Start() {
		return ErrShuttingDown
	}
	defer m.tracker.Done()
	return fn()
}

// ActiveOperations returns the number of tracked operations in flight.
func (m *Manager) ActiveOperations() int64 {
	return m.tracker.ActiveCount()
}

// IsShuttingDown reports whether Shutdown has begun.
func (m *Manager) IsShuttingDown() bool {
	return m.tracker.IsClosed()
}

// RegisteredHandlers returns handler names in execution order.
func (m *Manager) RegisteredHandlers() []string {
	return m.registry.Names()
}
