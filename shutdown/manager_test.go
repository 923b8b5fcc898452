package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"inpaint_backend/core"
)

func TestManager_WaitsForOperations(t *testing.T) {
	m := NewManager(nil, WithTimeout(time.Second))

	release := make(chan struct{})
	running := make(chan struct{})
	opDone := make(chan error, 1)
	go func() {
		opDone <- m.WrapOperation(func() error {
			close(running)
			<-release
			return nil
		})
	}()
	<-running

	var handlerSawActive int64 = -1
	m.Register("db", 40, func(ctx context.Context) error {
		handlerSawActive = m.ActiveOperations()
		return nil
	})

	shutdownDone := make(chan []error, 1)
	go func() { shutdownDone <- m.Shutdown(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	if !m.IsShuttingDown() {
		t.Error("IsShuttingDown() = false during shutdown")
	}
	if err := m.WrapOperation(func() error { return nil }); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("WrapOperation() during shutdown = %v, want ErrShuttingDown", err)
	}

	close(release)
	if errs := <-shutdownDone; len(errs) != 0 {
		t.Errorf("Shutdown() errors = %v", errs)
	}
	if err := <-opDone; err != nil {
		t.Errorf("operation error = %v", err)
	}
	if handlerSawActive != 0 {
		t.Errorf("handler ran with %d active operations", handlerSawActive)
	}
	if m.ExitCode() != core.ExitCodeSuccess {
		t.Errorf("ExitCode() = %d, want success", m.ExitCode())
	}
}

func TestManager_ShutdownOnce(t *testing.T) {
	m := NewManager(nil)
	calls := 0
	m.Register("x", 0, func(ctx context.Context) error {
		calls++
		return errors.New("fail")
	})

	first := m.Shutdown(context.Background())
	second := m.Shutdown(context.Background())
	if calls != 1 {
		t.Errorf("handler ran %d times", calls)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Errorf("errors = %v / %v", first, second)
	}

	select {
	case <-m.Done():
	default:
		t.Error("Done() not closed after Shutdown")
	}
}

func TestManager_OperationTimeout(t *testing.T) {
	m := NewManager(nil, WithTimeout(20*time.Millisecond))
	release := make(chan struct{})
	defer close(release)

	started := make(chan struct{})
	go m.WrapOperation(func() error {
		close(started)
		<-release
		return nil
	})
	<-started

	errs := m.Shutdown(context.Background())
	if len(errs) != 1 || !errors.Is(errs[0], ErrWaitTimeout) {
		t.Errorf("Shutdown() errors = %v, want ErrWaitTimeout", errs)
	}
}

func TestManager_RegisteredHandlers(t *testing.T) {
	m := NewManager(nil)
	noop := func(ctx context.Context) error { return nil }
	m.Register("logger", 90, noop)
	m.Register("server", 10, noop)

	got := m.RegisteredHandlers()
	if len(got) != 2 || got[0] != "server" || got[1] != "logger" {
		t.Errorf("RegisteredHandlers() = %v", got)
	}
}
