package shutdown

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestShutdownRegistry_Order(t *testing.T) {
	r := NewShutdownRegistry()
	var order []string
	add := func(name string, priority int) {
		r.Register(name, priority, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	add("logger", 90)
	add("server", 10)
	add("db", 40)
	add("writer", 40)

	if errs := r.Shutdown(context.Background()); len(errs) != 0 {
		t.Fatalf("Shutdown() errors = %v", errs)
	}
	want := "server,db,writer,logger"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
	if names := strings.Join(r.Names(), ","); names != want {
		t.Errorf("Names() = %s, want %s", names, want)
	}
}

func TestShutdownRegistry_CollectsErrors(t *testing.T) {
	r := NewShutdownRegistry()
	boom := errors.New("boom")
	ran := false
	r.Register("db", 1, func(ctx context.Context) error { return boom })
	r.Register("logger", 2, func(ctx context.Context) error { ran = true; return nil })

	errs := r.Shutdown(context.Background())
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if !errors.Is(errs[0], boom) || !strings.HasPrefix(errs[0].Error(), "db: ") {
		t.Errorf("error = %v", errs[0])
	}
	if !ran {
		t.Error("handler after a failure did not run")
	}
}

func TestShutdownRegistry_RunsOnce(t *testing.T) {
	r := NewShutdownRegistry()
	calls := 0
	r.Register("x", 0, func(ctx context.Context) error { calls++; return nil })

	r.Shutdown(context.Background())
	r.Shutdown(context.Background())
	r.Register("late", 0, func(ctx context.Context) error { calls++; return nil })

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, late registration kept", r.Count())
	}
}
