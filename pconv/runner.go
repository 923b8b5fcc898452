package pconv

import (
	"context"
	"fmt"
	"sync"

	"inpaint_backend/tensor"
)

// Runner serializes inference on one Model. The model sits in a single-slot
// channel; Infer takes it out for the duration of a forward pass, so at most
// one pass is in flight and later callers queue until it is returned or
// their context ends.
//
// This organism composes:
//   - Architecture.CheckInput for request validation
//   - Model.Forward for the pass itself
//   - ErrRunnerClosed, ErrAcquireTimeout (atoms from errors.go)
type Runner struct {
	mu     sync.Mutex
	slot   chan Model
	arch   Architecture
	closed bool
	runs   int
}

// NewRunner wraps model in a single-slot runner.
func NewRunner(model Model) (*Runner, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil model", ErrInvalidParams)
	}
	r := &Runner{
		slot: make(chan Model, 1),
		arch: model.Architecture(),
	}
	r.slot <- model
	return r, nil
}

// OpenRunner loads the bundle at path and wraps the model in a runner.
func OpenRunner(path string) (*Runner, error) {
	model, err := LoadModel(path)
	if err != nil {
		return nil, err
	}
	return NewRunner(model)
}

// Architecture returns the architecture of the wrapped model.
func (r *Runner) Architecture() Architecture { return r.arch }

// Infer runs one forward pass. masked and mask are (C, H, W); the batch axis
// is added before the pass and removed afterwards. ctx only bounds the wait
// for the model: once the pass starts it runs to completion.
//
// Error cases:
//   - ErrShapeMismatch: inputs or prediction do not match the model
//   - ErrAcquireTimeout: ctx ended while another pass was running
//   - ErrRunnerClosed: Close has been called
//   - ErrInferenceFailed: the model returned an error
func (r *Runner) Infer(ctx context.Context, masked, mask *tensor.Tensor) (*tensor.Tensor, error) {
	if err := r.arch.CheckInput(masked, mask); err != nil {
		return nil, err
	}

	model, err := r.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Release(model)

	out, err := model.Forward(masked.Unsqueeze(), mask.Unsqueeze())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}

	r.mu.Lock()
	r.runs++
	r.mu.Unlock()

	want := masked.Unsqueeze().Shape()
	if !out.Shape().Equal(want) {
		return nil, fmt.Errorf("%w: prediction %v, want %v", ErrShapeMismatch, out.Shape(), want)
	}
	return out.Squeeze()
}

// Acquire takes the model out of its slot, waiting until it is free, ctx is
// done or the runner is closed.
func (r *Runner) Acquire(ctx context.Context) (Model, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRunnerClosed
	}
	r.mu.Unlock()

	select {
	case m, ok := <-r.slot:
		if !ok {
			return nil, ErrRunnerClosed
		}
		return m, nil
	case <-ctx.Done():
		return nil, ErrAcquireTimeout
	}
}

// Release puts the model back. After Close the model is dropped. Passing nil
// is a no-op.
func (r *Runner) Release(m Model) {
	if m == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.slot <- m:
	default:
	}
}

// Close stops the runner. A pass already in flight completes; later calls
// return ErrRunnerClosed. Close is safe to call multiple times.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	select {
	case <-r.slot:
	default:
	}
	close(r.slot)
	return nil
}

// IsClosed reports whether Close has been called.
func (r *Runner) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Runs returns the number of completed forward passes.
func (r *Runner) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}
