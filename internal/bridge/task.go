package bridge

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Task is a unit of asynchronous work that has not run yet. It is created
// cold, bound to exactly one scheduler on first use, and completes exactly
// once. Attempting to run a task a second time fails with ErrTaskReused.
type Task[T any] struct {
	fn        func(context.Context) (T, error)
	bound     atomic.Pointer[scheduler]
	completed atomic.Bool
	done      chan struct{}
	val       T
	err       error
}

// NewTask wraps fn as a deferred computation. fn must honor ctx cancellation
// for timeouts to release the underlying scheduler promptly.
func NewTask[T any](fn func(context.Context) (T, error)) *Task[T] {
	return &Task[T]{fn: fn, done: make(chan struct{})}
}

// bind claims the task for s. The CAS makes cross-scheduler resumption
// impossible: once bound, no other scheduler can ever accept this task.
func (t *Task[T]) bind(s *scheduler) error {
	if t.fn == nil {
		return fmt.Errorf("bridge: task has no work")
	}
	if !t.bound.CompareAndSwap(nil, s) {
		return ErrTaskReused
	}
	return nil
}

func (t *Task[T]) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			t.complete(zero, fmt.Errorf("bridge: task panicked: %v", r))
		}
	}()
	v, err := t.fn(ctx)
	t.complete(v, err)
}

// fail completes the task without running it (scheduler torn down before
// the queued job was reached).
func (t *Task[T]) fail(err error) {
	var zero T
	t.complete(zero, err)
}

func (t *Task[T]) complete(v T, err error) {
	if !t.completed.CompareAndSwap(false, true) {
		return
	}
	t.val = v
	t.err = err
	close(t.done)
}
