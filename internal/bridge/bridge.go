// Package bridge runs deferred asynchronous work to completion from
// synchronous call sites. Each calling goroutine lazily gets a dedicated
// scheduler that is reused across its calls; nested calls arriving on a
// scheduler's own worker are diverted to a short-lived private scheduler
// so they can never deadlock the worker they are already on.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds a Run call when the caller does not pass its own.
const DefaultTimeout = 30 * time.Second

var (
	// ErrTimeout marks a Run that gave up waiting. The task keeps running
	// on its scheduler until it observes ctx cancellation.
	ErrTimeout = errors.New("bridge: timed out")
	// ErrTaskReused marks a second Run of the same task.
	ErrTaskReused = errors.New("bridge: task already started")
	// ErrSchedulerClosed marks work rejected or abandoned because its
	// scheduler (or the whole bridge) was torn down.
	ErrSchedulerClosed = errors.New("bridge: scheduler closed")
)

// Bridge owns a scheduler registry and a default timeout.
type Bridge struct {
	reg     *Registry
	timeout time.Duration
	closed  atomic.Bool
}

// New builds a Bridge around reg. A nil reg gets a private registry;
// timeout <= 0 falls back to DefaultTimeout.
func New(reg *Registry, timeout time.Duration) *Bridge {
	if reg == nil {
		reg = NewRegistry()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{reg: reg, timeout: timeout}
}

// Close tears down every scheduler in the registry. Queued tasks fail with
// ErrSchedulerClosed; tasks mid-run finish on their own.
func (b *Bridge) Close() {
	if b.closed.CompareAndSwap(false, true) {
		b.reg.closeAll()
	}
}

// Run executes task on the calling goroutine's scheduler and blocks until
// it completes or timeout expires (timeout <= 0 uses the bridge default).
// The task's own result and error come back unchanged; infrastructure
// failures surface as ErrTimeout, ErrTaskReused or ErrSchedulerClosed.
func Run[T any](b *Bridge, task *Task[T], timeout time.Duration) (T, error) {
	var zero T
	if b.closed.Load() {
		return zero, ErrSchedulerClosed
	}
	if timeout <= 0 {
		timeout = b.timeout
	}
	gid := goroutineID()
	if host := b.reg.workerOf(gid); host != nil {
		// Waiting on our own worker would deadlock it. Nested calls get
		// a throwaway scheduler for just this task.
		helper := b.reg.helper()
		defer b.reg.release(helper)
		return await(helper, task, timeout)
	}
	return await(b.reg.acquire(gid), task, timeout)
}

func await[T any](s *scheduler, task *Task[T], timeout time.Duration) (T, error) {
	var zero T
	if err := task.bind(s); err != nil {
		return zero, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	err := s.submit(job{
		run:  func() { defer cancel(); task.run(ctx) },
		fail: func(err error) { defer cancel(); task.fail(err) },
	})
	if err != nil {
		cancel()
		task.fail(err)
		return zero, err
	}
	select {
	case <-task.done:
		return task.val, task.err
	case <-ctx.Done():
		// cancel() also trips ctx right after completion; prefer the
		// task's result when both raced.
		select {
		case <-task.done:
			return task.val, task.err
		default:
		}
		return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
