package bridge

import (
	"sync/atomic"
)

const jobQueueDepth = 16

// job couples the work to run with a way to fail it unrun, so a scheduler
// torn down mid-queue completes its backlog with an error instead of
// leaving callers blocked forever.
type job struct {
	run  func()
	fail func(error)
}

// scheduler is a single worker goroutine draining a job queue. All work
// submitted to one scheduler executes on that one goroutine, in order.
type scheduler struct {
	jobs   chan job
	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool
	gid    int64
}

func newScheduler() *scheduler {
	s := &scheduler{
		jobs: make(chan job, jobQueueDepth),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	ready := make(chan struct{})
	go s.loop(ready)
	<-ready
	return s
}

func (s *scheduler) loop(ready chan struct{}) {
	defer close(s.done)
	s.gid = goroutineID()
	close(ready)
	for {
		select {
		case <-s.quit:
			s.drain()
			return
		case j := <-s.jobs:
			j.run()
		}
	}
}

// drain fails everything still queued. Runs on the worker goroutine after
// quit is observed, so no job can sneak in behind it: submit checks closed
// before enqueueing.
func (s *scheduler) drain() {
	for {
		select {
		case j := <-s.jobs:
			j.fail(ErrSchedulerClosed)
		default:
			return
		}
	}
}

func (s *scheduler) submit(j job) error {
	if s.closed.Load() {
		return ErrSchedulerClosed
	}
	select {
	case s.jobs <- j:
		return nil
	case <-s.quit:
		return ErrSchedulerClosed
	}
}

// close signals the worker to stop and returns immediately. A job already
// running finishes on its own; queued jobs are failed by drain. It never
// waits, so a caller abandoning a timed-out helper is not blocked behind
// the stuck work.
func (s *scheduler) close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	close(s.quit)
}
