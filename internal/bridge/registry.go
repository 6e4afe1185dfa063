package bridge

import (
	"sync"
)

// Registry maps goroutines to schedulers. Every Bridge owns its own
// Registry; there is no process-global instance, so independent bridges
// never share workers and tests can run isolated registries side by side.
type Registry struct {
	mu      sync.Mutex
	owned   map[int64]*scheduler // caller goroutine id -> its reusable scheduler
	workers map[int64]*scheduler // worker goroutine id -> the scheduler it runs
}

func NewRegistry() *Registry {
	return &Registry{
		owned:   make(map[int64]*scheduler),
		workers: make(map[int64]*scheduler),
	}
}

// acquire returns the scheduler owned by the caller goroutine, creating
// one on first use. A scheduler found closed is replaced transparently;
// the goroutine keeps a working scheduler without the caller noticing.
func (r *Registry) acquire(gid int64) *scheduler {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.owned[gid]; ok {
		if !s.closed.Load() {
			return s
		}
		delete(r.workers, s.gid)
	}
	s := newScheduler()
	r.owned[gid] = s
	r.workers[s.gid] = s
	return s
}

// workerOf reports the scheduler whose worker goroutine is gid, or nil if
// gid is not a worker. Non-nil means the caller is already inside a
// scheduler and must not block on it again.
func (r *Registry) workerOf(gid int64) *scheduler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workers[gid]
}

// helper creates a scheduler owned by no goroutine, for nested submissions
// arriving on a worker. The caller must release it when done.
func (r *Registry) helper() *scheduler {
	s := newScheduler()
	r.mu.Lock()
	r.workers[s.gid] = s
	r.mu.Unlock()
	return s
}

func (r *Registry) release(s *scheduler) {
	s.close()
	r.mu.Lock()
	delete(r.workers, s.gid)
	r.mu.Unlock()
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.workers {
		s.close()
	}
	r.owned = make(map[int64]*scheduler)
	r.workers = make(map[int64]*scheduler)
}
