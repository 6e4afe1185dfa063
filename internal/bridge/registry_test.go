package bridge

import (
	"testing"
)

func TestRegistryAcquireReuses(t *testing.T) {
	r := NewRegistry()
	defer r.closeAll()

	a := r.acquire(101)
	if r.acquire(101) != a {
		t.Fatalf("second acquire for the same goroutine returned a new scheduler")
	}
	b := r.acquire(202)
	if b == a {
		t.Fatalf("distinct goroutines were handed the same scheduler")
	}
}

func TestRegistryReplacesClosedScheduler(t *testing.T) {
	r := NewRegistry()
	defer r.closeAll()

	a := r.acquire(1)
	a.close()
	b := r.acquire(1)
	if b == a {
		t.Fatalf("closed scheduler was handed out again")
	}
	if got := r.workerOf(a.gid); got != nil {
		t.Fatalf("stale worker mapping survived replacement")
	}
	if got := r.workerOf(b.gid); got != b {
		t.Fatalf("replacement worker not registered")
	}
}

func TestRegistryWorkerOf(t *testing.T) {
	r := NewRegistry()
	defer r.closeAll()

	s := r.acquire(1)
	if got := r.workerOf(s.gid); got != s {
		t.Fatalf("worker goroutine not mapped to its scheduler")
	}
	if got := r.workerOf(999999); got != nil {
		t.Fatalf("unknown goroutine reported as worker")
	}
}

func TestRegistryHelperLifecycle(t *testing.T) {
	r := NewRegistry()
	defer r.closeAll()

	h := r.helper()
	if got := r.workerOf(h.gid); got != h {
		t.Fatalf("helper worker not registered")
	}
	r.release(h)
	if got := r.workerOf(h.gid); got != nil {
		t.Fatalf("released helper still registered")
	}
	if !h.closed.Load() {
		t.Fatalf("released helper not closed")
	}
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry()
	a := r.acquire(1)
	b := r.acquire(2)
	h := r.helper()
	r.closeAll()
	for _, s := range []*scheduler{a, b, h} {
		if !s.closed.Load() {
			t.Fatalf("closeAll left a scheduler open")
		}
	}
	if r.workerOf(a.gid) != nil || r.workerOf(h.gid) != nil {
		t.Fatalf("closeAll left worker mappings behind")
	}
	if r.acquire(1) == a {
		t.Fatalf("closeAll did not clear ownership")
	}
}
