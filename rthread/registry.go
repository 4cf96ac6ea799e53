package rthread

import "rthread/spinlock"
import "rthread/stack"

// live threads, inserted by Create and Adopt, removed on exit
type registry_t struct {
	spinlock.Spinlock_t
	head *Thread_t
	n    int
}

var live registry_t

func (r *registry_t) insert(t *Thread_t) {
	r.Lock()
	t.lprev = nil
	t.lnext = r.head
	if r.head != nil {
		r.head.lprev = t
	}
	r.head = t
	r.n++
	r.Unlock()
}

func (r *registry_t) remove(t *Thread_t) {
	r.Lock()
	if t.lprev != nil {
		t.lprev.lnext = t.lnext
	} else if r.head == t {
		r.head = t.lnext
	} else {
		r.Unlock()
		panic("thread not in registry")
	}
	if t.lnext != nil {
		t.lnext.lprev = t.lprev
	}
	t.lnext = nil
	t.lprev = nil
	r.n--
	r.Unlock()
}

// iter calls f on each live thread with the registry locked. f must not
// block.
func (r *registry_t) iter(f func(*Thread_t)) {
	r.Lock()
	for t := r.head; t != nil; t = t.lnext {
		f(t)
	}
	r.Unlock()
}

func (r *registry_t) len() int {
	r.Lock()
	n := r.n
	r.Unlock()
	return n
}

/// Threads returns a snapshot of the live threads.
func Threads() []*Thread_t {
	var ts []*Thread_t
	live.iter(func(t *Thread_t) {
		ts = append(ts, t)
	})
	return ts
}

// finished threads whose control blocks await the kernel's teardown
type garbage_t struct {
	spinlock.Spinlock_t
	head *Thread_t
	n    int
}

var garbage garbage_t

func (g *garbage_t) len() int {
	g.Lock()
	n := g.n
	g.Unlock()
	return n
}

// reclaim hands t to the garbage list. Of the joiner, the detacher and the
// exiting thread itself, only the first caller does anything.
func reclaim(t *Thread_t) {
	if !t.claimed.CompareAndSwap(false, true) {
		return
	}
	garbage.Lock()
	t.gnext = garbage.head
	garbage.head = t
	garbage.n++
	garbage.Unlock()
}

// reaper frees every garbage entry whose kernel thread is gone.
func reaper() {
	var dead *Thread_t
	garbage.Lock()
	pp := &garbage.head
	for t := *pp; t != nil; t = *pp {
		if t.note.Tid() != 0 {
			pp = &t.gnext
			continue
		}
		*pp = t.gnext
		t.gnext = dead
		dead = t
		garbage.n--
	}
	garbage.Unlock()

	for t := dead; t != nil; {
		next := t.gnext
		t.gnext = nil
		if t.stk != nil {
			stack.Release(t.stk)
			t.stk = nil
		}
		t.magic.Store(0)
		Stats.Nreap.Inc()
		t = next
	}
}
