package kern

import "sync"
import "sync/atomic"
import "time"

import "rthread/defs"
import "rthread/hashtable"
import "rthread/tinfo"

// a sleeping thread. wake is buffered so the waker never blocks; whoever
// dequeues the waiter sends exactly one value.
type waiter_t struct {
	ident  uintptr
	b      *futexb_t
	wake   chan defs.Err_t
	queued bool
}

type futexb_t struct {
	sync.Mutex
	q []*waiter_t
}

func (b *futexb_t) enqueue(w *waiter_t) {
	w.queued = true
	b.q = append(b.q, w)
}

// caller holds b
func (b *futexb_t) remove(w *waiter_t) {
	for i, o := range b.q {
		if o == w {
			copy(b.q[i:], b.q[i+1:])
			b.q[len(b.q)-1] = nil
			b.q = b.q[:len(b.q)-1]
			w.queued = false
			return
		}
	}
	panic("waiter not queued")
}

// dequeue w and deliver r unless somebody already did.
func (w *waiter_t) post(r defs.Err_t) bool {
	w.b.Lock()
	defer w.b.Unlock()
	if !w.queued {
		return false
	}
	w.b.remove(w)
	w.wake <- r
	return true
}

/// Interrupt implements tinfo.Sleeper_i.
func (w *waiter_t) Interrupt() bool {
	return w.post(-defs.EINTR)
}

func (k *Kern_t) bucket(ident uintptr) *futexb_t {
	return &k.futexes[hashtable.Khash(ident)%uint32(len(k.futexes))]
}

/// Sleep implements Kernel_i. It returns 0 when woken by Wake, -ETIMEDOUT
/// once deadline has passed, and -EINTR when a deliverable signal arrives
/// or *abort is set on entry. The zero deadline never expires. Handlers for
/// deliverable signals run on the caller before Sleep returns.
func (k *Kern_t) Sleep(ident uintptr, clock Clock_t, deadline time.Time, lock sync.Locker, abort *int32) defs.Err_t {
	if clock != CLOCK_REALTIME && clock != CLOCK_MONOTONIC {
		lock.Unlock()
		return -defs.EINVAL
	}
	n := tinfo.Current()
	if n != nil {
		n.Lock()
		if n.Deliverable() != 0 {
			n.Unlock()
			lock.Unlock()
			k.Stats.Nintr.Inc()
			k.Sigdeliver()
			return -defs.EINTR
		}
	}
	bail := func(r defs.Err_t) defs.Err_t {
		if n != nil {
			n.Unlock()
		}
		lock.Unlock()
		return r
	}
	if abort != nil && atomic.LoadInt32(abort) != 0 {
		k.Stats.Nintr.Inc()
		return bail(-defs.EINTR)
	}
	if !deadline.IsZero() && !time.Now().Before(deadline) {
		k.Stats.Ntimeout.Inc()
		return bail(-defs.ETIMEDOUT)
	}

	b := k.bucket(ident)
	w := &waiter_t{ident: ident, b: b, wake: make(chan defs.Err_t, 1)}
	b.Lock()
	b.enqueue(w)
	b.Unlock()
	if n != nil {
		n.Sleeper = w
		n.Unlock()
	}
	lock.Unlock()
	k.Stats.Nsleep.Inc()

	var since int64
	if n != nil {
		since = n.Accnt.Now()
	}
	var r defs.Err_t
	if deadline.IsZero() {
		r = <-w.wake
	} else {
		t := time.NewTimer(time.Until(deadline))
		select {
		case r = <-w.wake:
			t.Stop()
		case <-t.C:
			if w.post(-defs.ETIMEDOUT) {
				k.Stats.Ntimeout.Inc()
			}
			r = <-w.wake
		}
	}
	if r == -defs.EINTR {
		k.Stats.Nintr.Inc()
	}
	if n != nil {
		n.Lock()
		n.Sleeper = nil
		n.Unlock()
		n.Accnt.Sleep_time(since)
		k.Sigdeliver()
	}
	return r
}

/// Wake implements Kernel_i.
func (k *Kern_t) Wake(ident uintptr, n int) int {
	b := k.bucket(ident)
	b.Lock()
	woke := 0
	for i := 0; i < len(b.q) && (n <= 0 || woke < n); {
		w := b.q[i]
		if w.ident != ident {
			i++
			continue
		}
		b.remove(w)
		w.wake <- 0
		woke++
	}
	b.Unlock()
	k.Stats.Nwake.Add(int64(woke))
	return woke
}

/// Sleepers returns the number of threads asleep on ident.
func (k *Kern_t) Sleepers(ident uintptr) int {
	b := k.bucket(ident)
	b.Lock()
	defer b.Unlock()
	c := 0
	for _, w := range b.q {
		if w.ident == ident {
			c++
		}
	}
	return c
}
