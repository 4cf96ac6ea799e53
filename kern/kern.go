// Package kern is the boundary between the thread runtime and the kernel:
// thread creation and exit, a futex-style sleep/wake pair keyed by address,
// and thread-directed signals.
//
// Kern_t implements the boundary inside the process on Linux. Every thread
// is a goroutine pinned to its own OS thread, so the OS thread id is the
// kernel thread id and identifies the caller's note.
package kern

import "runtime"
import "sync"
import "time"

import "rthread/defs"
import "rthread/limits"
import "rthread/stats"
import "rthread/tinfo"

/// Clock_t selects the clock a sleep deadline is measured against.
type Clock_t int

const (
	CLOCK_REALTIME  Clock_t = 0
	CLOCK_MONOTONIC Clock_t = 3
)

/// Handler_t is a signal handler. It runs on the receiving thread.
type Handler_t func(sig int)

/// Kernel_i is everything the runtime needs from the kernel.
type Kernel_i interface {
	// Tfork starts fn(arg) on a new kernel thread whose stack pointer is
	// sp. The thread's tid is published in n before Tfork returns.
	Tfork(n *tinfo.Tnote_t, sp uintptr, fn func(interface{}), arg interface{}) defs.Err_t
	// Threxit terminates the calling thread. n's tid word reads 0 once the
	// thread is completely gone.
	Threxit(n *tinfo.Tnote_t)
	// Adopt registers the calling goroutine as the thread described by n.
	Adopt(n *tinfo.Tnote_t) defs.Err_t
	Unadopt(n *tinfo.Tnote_t)
	// Sleep blocks on ident after releasing lock. Releasing lock and
	// starting to sleep is atomic with respect to Wake.
	Sleep(ident uintptr, clock Clock_t, deadline time.Time, lock sync.Locker, abort *int32) defs.Err_t
	// Wake wakes up to n sleepers on ident, all of them if n <= 0, and
	// returns how many it woke.
	Wake(ident uintptr, n int) int
	Kill(tid defs.Tid_t, sig int) defs.Err_t
	Sigaction(sig int, h Handler_t) (Handler_t, defs.Err_t)
	Sigmask(how int, set defs.Sigset_t) (defs.Sigset_t, defs.Err_t)
	// Sigdeliver runs the handlers of the caller's deliverable signals.
	Sigdeliver()
	Yield()
}

/// Stats_t counts kernel activity.
type Stats_t struct {
	Nfork    stats.Counter_t
	Nexit    stats.Counter_t
	Nsleep   stats.Counter_t
	Nwake    stats.Counter_t
	Nintr    stats.Counter_t
	Ntimeout stats.Counter_t
	Nsignal  stats.Counter_t
}

/// Kern_t is the in-process kernel.
type Kern_t struct {
	futexes []futexb_t
	sigl     sync.Mutex
	handlers [defs.NSIG]Handler_t
	Stats    Stats_t
}

/// MkKern returns a kernel with an empty futex table and no handlers.
func MkKern() *Kern_t {
	nb := limits.Syslimit.Futexes
	if nb <= 0 {
		nb = 1
	}
	return &Kern_t{futexes: make([]futexb_t, nb)}
}

/// Tfork implements Kernel_i.
func (k *Kern_t) Tfork(n *tinfo.Tnote_t, sp uintptr, fn func(interface{}), arg interface{}) defs.Err_t {
	if sp == 0 {
		return -defs.EINVAL
	}
	if !limits.Syslimit.Threads.Take() {
		return -defs.EAGAIN
	}
	started := make(chan struct{})
	go func() {
		// never unlocked: the OS thread dies with the goroutine
		runtime.LockOSThread()
		n.Settid(tinfo.Gettid())
		tinfo.Threads.Add(n)
		n.Accnt.Begin()
		close(started)
		defer k.teardown(n)
		fn(arg)
	}()
	<-started
	k.Stats.Nfork.Inc()
	return 0
}

func (k *Kern_t) teardown(n *tinfo.Tnote_t) {
	n.Accnt.Finish()
	tinfo.Threads.Del(n.Tid())
	limits.Syslimit.Threads.Give()
	k.Stats.Nexit.Inc()
	// last: the runtime may free everything once it reads 0
	n.Settid(0)
}

/// Threxit implements Kernel_i.
func (k *Kern_t) Threxit(n *tinfo.Tnote_t) {
	if n.Adopted {
		k.Unadopt(n)
	}
	runtime.Goexit()
}

/// Adopt implements Kernel_i. The calling goroutine stays pinned to its OS
/// thread until Unadopt.
func (k *Kern_t) Adopt(n *tinfo.Tnote_t) defs.Err_t {
	runtime.LockOSThread()
	tid := tinfo.Gettid()
	if tinfo.Threads.Lookup(tid) != nil {
		runtime.UnlockOSThread()
		return -defs.EBUSY
	}
	n.Adopted = true
	n.Settid(tid)
	tinfo.Threads.Add(n)
	n.Accnt.Begin()
	return 0
}

/// Unadopt implements Kernel_i.
func (k *Kern_t) Unadopt(n *tinfo.Tnote_t) {
	if !n.Adopted || n.Tid() != tinfo.Gettid() {
		panic("unadopt from a foreign thread")
	}
	n.Accnt.Finish()
	tinfo.Threads.Del(n.Tid())
	n.Settid(0)
	runtime.UnlockOSThread()
}

/// Yield implements Kernel_i.
func (k *Kern_t) Yield() {
	runtime.Gosched()
	k.Sigdeliver()
}
