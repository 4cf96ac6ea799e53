package tinfo

import "sync"
import "sync/atomic"

import "rthread/accnt"
import "rthread/defs"
import "rthread/hashtable"

/// Sleeper_i is a thread's in-progress kernel sleep. Interrupt aborts the
/// sleep with EINTR and reports whether it was still pending.
type Sleeper_i interface {
	Interrupt() bool
}

/// Tnote_t is the kernel-visible per-thread block: what the thread pointer
/// register would hold. It carries the tid word, the back-pointer to the
/// runtime's thread control block and the thread's private errno.
type Tnote_t struct {
	// kernel thread id; the kernel stores 0 once the thread is fully gone
	tid atomic.Int32
	// runtime TCB, opaque to the kernel
	Thread interface{}
	// written only by the owning thread
	Errno defs.Err_t
	// the goroutine existed before the kernel knew about it
	Adopted bool
	Accnt accnt.Accnt_t
	// protects Sigpend, Sigmask and Sleeper, and is a leaf lock apart from
	// futex buckets
	sync.Mutex
	Sigpend defs.Sigset_t
	Sigmask defs.Sigset_t
	Sleeper Sleeper_i
}

/// MkTnote returns a note whose back-pointer is thread. The tid word starts
/// at -1 until the kernel publishes the real id.
func MkTnote(thread interface{}) *Tnote_t {
	n := &Tnote_t{Thread: thread}
	n.tid.Store(-1)
	return n
}

/// Tid returns the kernel thread id, 0 once the kernel has torn the thread
/// down.
func (n *Tnote_t) Tid() defs.Tid_t {
	return defs.Tid_t(n.tid.Load())
}

/// Settid is used by the kernel to publish and clear the tid word.
func (n *Tnote_t) Settid(tid defs.Tid_t) {
	n.tid.Store(int32(tid))
}

/// Deliverable returns the pending signals that are not blocked. Caller
/// holds n's lock.
func (n *Tnote_t) Deliverable() defs.Sigset_t {
	return n.Sigpend &^ n.Sigmask
}

/// Threadinfo_t maps kernel tids to the notes of live threads.
type Threadinfo_t struct {
	notes *hashtable.Hashtable_t
}

/// MkThreadinfo returns an empty table.
func MkThreadinfo() *Threadinfo_t {
	return &Threadinfo_t{notes: hashtable.MkHash(256)}
}

/// Add registers n under its tid.
func (t *Threadinfo_t) Add(n *Tnote_t) {
	if _, ok := t.notes.Set(n.Tid(), n); !ok {
		panic("tid already registered")
	}
}

/// Del forgets tid.
func (t *Threadinfo_t) Del(tid defs.Tid_t) {
	if !t.notes.Del(tid) {
		panic("tid not registered")
	}
}

/// Lookup returns the note registered under tid, or nil.
func (t *Threadinfo_t) Lookup(tid defs.Tid_t) *Tnote_t {
	v, ok := t.notes.Get(tid)
	if !ok {
		return nil
	}
	return v.(*Tnote_t)
}

/// Len returns the number of registered threads.
func (t *Threadinfo_t) Len() int {
	return t.notes.Size()
}

/// Threads holds the note of every thread the kernel knows about.
var Threads = MkThreadinfo()

/// Current returns the calling thread's note, or nil if the calling
/// goroutine is not running as a registered thread.
func Current() *Tnote_t {
	return Threads.Lookup(Gettid())
}
