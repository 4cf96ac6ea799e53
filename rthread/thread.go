package rthread

import "sync/atomic"
import "time"

import "rthread/defs"
import "rthread/spinlock"
import "rthread/stack"
import "rthread/tinfo"

/// State_t is what a thread is doing, for introspection only.
type State_t int32

const (
	ST_RUNNING State_t = iota
	ST_SEMWAIT
	ST_MUTEXWAIT
	ST_CONDWAIT
	ST_JOIN
	ST_SUSPENDED
	ST_DEAD
)

var statenames = [...]string{
	ST_RUNNING:   "running",
	ST_SEMWAIT:   "sem wait",
	ST_MUTEXWAIT: "mutex wait",
	ST_CONDWAIT:  "cond wait",
	ST_JOIN:      "join",
	ST_SUSPENDED: "suspended",
	ST_DEAD:      "dead",
}

func (s State_t) String() string {
	if s < 0 || int(s) >= len(statenames) {
		return "?"
	}
	return statenames[s]
}

const THREAD_MAGIC uint32 = 0xd09ba115

// flags, protected by flagl
const (
	f_detached uint32 = 1 << iota
	f_done
	f_canceled
	f_cancel_enable
	f_cancel_deferred
	f_dying
	f_cancel_delay
)

/// Thread_t is the runtime's control block for one thread.
type Thread_t struct {
	magic atomic.Uint32
	note  *tinfo.Tnote_t

	flagl spinlock.Spinlock_t
	flags uint32
	name  string

	// set by whoever hands the TCB to the garbage list
	claimed atomic.Bool
	retval  interface{}
	donesem sem_t

	fn        func(interface{}) interface{}
	arg       interface{}
	stk       *stack.Stack_t
	stacklen  int
	attr      Attr_t
	state     atomic.Int32
	suspended atomic.Bool
	resumesem sem_t

	// cancellation bookkeeping, owner only
	delayed_cancel int32
	cancel_point   int
	insem          int
	asyncpend      bool

	cleanup []cleanup_t

	locall spinlock.Spinlock_t
	locals *tlsnode_t

	// live list links, protected by live
	lnext *Thread_t
	lprev *Thread_t
	// garbage list link, protected by garbage
	gnext *Thread_t
}

func (t *Thread_t) valid() bool {
	return t != nil && t.magic.Load() == THREAD_MAGIC
}

func (t *Thread_t) setstate(s State_t) {
	t.state.Store(int32(s))
}

/// State returns what t is doing.
func (t *Thread_t) State() State_t {
	return State_t(t.state.Load())
}

/// Tid returns the kernel id of t, 0 once the kernel has torn it down.
func (t *Thread_t) Tid() defs.Tid_t {
	return t.note.Tid()
}

/// Times returns the time t spent runnable and blocked.
func (t *Thread_t) Times() (run, sleep time.Duration) {
	return t.note.Accnt.Fetch()
}

func mkthread() *Thread_t {
	t := &Thread_t{}
	t.magic.Store(THREAD_MAGIC)
	t.flags = f_cancel_enable | f_cancel_deferred
	t.note = tinfo.MkTnote(t)
	return t
}

/// Create starts a thread running fn(arg). A nil attr means the defaults.
/// If fn returns, its result becomes the thread's exit value.
func Create(attr *Attr_t, fn func(interface{}) interface{}, arg interface{}) (*Thread_t, defs.Err_t) {
	if fn == nil {
		return nil, -defs.EINVAL
	}
	if attr == nil {
		attr = MkAttr()
	} else if !attr.inited {
		return nil, -defs.EINVAL
	}
	reaper()

	self := Self()
	t := mkthread()
	t.fn = fn
	t.arg = arg
	t.attr = attr.resolve(self)
	t.name = t.attr.name
	if t.attr.detach == CREATE_DETACHED {
		t.flags |= f_detached
	}
	if t.attr.suspended {
		t.suspended.Store(true)
		t.setstate(ST_SUSPENDED)
	}

	stk, err := stack.Acquire(t.attr.stackaddr, t.attr.stacksize, t.attr.guardsize)
	if err != 0 {
		t.magic.Store(0)
		return nil, err
	}
	t.stk = stk
	t.stacklen = stk.Len

	live.insert(t)
	if err := kernel.Tfork(t.note, stk.Sp, trampoline, t); err != 0 {
		live.remove(t)
		stack.Release(stk)
		t.stk = nil
		t.magic.Store(0)
		dprintf(1, "create failed: %v", err)
		return nil, err
	}
	Stats.Ncreate.Inc()
	dprintf(2, "created thread %d", t.Tid())
	return t, 0
}

func trampoline(a interface{}) {
	t := a.(*Thread_t)
	if t.suspended.Load() {
		t.resumesem.wait(false, time.Time{}, nil)
		asyncpoint(t)
	}
	Exit(t.fn(t.arg))
}

/// Resume starts a thread created suspended.
func Resume(t *Thread_t) defs.Err_t {
	if !t.valid() {
		return -defs.ESRCH
	}
	if !t.suspended.CompareAndSwap(true, false) {
		return -defs.EINVAL
	}
	t.setstate(ST_RUNNING)
	t.resumesem.post()
	return 0
}

/// Exit terminates the calling thread with retval. Cleanup handlers run
/// most recent first, then TLS destructors. Calling Exit again while the
/// thread is already exiting is fatal.
func Exit(retval interface{}) {
	self := curthread()
	self.flagl.Lock()
	if self.flags&f_dying != 0 {
		self.flagl.Unlock()
		panic("rthread: recursive exit")
	}
	self.flags |= f_dying
	self.flagl.Unlock()

	for len(self.cleanup) > 0 {
		Cleanup_pop(true)
	}
	tls_destroy(self)
	live.remove(self)
	self.setstate(ST_DEAD)
	Stats.Nexit.Inc()

	self.flagl.Lock()
	if self.flags&f_detached != 0 {
		self.flagl.Unlock()
		reclaim(self)
	} else {
		self.retval = retval
		self.flags |= f_done
		self.flagl.Unlock()
		self.donesem.post()
	}
	kernel.Threxit(self.note)
}

/// Join waits for t to exit and returns its exit value; t is reclaimed.
/// Join is a cancellation point.
func Join(t *Thread_t) (interface{}, defs.Err_t) {
	self := curthread()
	reaper()
	if t == nil {
		return nil, -defs.EINVAL
	}
	if !t.valid() {
		return nil, -defs.ESRCH
	}
	if t == self {
		return nil, -defs.EDEADLK
	}
	t.flagl.Lock()
	det := t.flags&f_detached != 0
	t.flagl.Unlock()
	if det {
		return nil, -defs.EINVAL
	}

	enter_delayed_cancel(self)
	self.setstate(ST_JOIN)
	r := t.donesem.wait(false, time.Time{}, &self.delayed_cancel)
	self.setstate(ST_RUNNING)
	var ret interface{}
	if r == 0 {
		ret = t.retval
		reclaim(t)
		Stats.Njoin.Inc()
	}
	leave_delayed_cancel(self, r != 0)
	return ret, r
}

/// Detach makes t reclaim itself when it exits. If it already has, it is
/// reclaimed now.
func Detach(t *Thread_t) defs.Err_t {
	reaper()
	if t == nil {
		return -defs.EINVAL
	}
	if !t.valid() {
		return -defs.ESRCH
	}
	t.flagl.Lock()
	if t.flags&f_detached != 0 {
		t.flagl.Unlock()
		return -defs.EINVAL
	}
	t.flags |= f_detached
	done := t.flags&f_done != 0
	t.flagl.Unlock()
	if done {
		reclaim(t)
	}
	Stats.Ndetach.Inc()
	return 0
}

/// Adopt makes the calling goroutine a runtime thread. The goroutine stays
/// on its OS thread until Release.
func Adopt() (*Thread_t, defs.Err_t) {
	t := mkthread()
	t.attr = *MkAttr()
	if err := kernel.Adopt(t.note); err != 0 {
		t.magic.Store(0)
		return nil, err
	}
	live.insert(t)
	Stats.Nadopt.Inc()
	return t, 0
}

/// Release undoes Adopt. TLS destructors run; cleanup handlers do not.
func Release() defs.Err_t {
	self := Self()
	if self == nil {
		return -defs.ESRCH
	}
	if !self.note.Adopted {
		return -defs.EINVAL
	}
	self.flagl.Lock()
	self.flags |= f_dying
	self.flagl.Unlock()
	tls_destroy(self)
	live.remove(self)
	self.setstate(ST_DEAD)

	self.flagl.Lock()
	self.flags |= f_detached | f_done
	self.flagl.Unlock()
	kernel.Unadopt(self.note)
	reclaim(self)
	return 0
}
