package rthread

import "sync/atomic"
import "time"
import "unsafe"

import "rthread/defs"
import "rthread/kern"
import "rthread/spinlock"

/// SEM_VALUE_MAX is the largest value a semaphore can hold.
const SEM_VALUE_MAX = 0x7fffffff

// sem_t is the one blocking primitive. value is the number of ungranted
// credits and waitcount the number of threads inside wait; both are
// protected by lock.
//
// A handoff semaphore backs a condition variable: wakeup and wakeall give
// each woken sleeper its credit directly instead of adding to value, so a
// thread that starts waiting later cannot take it.
type sem_t struct {
	lock      spinlock.Spinlock_t
	value     uint32
	waitcount uint32
	clock     kern.Clock_t
	handoff   bool
}

func (s *sem_t) ident() uintptr {
	return uintptr(unsafe.Pointer(s))
}

// wait takes one credit. With tryonly it fails with -EAGAIN instead of
// blocking. A zero deadline never expires. delayed, if not nil, is the
// caller's delayed cancel word: once it is set an interrupted sleep ends
// the wait with -EINTR. A failed wait never consumes a credit, and a
// credit that is available after the relock always wins.
//
// On a handoff semaphore the caller always sleeps once. Being woken is the
// credit; an interrupt that is not a cancel is a spurious wakeup and
// returns 0.
//
// An asynchronous cancel that arrives during the wait is left pending for
// the caller to apply with asyncpoint once its own state is consistent.
func (s *sem_t) wait(tryonly bool, deadline time.Time, delayed *int32) defs.Err_t {
	s.lock.Lock()
	if s.value > 0 && !s.handoff {
		s.value--
		s.lock.Unlock()
		return 0
	}
	if tryonly {
		s.lock.Unlock()
		return -defs.EAGAIN
	}

	self := Self()
	if self != nil {
		self.insem++
	}
	s.waitcount++
	var r defs.Err_t
	for {
		r = kernel.Sleep(s.ident(), s.clock, deadline, &s.lock, delayed)
		s.lock.Lock()
		if s.handoff {
			if r == -defs.EINTR && (delayed == nil || atomic.LoadInt32(delayed) == 0) {
				r = 0
			}
			break
		}
		if s.value > 0 {
			s.value--
			r = 0
			break
		}
		if r == -defs.ETIMEDOUT || r == -defs.EINVAL {
			break
		}
		if r == -defs.EINTR && delayed != nil && atomic.LoadInt32(delayed) != 0 {
			break
		}
	}
	s.waitcount--
	s.lock.Unlock()
	if self != nil {
		self.insem--
	}
	return r
}

// post adds a credit and wakes one waiter. It reports whether somebody was
// waiting.
func (s *sem_t) post() (bool, defs.Err_t) {
	s.lock.Lock()
	if s.value >= SEM_VALUE_MAX {
		s.lock.Unlock()
		return false, -defs.EOVERFLOW
	}
	s.value++
	waiters := s.waitcount > 0
	if waiters {
		kernel.Wake(s.ident(), 1)
	}
	s.lock.Unlock()
	return waiters, 0
}

// wakeup wakes one sleeper if there is one and credits it. The credit is
// only issued for a thread the kernel actually woke.
func (s *sem_t) wakeup() bool {
	s.lock.Lock()
	n := 0
	if s.waitcount > 0 {
		n = kernel.Wake(s.ident(), 1)
		if !s.handoff {
			s.value += uint32(n)
		}
	}
	s.lock.Unlock()
	return n != 0
}

// wakeall wakes every sleeper and credits exactly that many.
func (s *sem_t) wakeall() int {
	s.lock.Lock()
	n := 0
	if s.waitcount > 0 {
		n = kernel.Wake(s.ident(), 0)
		if !s.handoff {
			s.value += uint32(n)
		}
	}
	s.lock.Unlock()
	return n
}

func (s *sem_t) waiters() int {
	s.lock.Lock()
	n := s.waitcount
	s.lock.Unlock()
	return int(n)
}

const (
	st_static uint32 = iota
	st_ready
	st_dead
)

/// Sem_t is an unnamed counting semaphore. It must be initialized with
/// Init before use.
type Sem_t struct {
	s     sem_t
	state uint32
}

/// Init sets the semaphore's value. Semaphores shared between processes
/// are not supported.
func (sem *Sem_t) Init(pshared bool, value uint) defs.Err_t {
	if pshared {
		return -defs.ENOTSUP
	}
	if value > SEM_VALUE_MAX {
		return -defs.EINVAL
	}
	sem.s = sem_t{value: uint32(value)}
	atomic.StoreUint32(&sem.state, st_ready)
	return 0
}

func (sem *Sem_t) ok() bool {
	return sem != nil && atomic.LoadUint32(&sem.state) == st_ready
}

/// Destroy invalidates the semaphore. It refuses while threads are
/// waiting on it.
func (sem *Sem_t) Destroy() defs.Err_t {
	if !sem.ok() {
		return -defs.EINVAL
	}
	sem.s.lock.Lock()
	if n := sem.s.waitcount; n > 0 {
		sem.s.lock.Unlock()
		diag("semaphore %p destroyed with %d waiters", sem, n)
		return -defs.EBUSY
	}
	atomic.StoreUint32(&sem.state, st_dead)
	sem.s.lock.Unlock()
	return 0
}

/// Post adds one to the value, waking a waiter if there is one.
func (sem *Sem_t) Post() defs.Err_t {
	if !sem.ok() {
		return -defs.EINVAL
	}
	_, err := sem.s.post()
	return err
}

/// Wait takes one from the value, blocking while it is zero. It is a
/// cancellation point.
func (sem *Sem_t) Wait() defs.Err_t {
	return sem.Timedwait(time.Time{})
}

/// Timedwait is Wait with an absolute deadline; the zero time waits
/// forever.
func (sem *Sem_t) Timedwait(deadline time.Time) defs.Err_t {
	if !sem.ok() {
		return -defs.EINVAL
	}
	self := Self()
	if self == nil {
		return sem.s.wait(false, deadline, nil)
	}
	enter_delayed_cancel(self)
	self.setstate(ST_SEMWAIT)
	r := sem.s.wait(false, deadline, &self.delayed_cancel)
	self.setstate(ST_RUNNING)
	leave_delayed_cancel(self, r == -defs.EINTR)
	return r
}

/// Trywait takes one from the value if it is positive, else fails with
/// -EAGAIN.
func (sem *Sem_t) Trywait() defs.Err_t {
	if !sem.ok() {
		return -defs.EINVAL
	}
	return sem.s.wait(true, time.Time{}, nil)
}

/// Getvalue returns the current value.
func (sem *Sem_t) Getvalue() (int, defs.Err_t) {
	if !sem.ok() {
		return 0, -defs.EINVAL
	}
	sem.s.lock.Lock()
	v := sem.s.value
	sem.s.lock.Unlock()
	return int(v), 0
}
