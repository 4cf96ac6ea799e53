package rthread

import "sync/atomic"
import "time"

import "rthread/defs"
import "rthread/spinlock"

/// Mutextype_t selects what happens when the owner locks a mutex again.
type Mutextype_t int

const (
	// relocking by the owner is an error
	MUTEX_ERRORCHECK Mutextype_t = 1
	// relocking by the owner nests
	MUTEX_RECURSIVE Mutextype_t = 2
	// relocking by the owner deadlocks
	MUTEX_NORMAL  Mutextype_t = 3
	MUTEX_DEFAULT             = MUTEX_ERRORCHECK
)

/// Mutexattr_t carries the attributes of a mutex.
type Mutexattr_t struct {
	typ Mutextype_t
}

/// MkMutexattr returns attributes for a default mutex.
func MkMutexattr() *Mutexattr_t {
	return &Mutexattr_t{typ: MUTEX_DEFAULT}
}

/// Settype changes the mutex type.
func (a *Mutexattr_t) Settype(typ Mutextype_t) defs.Err_t {
	switch typ {
	case MUTEX_ERRORCHECK, MUTEX_RECURSIVE, MUTEX_NORMAL:
		a.typ = typ
		return 0
	}
	return -defs.EINVAL
}

/// Gettype returns the mutex type.
func (a *Mutexattr_t) Gettype() Mutextype_t {
	return a.typ
}

// serializes lazy initialization of statically declared mutexes and
// condition variables
var static_init_lock spinlock.Spinlock_t

// lazyinit runs initf exactly once for an object whose zero value is the
// static initializer. Use after destroy is fatal.
func lazyinit(state *uint32, what string, initf func()) {
	switch atomic.LoadUint32(state) {
	case st_ready:
		return
	case st_dead:
		panic("rthread: " + what + " used after destroy")
	}
	static_init_lock.Lock()
	if atomic.LoadUint32(state) == st_static {
		initf()
		atomic.StoreUint32(state, st_ready)
	}
	static_init_lock.Unlock()
	if atomic.LoadUint32(state) == st_dead {
		panic("rthread: " + what + " used after destroy")
	}
}

/// Mutex_t is a mutual exclusion lock. The zero value is an unlocked
/// default mutex. A Mutex_t must not be copied after first use.
///
/// Locking a MUTEX_NORMAL mutex that the caller already owns deadlocks the
/// caller; Trylock still fails with -EBUSY and Timedlock with -ETIMEDOUT.
type Mutex_t struct {
	sem   sem_t
	owner atomic.Pointer[Thread_t]
	// recursion depth, owner only
	count int
	typ   Mutextype_t
	state uint32
}

func (m *Mutex_t) ready() {
	lazyinit(&m.state, "mutex", func() {
		m.sem = sem_t{value: 1}
		m.typ = MUTEX_DEFAULT
	})
}

/// Init (re)initializes m with attributes a, or the defaults if a is nil.
func (m *Mutex_t) Init(a *Mutexattr_t) defs.Err_t {
	typ := MUTEX_DEFAULT
	if a != nil {
		typ = a.typ
	}
	m.sem = sem_t{value: 1}
	m.owner.Store(nil)
	m.count = 0
	m.typ = typ
	atomic.StoreUint32(&m.state, st_ready)
	return 0
}

/// Destroy invalidates m. It refuses while m is locked or has waiters;
/// waiters are never evicted.
func (m *Mutex_t) Destroy() defs.Err_t {
	if atomic.LoadUint32(&m.state) == st_dead {
		return -defs.EINVAL
	}
	m.ready()
	m.sem.lock.Lock()
	if n := m.sem.waitcount; n > 0 {
		m.sem.lock.Unlock()
		diag("mutex %p destroyed with %d waiters", m, n)
		return -defs.EBUSY
	}
	if m.owner.Load() != nil {
		m.sem.lock.Unlock()
		return -defs.EBUSY
	}
	atomic.StoreUint32(&m.state, st_dead)
	m.sem.lock.Unlock()
	return 0
}

func (m *Mutex_t) lock(trywait bool, deadline time.Time) defs.Err_t {
	self := curthread()
	m.ready()
	if m.owner.Load() == self {
		switch m.typ {
		case MUTEX_RECURSIVE:
			if m.count == int(^uint(0)>>1) {
				return -defs.EAGAIN
			}
			m.count++
			return 0
		case MUTEX_ERRORCHECK:
			if trywait {
				return -defs.EBUSY
			}
			return -defs.EDEADLK
		}
		// MUTEX_NORMAL: the wait below never succeeds
	}
	if !trywait {
		self.setstate(ST_MUTEXWAIT)
	}
	r := m.sem.wait(trywait, deadline, nil)
	if !trywait {
		self.setstate(ST_RUNNING)
	}
	if r != 0 {
		if r == -defs.EAGAIN {
			return -defs.EBUSY
		}
		return r
	}
	m.owner.Store(self)
	m.count = 1
	asyncpoint(self)
	return 0
}

/// Lock acquires m, blocking while another thread owns it.
func (m *Mutex_t) Lock() defs.Err_t {
	return m.lock(false, time.Time{})
}

/// Trylock acquires m if that is possible without blocking; otherwise it
/// fails with -EBUSY.
func (m *Mutex_t) Trylock() defs.Err_t {
	return m.lock(true, time.Time{})
}

/// Timedlock is Lock that gives up with -ETIMEDOUT at deadline.
func (m *Mutex_t) Timedlock(deadline time.Time) defs.Err_t {
	if deadline.IsZero() {
		return -defs.EINVAL
	}
	return m.lock(false, deadline)
}

/// Unlock releases one level of ownership of m.
func (m *Mutex_t) Unlock() defs.Err_t {
	self := curthread()
	m.ready()
	if m.owner.Load() != self {
		return -defs.EPERM
	}
	m.count--
	if m.count == 0 {
		m.owner.Store(nil)
		m.sem.post()
	}
	return 0
}

/// Owner returns the thread holding m, or nil.
func (m *Mutex_t) Owner() *Thread_t {
	return m.owner.Load()
}

/// Depth returns the caller's recursion depth on m, 0 if the caller does
/// not own it.
func (m *Mutex_t) Depth() int {
	if m.owner.Load() != Self() {
		return 0
	}
	return m.count
}
