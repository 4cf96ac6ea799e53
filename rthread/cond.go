package rthread

import "sync/atomic"
import "time"

import "rthread/defs"
import "rthread/kern"

/// Condattr_t carries the attributes of a condition variable.
type Condattr_t struct {
	clock kern.Clock_t
}

/// MkCondattr returns attributes for a realtime-clock condition variable.
func MkCondattr() *Condattr_t {
	return &Condattr_t{clock: kern.CLOCK_REALTIME}
}

/// Setclock selects the clock Timedwait deadlines are measured against.
func (a *Condattr_t) Setclock(c kern.Clock_t) defs.Err_t {
	if c != kern.CLOCK_REALTIME && c != kern.CLOCK_MONOTONIC {
		return -defs.EINVAL
	}
	a.clock = c
	return 0
}

/// Getclock returns the configured clock.
func (a *Condattr_t) Getclock() kern.Clock_t {
	return a.clock
}

/// Cond_t is a condition variable. The zero value is ready to use. A
/// Cond_t must not be copied after first use.
type Cond_t struct {
	sem   sem_t
	state uint32
}

func (c *Cond_t) ready() {
	lazyinit(&c.state, "condition variable", func() {
		c.sem = sem_t{clock: kern.CLOCK_REALTIME, handoff: true}
	})
}

/// Init (re)initializes c with attributes a, or the defaults if a is nil.
func (c *Cond_t) Init(a *Condattr_t) defs.Err_t {
	c.sem = sem_t{clock: kern.CLOCK_REALTIME, handoff: true}
	if a != nil {
		c.sem.clock = a.clock
	}
	atomic.StoreUint32(&c.state, st_ready)
	return 0
}

/// Destroy invalidates c. It refuses while threads are waiting.
func (c *Cond_t) Destroy() defs.Err_t {
	if atomic.LoadUint32(&c.state) == st_dead {
		return -defs.EINVAL
	}
	c.ready()
	c.sem.lock.Lock()
	if n := c.sem.waitcount; n > 0 {
		c.sem.lock.Unlock()
		diag("condition variable %p destroyed with %d waiters", c, n)
		return -defs.EBUSY
	}
	atomic.StoreUint32(&c.state, st_dead)
	c.sem.lock.Unlock()
	return 0
}

/// Wait atomically releases m and blocks until c is signaled, then
/// reacquires m. m must be held by the caller, at any recursion depth;
/// the depth is restored on return. Wait is a cancellation point: a
/// canceled waiter exits with m held.
func (c *Cond_t) Wait(m *Mutex_t) defs.Err_t {
	return c.wait(m, time.Time{})
}

/// Timedwait is Wait that returns -ETIMEDOUT once deadline has passed.
/// m is held again on return in every case.
func (c *Cond_t) Timedwait(m *Mutex_t, deadline time.Time) defs.Err_t {
	if deadline.IsZero() {
		return -defs.EINVAL
	}
	return c.wait(m, deadline)
}

func (c *Cond_t) wait(m *Mutex_t, deadline time.Time) defs.Err_t {
	self := curthread()
	c.ready()
	m.ready()
	if m.owner.Load() != self {
		return -defs.EPERM
	}

	enter_delayed_cancel(self)
	depth := m.count
	m.count = 1
	m.Unlock()

	self.setstate(ST_CONDWAIT)
	r := c.sem.wait(false, deadline, &self.delayed_cancel)
	self.setstate(ST_RUNNING)

	// cannot fail: the mutex type only matters to its owner
	m.Lock()
	m.count = depth
	leave_delayed_cancel(self, r == -defs.EINTR)
	if r == -defs.ETIMEDOUT {
		return r
	}
	return 0
}

/// Signal wakes one thread waiting on c, if any.
func (c *Cond_t) Signal() defs.Err_t {
	c.ready()
	c.sem.wakeup()
	return 0
}

/// Broadcast wakes every thread waiting on c.
func (c *Cond_t) Broadcast() defs.Err_t {
	c.ready()
	c.sem.wakeall()
	return 0
}
