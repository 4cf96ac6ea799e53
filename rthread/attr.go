package rthread

import "rthread/defs"
import "rthread/stack"

/// Detach states.
const (
	CREATE_JOINABLE = 0
	CREATE_DETACHED = 1
)

/// Scheduling inheritance.
const (
	EXPLICIT_SCHED = 0
	INHERIT_SCHED  = 4
)

/// Scheduling policies. They are recorded and validated but the kernel
/// schedules every thread the same way.
const (
	SCHED_FIFO  = 1
	SCHED_OTHER = 2
	SCHED_RR    = 3
)

/// Priority bounds.
const (
	MIN_PRIORITY     = 0
	MAX_PRIORITY     = 126
	DEFAULT_PRIORITY = 64
)

/// STACK_MIN is the smallest stack a thread can be given.
const STACK_MIN = 16 * 1024

/// Sched_param_t holds the scheduling parameters.
type Sched_param_t struct {
	Priority int
}

/// Attr_t holds thread creation attributes. Initialize with MkAttr or
/// Init; the zero value is rejected by Create.
type Attr_t struct {
	stackaddr []uint8
	stacksize int
	guardsize int
	detach    int
	inherit   int
	policy    int
	param     Sched_param_t
	suspended bool
	name      string
	inited    bool
}

var defattr = Attr_t{
	stacksize: stack.DEFSIZE,
	detach:    CREATE_JOINABLE,
	inherit:   INHERIT_SCHED,
	policy:    SCHED_OTHER,
	param:     Sched_param_t{Priority: DEFAULT_PRIORITY},
	inited:    true,
}

/// MkAttr returns the default attributes.
func MkAttr() *Attr_t {
	a := &Attr_t{}
	a.Init()
	return a
}

/// Init resets a to the defaults.
func (a *Attr_t) Init() defs.Err_t {
	*a = defattr
	a.guardsize = stack.DEFGUARD
	return 0
}

/// Destroy invalidates a.
func (a *Attr_t) Destroy() defs.Err_t {
	if !a.inited {
		return -defs.EINVAL
	}
	*a = Attr_t{}
	return 0
}

/// Setstacksize sets the size of the stack the runtime maps.
func (a *Attr_t) Setstacksize(n int) defs.Err_t {
	if n < STACK_MIN {
		return -defs.EINVAL
	}
	a.stacksize = n
	return 0
}

func (a *Attr_t) Getstacksize() int {
	return a.stacksize
}

/// Setstack makes the thread run on caller owned memory, which the
/// runtime never caches or unmaps. No guard is installed.
func (a *Attr_t) Setstack(buf []uint8) defs.Err_t {
	if len(buf) < STACK_MIN {
		return -defs.EINVAL
	}
	a.stackaddr = buf
	a.stacksize = len(buf)
	return 0
}

func (a *Attr_t) Getstack() []uint8 {
	return a.stackaddr
}

/// Setguardsize sets the size of the inaccessible region below the stack;
/// it is rounded up to whole pages.
func (a *Attr_t) Setguardsize(n int) defs.Err_t {
	if n < 0 {
		return -defs.EINVAL
	}
	a.guardsize = n
	return 0
}

func (a *Attr_t) Getguardsize() int {
	return a.guardsize
}

func (a *Attr_t) Setdetachstate(s int) defs.Err_t {
	if s != CREATE_JOINABLE && s != CREATE_DETACHED {
		return -defs.EINVAL
	}
	a.detach = s
	return 0
}

func (a *Attr_t) Getdetachstate() int {
	return a.detach
}

func (a *Attr_t) Setinheritsched(s int) defs.Err_t {
	if s != INHERIT_SCHED && s != EXPLICIT_SCHED {
		return -defs.EINVAL
	}
	a.inherit = s
	return 0
}

func (a *Attr_t) Getinheritsched() int {
	return a.inherit
}

func (a *Attr_t) Setschedpolicy(p int) defs.Err_t {
	switch p {
	case SCHED_FIFO, SCHED_OTHER, SCHED_RR:
		a.policy = p
		return 0
	}
	return -defs.ENOTSUP
}

func (a *Attr_t) Getschedpolicy() int {
	return a.policy
}

func (a *Attr_t) Setschedparam(p Sched_param_t) defs.Err_t {
	if p.Priority < MIN_PRIORITY || p.Priority > MAX_PRIORITY {
		return -defs.EINVAL
	}
	a.param = p
	return 0
}

func (a *Attr_t) Getschedparam() Sched_param_t {
	return a.param
}

/// Setcreatesuspended makes Create leave the new thread stopped until
/// Resume.
func (a *Attr_t) Setcreatesuspended(on bool) defs.Err_t {
	a.suspended = on
	return 0
}

/// Setname sets the name the thread starts with.
func (a *Attr_t) Setname(name string) defs.Err_t {
	a.name = mkname(name)
	return 0
}

// resolve fills in what the attributes inherit from the creating thread.
func (a *Attr_t) resolve(self *Thread_t) Attr_t {
	r := *a
	if r.inherit == INHERIT_SCHED && self != nil {
		r.policy = self.attr.policy
		r.param = self.attr.param
	}
	return r
}
