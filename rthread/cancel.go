package rthread

import "sync/atomic"

import "rthread/defs"

/// Cancelability.
const (
	CANCEL_ENABLE       = 0
	CANCEL_DISABLE      = 1
	CANCEL_DEFERRED     = 0
	CANCEL_ASYNCHRONOUS = 2
)

/// Cancel asks t to terminate. A thread with cancellation enabled is
/// interrupted out of any sleep; deferred threads then exit at the
/// cancellation point they are in or reach next, asynchronous ones at
/// their next entry into the kernel. A disabled thread keeps the request
/// until it enables cancellation and reaches a cancellation point.
func Cancel(t *Thread_t) defs.Err_t {
	if t == nil {
		return -defs.EINVAL
	}
	if !t.valid() {
		return -defs.ESRCH
	}
	t.flagl.Lock()
	tid := t.Tid()
	if t.flags&(f_dying|f_canceled) == 0 && tid > 0 {
		t.flags |= f_canceled
		Stats.Ncancel.Inc()
		if t.flags&f_cancel_enable != 0 {
			t.flagl.Unlock()
			kernel.Kill(tid, defs.SIGTHR)
			if t == Self() {
				kernel.Sigdeliver()
			}
			return 0
		}
	}
	t.flagl.Unlock()
	return 0
}

// sigthr runs on the canceled thread when it enters the kernel.
func sigthr(int) {
	self := Self()
	if self == nil {
		return
	}
	self.flagl.Lock()
	f := self.flags
	if f&f_canceled == 0 || f&f_cancel_enable == 0 || f&f_dying != 0 {
		self.flagl.Unlock()
		return
	}
	if f&f_cancel_delay != 0 {
		atomic.StoreInt32(&self.delayed_cancel, 1)
		self.flagl.Unlock()
		return
	}
	if self.insem > 0 {
		// unwinding now would corrupt the semaphore's waiter count
		if f&f_cancel_deferred == 0 {
			self.asyncpend = true
		}
		self.flagl.Unlock()
		return
	}
	exit := self.cancel_point > 0 || f&f_cancel_deferred == 0
	self.flagl.Unlock()
	if exit {
		Exit(defs.Canceled)
	}
}

// asyncpoint applies an asynchronous cancel that arrived during an
// internal semaphore wait. Callers reach it only after they have recorded
// what the wait granted them, so the exit sees consistent state.
func asyncpoint(self *Thread_t) {
	if self.insem != 0 || !self.asyncpend {
		return
	}
	self.asyncpend = false
	testasync(self)
}

// testasync exits the caller if it has an enabled asynchronous cancel
// request and is outside any delayed region.
func testasync(self *Thread_t) {
	self.flagl.Lock()
	f := self.flags
	self.flagl.Unlock()
	if f&(f_canceled|f_cancel_enable) == f_canceled|f_cancel_enable &&
		f&(f_cancel_deferred|f_dying|f_cancel_delay) == 0 {
		Exit(defs.Canceled)
	}
}

// enter_delayed_cancel starts a cancellation point that blocks. A pending
// cancel is acted on immediately; one that arrives inside the region
// interrupts the blocking wait through delayed_cancel.
func enter_delayed_cancel(self *Thread_t) {
	self.flagl.Lock()
	if self.flags&f_cancel_enable == 0 {
		self.flagl.Unlock()
		return
	}
	atomic.StoreInt32(&self.delayed_cancel, 0)
	self.cancel_point++
	if self.flags&(f_canceled|f_dying) == f_canceled {
		self.flagl.Unlock()
		Exit(defs.Canceled)
	}
	self.flags |= f_cancel_delay
	self.flagl.Unlock()
}

// leave_delayed_cancel ends the region. can_cancel says the wait inside
// was interrupted; asynchronous threads exit on any pending cancel.
func leave_delayed_cancel(self *Thread_t, can_cancel bool) {
	self.flagl.Lock()
	if self.flags&f_cancel_delay == 0 {
		self.flagl.Unlock()
		return
	}
	self.flags &^= f_cancel_delay
	self.cancel_point--
	f := self.flags
	cancel := f&(f_canceled|f_dying) == f_canceled && f&f_cancel_enable != 0 &&
		(can_cancel || f&f_cancel_deferred == 0)
	if !cancel {
		atomic.StoreInt32(&self.delayed_cancel, 0)
	}
	self.flagl.Unlock()
	if cancel {
		Exit(defs.Canceled)
	}
}

/// Testcancel is a cancellation point: the caller exits if it has a
/// pending, enabled cancel request.
func Testcancel() {
	self := curthread()
	self.flagl.Lock()
	f := self.flags
	self.flagl.Unlock()
	if f&(f_canceled|f_cancel_enable|f_dying) == f_canceled|f_cancel_enable {
		Exit(defs.Canceled)
	}
}

/// Setcancelstate enables or disables cancellation of the caller and
/// returns the previous state.
func Setcancelstate(state int) (int, defs.Err_t) {
	self := curthread()
	self.flagl.Lock()
	old := CANCEL_DISABLE
	if self.flags&f_cancel_enable != 0 {
		old = CANCEL_ENABLE
	}
	switch state {
	case CANCEL_ENABLE:
		self.flags |= f_cancel_enable
	case CANCEL_DISABLE:
		self.flags &^= f_cancel_enable
	default:
		self.flagl.Unlock()
		return old, -defs.EINVAL
	}
	self.flagl.Unlock()
	if state == CANCEL_ENABLE {
		testasync(self)
	}
	return old, 0
}

/// Setcanceltype selects deferred or asynchronous cancellation for the
/// caller and returns the previous type. Asynchronous requests are acted
/// on at the next kernel entry (Yield, any blocking call) or cancellation
/// point.
func Setcanceltype(typ int) (int, defs.Err_t) {
	self := curthread()
	self.flagl.Lock()
	old := CANCEL_ASYNCHRONOUS
	if self.flags&f_cancel_deferred != 0 {
		old = CANCEL_DEFERRED
	}
	switch typ {
	case CANCEL_DEFERRED:
		self.flags |= f_cancel_deferred
	case CANCEL_ASYNCHRONOUS:
		self.flags &^= f_cancel_deferred
	default:
		self.flagl.Unlock()
		return old, -defs.EINVAL
	}
	self.flagl.Unlock()
	if typ == CANCEL_ASYNCHRONOUS {
		testasync(self)
	}
	return old, 0
}
