package rthread

import "rthread/defs"
import "rthread/kern"

var thrbit = defs.Sigbit(defs.SIGTHR)

/// Sigmask changes the caller's blocked signal set and returns the old
/// one. The signal reserved for cancellation can be neither blocked nor
/// seen.
func Sigmask(how int, set defs.Sigset_t) (defs.Sigset_t, defs.Err_t) {
	old, err := kernel.Sigmask(how, set&^thrbit)
	return old &^ thrbit, err
}

/// Kill sends sig to t.
func Kill(t *Thread_t, sig int) defs.Err_t {
	if sig == defs.SIGTHR {
		return -defs.EINVAL
	}
	if !t.valid() {
		return -defs.ESRCH
	}
	tid := t.Tid()
	if tid <= 0 {
		return -defs.ESRCH
	}
	if sig == 0 {
		return 0
	}
	return kernel.Kill(tid, sig)
}

/// Sigaction installs a process-wide handler for sig and returns the old
/// one.
func Sigaction(sig int, h kern.Handler_t) (kern.Handler_t, defs.Err_t) {
	if sig == defs.SIGTHR {
		return nil, -defs.EINVAL
	}
	return kernel.Sigaction(sig, h)
}
