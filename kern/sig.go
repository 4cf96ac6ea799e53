package kern

import "rthread/defs"
import "rthread/tinfo"

/// Kill marks sig pending on thread tid. If the signal is not blocked and
/// the thread is asleep in the kernel, the sleep is interrupted; otherwise
/// the thread handles the signal at its next kernel entry.
func (k *Kern_t) Kill(tid defs.Tid_t, sig int) defs.Err_t {
	if sig <= 0 || sig >= defs.NSIG {
		return -defs.EINVAL
	}
	n := tinfo.Threads.Lookup(tid)
	if n == nil {
		return -defs.ESRCH
	}
	n.Lock()
	n.Sigpend |= defs.Sigbit(sig)
	if n.Deliverable().Has(sig) && n.Sleeper != nil {
		n.Sleeper.Interrupt()
	}
	n.Unlock()
	k.Stats.Nsignal.Inc()
	return 0
}

/// Sigaction installs h as the process-wide handler for sig and returns
/// the previous one. A nil handler discards the signal.
func (k *Kern_t) Sigaction(sig int, h Handler_t) (Handler_t, defs.Err_t) {
	if sig <= 0 || sig >= defs.NSIG {
		return nil, -defs.EINVAL
	}
	k.sigl.Lock()
	old := k.handlers[sig]
	k.handlers[sig] = h
	k.sigl.Unlock()
	return old, 0
}

/// Sigmask changes the calling thread's blocked set and returns the old
/// one. Signals unblocked by the call are handled before it returns.
func (k *Kern_t) Sigmask(how int, set defs.Sigset_t) (defs.Sigset_t, defs.Err_t) {
	n := tinfo.Current()
	if n == nil {
		return 0, -defs.ESRCH
	}
	n.Lock()
	old := n.Sigmask
	switch how {
	case defs.SIG_BLOCK:
		n.Sigmask |= set
	case defs.SIG_UNBLOCK:
		n.Sigmask &^= set
	case defs.SIG_SETMASK:
		n.Sigmask = set
	default:
		n.Unlock()
		return old, -defs.EINVAL
	}
	pending := n.Deliverable() != 0
	n.Unlock()
	if pending {
		k.Sigdeliver()
	}
	return old, 0
}

/// Sigdeliver implements Kernel_i. Handlers run one signal at a time,
/// lowest number first, without any kernel lock held.
func (k *Kern_t) Sigdeliver() {
	n := tinfo.Current()
	if n == nil {
		return
	}
	for {
		n.Lock()
		sig := n.Deliverable().Lowest()
		if sig == 0 {
			n.Unlock()
			return
		}
		n.Sigpend &^= defs.Sigbit(sig)
		n.Unlock()

		k.sigl.Lock()
		h := k.handlers[sig]
		k.sigl.Unlock()
		if h != nil {
			h(sig)
		}
	}
}
