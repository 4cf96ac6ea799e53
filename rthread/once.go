package rthread

import "sync/atomic"

import "rthread/defs"

/// Once_t runs an initializer exactly once. The zero value is ready.
type Once_t struct {
	mutex Mutex_t
	done  atomic.Bool
}

/// Do calls fn unless some call of Do on o already completed it. Callers
/// that arrive while fn runs wait for it.
func (o *Once_t) Do(fn func()) defs.Err_t {
	if o.done.Load() {
		return 0
	}
	if err := o.mutex.Lock(); err != 0 {
		return err
	}
	if !o.done.Load() {
		// a canceled initializer leaves o unrun and unlocked
		Cleanup_push(func(interface{}) { o.mutex.Unlock() }, nil)
		fn()
		o.done.Store(true)
		Cleanup_pop(false)
	}
	o.mutex.Unlock()
	return 0
}
