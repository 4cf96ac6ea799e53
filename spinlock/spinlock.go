// Package spinlock provides the busy-wait lock that protects the runtime's
// internal metadata.
//
// A Spinlock_t must only be held across short, non-blocking updates. Never
// sleep, allocate a stack or call into user code while holding one.
package spinlock

import "runtime"
import "sync/atomic"

/// Spinlock_t is a test-and-set lock. The zero value is unlocked. There is
/// no fairness between contending threads.
type Spinlock_t struct {
	v uint32
}

/// Lock spins until the lock is acquired, yielding the processor between
/// attempts.
func (l *Spinlock_t) Lock() {
	for !atomic.CompareAndSwapUint32(&l.v, 0, 1) {
		runtime.Gosched()
	}
}

/// Trylock acquires the lock if it is free and reports whether it did.
func (l *Spinlock_t) Trylock() bool {
	return atomic.CompareAndSwapUint32(&l.v, 0, 1)
}

/// Unlock marks the lock free.
func (l *Spinlock_t) Unlock() {
	atomic.StoreUint32(&l.v, 0)
}

/// Held reports whether somebody holds the lock. Only meaningful for
/// assertions.
func (l *Spinlock_t) Held() bool {
	return atomic.LoadUint32(&l.v) != 0
}
