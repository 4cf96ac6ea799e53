package limits

import "sync/atomic"

/// Sysatomic_t is a numeric limit that can be atomically updated.
type Sysatomic_t int64

/// Syslimit_t tracks system wide resource limits.
type Syslimit_t struct {
	// free kernel thread slots; taken by Tfork, given back at teardown
	Threads Sysatomic_t
	// default-shaped stacks kept mapped for reuse
	Stackcache Sysatomic_t
	// number of futex hash buckets; read once when the kernel starts
	Futexes int
}

/// Syslimit describes the configured system wide limits.
var Syslimit *Syslimit_t = MkSysLimit()

/// MkSysLimit returns a pointer to the default set of limits.
func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{
		// the Go runtime aborts the process beyond 10000 OS threads
		Threads:    4096,
		Stackcache: 64,
		Futexes:    256,
	}
}

/// Given increases the limit by the provided amount.
func (s *Sysatomic_t) Given(_n uint) {
	n := int64(_n)
	if n < 0 {
		panic("too mighty")
	}
	atomic.AddInt64((*int64)(s), n)
}

/// Taken tries to decrement the limit by the provided amount.
/// It returns true on success.
func (s *Sysatomic_t) Taken(_n uint) bool {
	n := int64(_n)
	if n < 0 {
		panic("too mighty")
	}
	g := atomic.AddInt64((*int64)(s), -n)
	if g >= 0 {
		return true
	}
	atomic.AddInt64((*int64)(s), n)
	return false
}

/// Take decrements the limit and reports whether it succeeded.
func (s *Sysatomic_t) Take() bool {
	return s.Taken(1)
}

/// Give increments the limit by one.
func (s *Sysatomic_t) Give() {
	s.Given(1)
}

/// Load returns the remaining amount.
func (s *Sysatomic_t) Load() int64 {
	return atomic.LoadInt64((*int64)(s))
}

/// Swap installs n and returns the previous amount. Used to shrink or grow
/// a limit while the system is running.
func (s *Sysatomic_t) Swap(n int64) int64 {
	return atomic.SwapInt64((*int64)(s), n)
}
