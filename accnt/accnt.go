package accnt

import "sync/atomic"
import "time"

/**
 * Accnt_t accumulates per-thread accounting information.
 *
 * Start is stamped when the thread begins running; Sleepns grows by the
 * time spent blocked in kernel sleeps. Runtime is derived from the two.
 */
type Accnt_t struct {
	/// Nanosecond timestamp of thread start.
	Start int64
	/// Nanosecond timestamp of thread end, 0 while running.
	End int64
	/// Nanoseconds spent blocked in the kernel.
	Sleepns int64
}

/// Now returns the current time in nanoseconds.
func (a *Accnt_t) Now() int64 {
	return time.Now().UnixNano()
}

/// Begin stamps the start of the thread.
func (a *Accnt_t) Begin() {
	atomic.StoreInt64(&a.Start, a.Now())
}

/// Sleep_time adds the time since @p since to the blocked counter.
///
/// @param since Timestamp when the sleep began, in nanoseconds.
func (a *Accnt_t) Sleep_time(since int64) {
	atomic.AddInt64(&a.Sleepns, a.Now()-since)
}

/// Finish stamps the end of the thread.
func (a *Accnt_t) Finish() {
	atomic.StoreInt64(&a.End, a.Now())
}

/// Fetch returns a snapshot of the time spent runnable and blocked.
func (a *Accnt_t) Fetch() (run time.Duration, sleep time.Duration) {
	start := atomic.LoadInt64(&a.Start)
	if start == 0 {
		return 0, 0
	}
	end := atomic.LoadInt64(&a.End)
	if end == 0 {
		end = a.Now()
	}
	sl := atomic.LoadInt64(&a.Sleepns)
	tot := end - start
	if sl > tot {
		sl = tot
	}
	return time.Duration(tot - sl), time.Duration(sl)
}
