// Package rthread is a POSIX-style thread runtime: thread creation, join,
// detach and cancellation, mutexes, condition variables, semaphores and
// thread-local storage, layered on the kernel boundary in package kern.
//
// Every runtime thread is either created with Create or adopted with Adopt.
// Operations that need the caller's identity (mutexes, condition waits,
// TLS, cancellation) panic when called from a goroutine that is neither.
package rthread

import "fmt"
import "io"
import "os"
import "sync/atomic"

import "rthread/defs"
import "rthread/kern"
import "rthread/stats"
import "rthread/tinfo"

/// Debug enables tracing written to Diag. 0 is off.
var Debug int

/// Diag receives the runtime's diagnostics.
var Diag io.Writer = os.Stderr

var kernel kern.Kernel_i = kern.MkKern()

func diag(format string, args ...interface{}) {
	fmt.Fprintf(Diag, "rthread: "+format+"\n", args...)
}

func dprintf(level int, format string, args ...interface{}) {
	if Debug >= level {
		diag(format, args...)
	}
}

/// Stats_t counts runtime activity.
type Stats_t struct {
	Ncreate stats.Counter_t
	Nexit   stats.Counter_t
	Njoin   stats.Counter_t
	Ndetach stats.Counter_t
	Ncancel stats.Counter_t
	Nreap   stats.Counter_t
	Nadopt  stats.Counter_t
}

/// Stats is updated by the thread lifecycle operations.
var Stats Stats_t

func init() {
	if _, err := kernel.Sigaction(defs.SIGTHR, sigthr); err != 0 {
		panic("cannot install cancellation handler")
	}
}

/// Self returns the calling thread, or nil if the calling goroutine is not
/// a runtime thread.
func Self() *Thread_t {
	n := tinfo.Current()
	if n == nil {
		return nil
	}
	t, _ := n.Thread.(*Thread_t)
	return t
}

func curthread() *Thread_t {
	t := Self()
	if t == nil {
		panic("rthread: calling goroutine is not a thread")
	}
	return t
}

/// Equal reports whether a and b name the same thread.
func Equal(a, b *Thread_t) bool {
	return a == b
}

/// Yield gives up the processor. Pending signals, including an
/// asynchronous cancellation request, are handled before it returns.
func Yield() {
	kernel.Yield()
}

var concurrency atomic.Int32

/// Setconcurrency records the application's concurrency hint. The runtime
/// is 1:1, so the hint has no effect.
func Setconcurrency(n int) defs.Err_t {
	if n < 0 {
		return -defs.EINVAL
	}
	concurrency.Store(int32(n))
	return 0
}

/// Getconcurrency returns the last hint given to Setconcurrency.
func Getconcurrency() int {
	return int(concurrency.Load())
}

/// Errno returns the calling thread's private error slot.
func Errno() defs.Err_t {
	return curthread().note.Errno
}

/// Seterrno sets the calling thread's private error slot.
func Seterrno(e defs.Err_t) {
	curthread().note.Errno = e
}
