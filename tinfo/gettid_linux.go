package tinfo

import "golang.org/x/sys/unix"

import "rthread/defs"

/// Gettid returns the id of the OS thread the caller is running on. It only
/// identifies a thread for goroutines pinned with runtime.LockOSThread.
func Gettid() defs.Tid_t {
	return defs.Tid_t(unix.Gettid())
}
