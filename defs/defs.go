package defs

import "strconv"

/// Err_t is an error code. 0 means success; failures are negative errno
/// values, e.g. -EINVAL.
type Err_t int

/// Tid_t is a kernel thread id. 0 means the kernel has torn the thread down.
type Tid_t int32

/// Error codes returned by the runtime and the kernel boundary.
const (
	EPERM     Err_t = 1  /// operation not permitted (unlock by non-owner)
	ESRCH     Err_t = 3  /// no such thread
	EINTR     Err_t = 4  /// interrupted kernel sleep
	ENOMEM    Err_t = 12 /// out of memory
	EBUSY     Err_t = 16 /// resource busy
	EINVAL    Err_t = 22 /// invalid argument
	EAGAIN    Err_t = 35 /// resource temporarily unavailable
	EDEADLK   Err_t = 11 /// resource deadlock avoided
	ENOTSUP   Err_t = 91 /// not supported
	ETIMEDOUT Err_t = 60 /// deadline passed
	ECANCELED Err_t = 88 /// wait aborted by cancellation
	EOVERFLOW Err_t = 87 /// value too large
)

var errnames = map[Err_t]string{
	EPERM:     "EPERM",
	ESRCH:     "ESRCH",
	EINTR:     "EINTR",
	ENOMEM:    "ENOMEM",
	EBUSY:     "EBUSY",
	EINVAL:    "EINVAL",
	EAGAIN:    "EAGAIN",
	EDEADLK:   "EDEADLK",
	ENOTSUP:   "ENOTSUP",
	ETIMEDOUT: "ETIMEDOUT",
	ECANCELED: "ECANCELED",
	EOVERFLOW: "EOVERFLOW",
}

/// String returns the symbolic name of the code, e.g. "-EBUSY".
func (e Err_t) String() string {
	if e == 0 {
		return "OK"
	}
	n := e
	sign := ""
	if n < 0 {
		n = -n
		sign = "-"
	}
	if s, ok := errnames[n]; ok {
		return sign + s
	}
	return "errno " + strconv.Itoa(int(e))
}

/// Error lets a non-zero Err_t travel through interfaces expecting error.
func (e Err_t) Error() string {
	return e.String()
}

/// Signal numbers understood by the kernel boundary.
const (
	SIGHUP  int = 1
	SIGINT  int = 2
	SIGUSR1 int = 30
	SIGUSR2 int = 31
	// reserved for cancellation; never visible to callers
	SIGTHR int = 32
	NSIG   int = 33
)

/// Sigset_t is a set of signals, bit n-1 for signal n.
type Sigset_t uint64

/// Sigmask how values.
const (
	SIG_BLOCK   int = 1
	SIG_UNBLOCK int = 2
	SIG_SETMASK int = 3
)

/// Sigbit returns the set containing only sig.
func Sigbit(sig int) Sigset_t {
	if sig <= 0 || sig >= NSIG {
		panic("bad signal")
	}
	return Sigset_t(1) << uint(sig-1)
}

/// Has reports whether sig is a member of the set.
func (s Sigset_t) Has(sig int) bool {
	return s&Sigbit(sig) != 0
}

/// Lowest returns the lowest numbered signal in the set, or 0.
func (s Sigset_t) Lowest() int {
	for sig := 1; sig < NSIG; sig++ {
		if s.Has(sig) {
			return sig
		}
	}
	return 0
}

/// Canceled_t is the type of Canceled.
type Canceled_t struct{}

/// Canceled is the return value of a thread that was terminated by
/// cancellation.
var Canceled interface{} = &Canceled_t{}
