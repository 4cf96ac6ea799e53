package rthread

type cleanup_t struct {
	fn  func(interface{})
	arg interface{}
}

/// Cleanup_push registers fn(arg) to run if the caller exits or is
/// canceled before the matching Cleanup_pop.
func Cleanup_push(fn func(interface{}), arg interface{}) {
	self := curthread()
	self.cleanup = append(self.cleanup, cleanup_t{fn: fn, arg: arg})
}

/// Cleanup_pop removes the most recently pushed handler and runs it if
/// execute is set.
func Cleanup_pop(execute bool) {
	self := curthread()
	n := len(self.cleanup)
	if n == 0 {
		return
	}
	c := self.cleanup[n-1]
	self.cleanup[n-1] = cleanup_t{}
	self.cleanup = self.cleanup[:n-1]
	if execute && c.fn != nil {
		c.fn(c.arg)
	}
}
