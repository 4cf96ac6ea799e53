package rthread

import "golang.org/x/text/unicode/norm"

import "rthread/defs"

/// NAMELEN bounds a thread name in bytes, terminator included.
const NAMELEN = 32

// mkname normalizes name to NFC and cuts it at the last normalization
// boundary that fits, so a combining sequence is never split.
func mkname(name string) string {
	var it norm.Iter
	it.InitString(norm.NFC, name)
	out := make([]byte, 0, NAMELEN)
	for !it.Done() {
		seg := it.Next()
		if len(out)+len(seg) > NAMELEN-1 {
			break
		}
		out = append(out, seg...)
	}
	return string(out)
}

/// Setname names t.
func Setname(t *Thread_t, name string) defs.Err_t {
	if !t.valid() {
		return -defs.ESRCH
	}
	n := mkname(name)
	t.flagl.Lock()
	t.name = n
	t.flagl.Unlock()
	return 0
}

/// Getname returns t's name.
func Getname(t *Thread_t) (string, defs.Err_t) {
	if !t.valid() {
		return "", -defs.ESRCH
	}
	t.flagl.Lock()
	n := t.name
	t.flagl.Unlock()
	return n, 0
}
