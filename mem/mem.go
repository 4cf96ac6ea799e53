// Package mem maps anonymous memory for thread stacks.
package mem

import "sync/atomic"
import "unsafe"

import "golang.org/x/sys/unix"

import "rthread/defs"
import "rthread/util"

/// PGSIZE is the size of a single page in bytes.
var PGSIZE int = unix.Getpagesize()

/// Protections accepted by Mprotect.
const (
	PROT_NONE = unix.PROT_NONE
	PROT_RW   = unix.PROT_READ | unix.PROT_WRITE
)

/// Mapping_t is one anonymous mapping.
type Mapping_t struct {
	Buf []uint8
}

/// Base returns the address of the first byte of the mapping.
func (m *Mapping_t) Base() uintptr {
	return uintptr(unsafe.Pointer(&m.Buf[0]))
}

/// Len returns the length of the mapping.
func (m *Mapping_t) Len() int {
	return len(m.Buf)
}

// bytes currently mapped through this package
var mapped atomic.Int64

/// Mapped returns the number of bytes currently mapped.
func Mapped() int64 {
	return mapped.Load()
}

/// Pgroundup rounds n up to a page multiple; false on overflow.
func Pgroundup(n int) (int, bool) {
	return util.Roundup(n, PGSIZE)
}

func errno(err error) defs.Err_t {
	switch err {
	case unix.EINVAL:
		return -defs.EINVAL
	case unix.EAGAIN:
		return -defs.EAGAIN
	case unix.EPERM, unix.EACCES:
		return -defs.EPERM
	}
	return -defs.ENOMEM
}

/// Mmap maps len bytes of zeroed, private, read-write memory suitable for a
/// stack. len must be a page multiple.
func Mmap(len int) (*Mapping_t, defs.Err_t) {
	if len <= 0 || len%PGSIZE != 0 {
		return nil, -defs.EINVAL
	}
	b, err := unix.Mmap(-1, 0, len, PROT_RW,
		unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_STACK)
	if err != nil {
		return nil, errno(err)
	}
	mapped.Add(int64(len))
	return &Mapping_t{Buf: b}, 0
}

/// Mprotect changes the protection of [off, off+len) within m.
func Mprotect(m *Mapping_t, off, len, prot int) defs.Err_t {
	if off < 0 || len < 0 || off+len > m.Len() || off%PGSIZE != 0 {
		return -defs.EINVAL
	}
	if len == 0 {
		return 0
	}
	if err := unix.Mprotect(m.Buf[off:off+len], prot); err != nil {
		return errno(err)
	}
	return 0
}

/// Munmap releases m. m must not be used afterwards.
func Munmap(m *Mapping_t) defs.Err_t {
	l := m.Len()
	if err := unix.Munmap(m.Buf); err != nil {
		return errno(err)
	}
	m.Buf = nil
	mapped.Add(-int64(l))
	return 0
}
