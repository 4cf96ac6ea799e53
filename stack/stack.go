// Package stack allocates guarded thread stacks and caches the ones with
// the default shape for reuse.
package stack

import "math/rand/v2"
import "unsafe"

import "rthread/defs"
import "rthread/limits"
import "rthread/mem"
import "rthread/spinlock"
import "rthread/stats"
import "rthread/util"

/// DEFSIZE is the default stack size in bytes, guard excluded.
const DEFSIZE int = 256 * 1024

/// ALIGNBYTES is the initial stack pointer alignment mask.
const ALIGNBYTES uintptr = 15

// all supported architectures grow their stacks down
const growsdown = true

/// DEFGUARD is the default guard size, one page.
var DEFGUARD int = mem.PGSIZE

/// Stack_t describes one thread stack.
type Stack_t struct {
	Base    uintptr
	Len     int
	Guard   uintptr
	Guardsz int
	// initial stack pointer handed to the kernel
	Sp uintptr
	// nil for caller supplied memory, which is never cached or unmapped
	m   *mem.Mapping_t
	ext []uint8
	next *Stack_t
}

/// Extern reports whether the memory belongs to the caller.
func (s *Stack_t) Extern() bool {
	return s.m == nil
}

/// Stats_t counts allocator activity.
type Stats_t struct {
	Nmap    stats.Counter_t
	Nunmap  stats.Counter_t
	Ncached stats.Counter_t
	Nreused stats.Counter_t
	Nextern stats.Counter_t
}

/// Stats is updated by Acquire and Release.
var Stats Stats_t

type cache_t struct {
	spinlock.Spinlock_t
	head *Stack_t
	n    int64
}

var defstacks cache_t

func (c *cache_t) pop() *Stack_t {
	c.Lock()
	s := c.head
	if s != nil {
		c.head = s.next
		s.next = nil
		c.n--
	}
	c.Unlock()
	return s
}

func (c *cache_t) push(s *Stack_t) bool {
	c.Lock()
	defer c.Unlock()
	if c.n >= limits.Syslimit.Stackcache.Load() {
		return false
	}
	s.next = c.head
	c.head = s
	c.n++
	return true
}

/// Cached returns the number of stacks waiting in the cache.
func Cached() int {
	defstacks.Lock()
	n := defstacks.n
	defstacks.Unlock()
	return int(n)
}

func isdefault(size, guard int) bool {
	return size == DEFSIZE && guard == DEFGUARD
}

// smaller stacks get a smaller random bias
func bias(size int) uintptr {
	var rnd uintptr
	if size > mem.PGSIZE {
		rnd = uintptr(rand.IntN(mem.PGSIZE))
	} else {
		rnd = uintptr(rand.IntN(size/16 + 1))
	}
	return rnd &^ ALIGNBYTES
}

func initsp(base uintptr, len int, rnd uintptr) uintptr {
	if growsdown {
		return base + uintptr(len) - (ALIGNBYTES + 1) - rnd
	}
	return base + rnd
}

/// Acquire returns a stack for a new thread. If ext is non-nil it is
/// wrapped as is; otherwise a stack of size bytes plus guard bytes of
/// inaccessible memory is mapped, or pulled from the cache when the shape
/// is the default one.
func Acquire(ext []uint8, size, guard int) (*Stack_t, defs.Err_t) {
	if ext != nil {
		if len(ext) < 2*int(ALIGNBYTES+1) {
			return nil, -defs.EINVAL
		}
		s := &Stack_t{ext: ext, Len: len(ext)}
		s.Base = uintptrof(ext)
		s.Sp = initsp(s.Base, s.Len, bias(s.Len))
		Stats.Nextern.Inc()
		return s, 0
	}
	if size <= 0 || guard < 0 {
		return nil, -defs.EINVAL
	}
	if isdefault(size, guard) {
		if s := defstacks.pop(); s != nil {
			Stats.Nreused.Inc()
			return s, 0
		}
	}

	rsize, ok1 := mem.Pgroundup(size)
	rguard, ok2 := mem.Pgroundup(guard)
	tot, ok3 := util.Addok(rsize, rguard)
	if !ok1 || !ok2 || !ok3 {
		return nil, -defs.EINVAL
	}
	m, err := mem.Mmap(tot)
	if err != 0 {
		return nil, err
	}
	s := &Stack_t{m: m, Base: m.Base(), Len: tot, Guardsz: rguard}
	goff := 0
	if !growsdown {
		goff = tot - rguard
	}
	s.Guard = s.Base + uintptr(goff)
	if err := mem.Mprotect(m, goff, rguard, mem.PROT_NONE); err != 0 {
		mem.Munmap(m)
		return nil, err
	}
	s.Sp = initsp(s.Base, tot, bias(rsize))
	Stats.Nmap.Inc()
	return s, 0
}

/// Release gives back a stack acquired with Acquire. Default-shaped stacks
/// go to the cache; the others are unmapped. Caller supplied memory is left
/// alone.
func Release(s *Stack_t) {
	if s.Extern() {
		s.ext = nil
		return
	}
	if s.Len == DEFSIZE+DEFGUARD && s.Guardsz == DEFGUARD {
		if defstacks.push(s) {
			Stats.Ncached.Inc()
			return
		}
	}
	if err := mem.Munmap(s.m); err != 0 {
		panic("stack unmap failed")
	}
	Stats.Nunmap.Inc()
}

/// Drain unmaps every cached stack.
func Drain() {
	for s := defstacks.pop(); s != nil; s = defstacks.pop() {
		if err := mem.Munmap(s.m); err != 0 {
			panic("stack unmap failed")
		}
		Stats.Nunmap.Inc()
	}
}

func uintptrof(b []uint8) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}
