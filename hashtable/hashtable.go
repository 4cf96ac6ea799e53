// Package hashtable is a chained hash table whose Get takes no lock, for
// lookups on hot paths such as finding the calling thread's note by tid.
package hashtable

import "sync/atomic"
import "fmt"
import "hash/fnv"

import "sync"

import "rthread/defs"

type elem_t struct {
	key     interface{}
	value   interface{}
	keyHash uint32
	next    atomic.Pointer[elem_t]
}

// chains are kept sorted by keyHash so that Set and Del can stop early.
type bucket_t struct {
	sync.Mutex
	first atomic.Pointer[elem_t]
}

func (b *bucket_t) iter(f func(interface{}, interface{}) bool) bool {
	for e := b.first.Load(); e != nil; e = e.next.Load() {
		if f(e.key, e.value) {
			return true
		}
	}
	return false
}

/// Hashtable_t maps keys to values. Writers serialize per bucket; readers
/// never block.
type Hashtable_t struct {
	table []bucket_t
	n     atomic.Int64
}

/// MkHash allocates a new Hashtable_t with the given number of buckets.
func MkHash(size int) *Hashtable_t {
	if size <= 0 {
		panic("bad hashtable size")
	}
	return &Hashtable_t{table: make([]bucket_t, size)}
}

/// String returns a formatted representation of the table contents.
func (ht *Hashtable_t) String() string {
	s := ""
	for i := range ht.table {
		b := &ht.table[i]
		if b.first.Load() == nil {
			continue
		}
		s += fmt.Sprintf("b %d:", i)
		for e := b.first.Load(); e != nil; e = e.next.Load() {
			s += fmt.Sprintf(" (%v, %v)", e.keyHash, e.key)
		}
		s += "\n"
	}
	return s
}

/// Size returns the number of elements stored in the table.
func (ht *Hashtable_t) Size() int {
	return int(ht.n.Load())
}

/// Get returns the value stored under key.
func (ht *Hashtable_t) Get(key interface{}) (interface{}, bool) {
	kh := khash(key)
	b := &ht.table[ht.hash(kh)]
	for e := b.first.Load(); e != nil; e = e.next.Load() {
		if e.keyHash == kh && equal(e.key, key) {
			return e.value, true
		}
		if kh < e.keyHash {
			break
		}
	}
	return nil, false
}

/// Set inserts key. If key is already present the table is unchanged and
/// Set returns the existing value and false.
func (ht *Hashtable_t) Set(key interface{}, value interface{}) (interface{}, bool) {
	kh := khash(key)
	b := &ht.table[ht.hash(kh)]
	b.Lock()
	defer b.Unlock()

	link := &b.first
	for e := link.Load(); e != nil; e = link.Load() {
		if e.keyHash == kh && equal(e.key, key) {
			return e.value, false
		}
		if kh < e.keyHash {
			break
		}
		link = &e.next
	}
	n := &elem_t{key: key, value: value, keyHash: kh}
	n.next.Store(link.Load())
	link.Store(n)
	ht.n.Add(1)
	return value, true
}

/// Del removes key and reports whether it was present.
func (ht *Hashtable_t) Del(key interface{}) bool {
	kh := khash(key)
	b := &ht.table[ht.hash(kh)]
	b.Lock()
	defer b.Unlock()

	link := &b.first
	for e := link.Load(); e != nil; e = link.Load() {
		if e.keyHash == kh && equal(e.key, key) {
			// concurrent readers standing on e still see its successor
			link.Store(e.next.Load())
			ht.n.Add(-1)
			return true
		}
		if kh < e.keyHash {
			break
		}
		link = &e.next
	}
	return false
}

/// Iter applies f to each key/value pair. Iteration stops when f returns
/// true. Elements inserted or removed during the walk may or may not be
/// visited.
func (ht *Hashtable_t) Iter(f func(interface{}, interface{}) bool) bool {
	for i := range ht.table {
		if ht.table[i].iter(f) {
			return true
		}
	}
	return false
}

func (ht *Hashtable_t) hash(keyHash uint32) int {
	return int(keyHash % uint32(len(ht.table)))
}

// Khash is the multiplicative hash applied to every key; fixed-width tables
// elsewhere use it to spread keys the same way.
func Khash(key interface{}) uint32 {
	return khash(key)
}

func khash(key interface{}) uint32 {
	h := hash(key)
	return uint32(2654435761) * h
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func hash(key interface{}) uint32 {
	switch x := key.(type) {
	case defs.Tid_t:
		return uint32(x)
	case uintptr:
		return uint32(x) ^ uint32(uint64(x)>>32)
	case int:
		return uint32(x)
	case int32:
		return uint32(x)
	case string:
		return hashString(x)
	}
	panic(fmt.Errorf("unsupported key type %T", key))
}

func equal(key1 interface{}, key2 interface{}) bool {
	switch x := key1.(type) {
	case defs.Tid_t:
		return x == key2.(defs.Tid_t)
	case uintptr:
		return x == key2.(uintptr)
	case int32:
		return x == key2.(int32)
	case int:
		return x == key2.(int)
	case string:
		return x == key2.(string)
	}
	panic(fmt.Errorf("unsupported key type %T", key1))
}
