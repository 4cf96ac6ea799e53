package rthread

import "rthread/defs"
import "rthread/spinlock"

/// KEYS_MAX is the number of TLS keys that can exist at once.
const KEYS_MAX = 256

/// DESTRUCTOR_ITERATIONS bounds the destructor passes at thread exit.
const DESTRUCTOR_ITERATIONS = 4

/// Key_t names a TLS slot.
type Key_t int

type rkey_t struct {
	used       bool
	destructor func(interface{})
}

var rkeys [KEYS_MAX]rkey_t
var rkeyl spinlock.Spinlock_t
var rkeyhint int

// one per key a thread has touched; nodes outlive key deletion
type tlsnode_t struct {
	key  Key_t
	data interface{}
	next *tlsnode_t
}

/// Key_create reserves a key. destructor, if not nil, is called at thread
/// exit with every non-nil value stored under the key.
func Key_create(destructor func(interface{})) (Key_t, defs.Err_t) {
	rkeyl.Lock()
	defer rkeyl.Unlock()
	hint := rkeyhint
	i := hint
	for rkeys[i].used {
		i = (i + 1) % KEYS_MAX
		if i == hint {
			return -1, -defs.EAGAIN
		}
	}
	rkeys[i].used = true
	rkeys[i].destructor = destructor
	rkeyhint = (i + 1) % KEYS_MAX
	return Key_t(i), 0
}

/// Key_delete releases key. Values stored under it are dropped without
/// calling the destructor, and Getspecific returns nil from then on.
func Key_delete(key Key_t) defs.Err_t {
	if key < 0 || key >= KEYS_MAX {
		return -defs.EINVAL
	}
	rkeyl.Lock()
	defer rkeyl.Unlock()
	if !rkeys[key].used {
		return -defs.EINVAL
	}
	rkeys[key].used = false
	rkeys[key].destructor = nil
	live.iter(func(t *Thread_t) {
		t.locall.Lock()
		for n := t.locals; n != nil; n = n.next {
			if n.key == key {
				n.data = nil
				break
			}
		}
		t.locall.Unlock()
	})
	return 0
}

// findstorage returns the caller's node for key, creating it if needed.
// Caller holds rkeyl.
func findstorage(self *Thread_t, key Key_t) *tlsnode_t {
	self.locall.Lock()
	defer self.locall.Unlock()
	for n := self.locals; n != nil; n = n.next {
		if n.key == key {
			return n
		}
	}
	n := &tlsnode_t{key: key, next: self.locals}
	self.locals = n
	return n
}

/// Getspecific returns the caller's value for key, nil if there is none or
/// the key is not in use.
func Getspecific(key Key_t) interface{} {
	self := curthread()
	if key < 0 || key >= KEYS_MAX {
		return nil
	}
	rkeyl.Lock()
	defer rkeyl.Unlock()
	if !rkeys[key].used {
		return nil
	}
	return findstorage(self, key).data
}

/// Setspecific stores v as the caller's value for key.
func Setspecific(key Key_t, v interface{}) defs.Err_t {
	self := curthread()
	if key < 0 || key >= KEYS_MAX {
		return -defs.EINVAL
	}
	rkeyl.Lock()
	defer rkeyl.Unlock()
	if !rkeys[key].used {
		return -defs.EINVAL
	}
	findstorage(self, key).data = v
	return 0
}

// tls_destroy runs the destructors of the exiting thread and frees its
// nodes. A destructor may store new values; those get another pass, up to
// DESTRUCTOR_ITERATIONS.
func tls_destroy(self *Thread_t) {
	for i := 0; i < DESTRUCTOR_ITERATIONS; i++ {
		found := false
		rkeyl.Lock()
		for n := self.locals; n != nil; n = n.next {
			d := rkeys[n.key].destructor
			if n.data == nil || !rkeys[n.key].used || d == nil {
				continue
			}
			v := n.data
			n.data = nil
			rkeyl.Unlock()
			d(v)
			rkeyl.Lock()
			found = true
		}
		rkeyl.Unlock()
		if !found {
			break
		}
	}
	self.locall.Lock()
	self.locals = nil
	self.locall.Unlock()
}
