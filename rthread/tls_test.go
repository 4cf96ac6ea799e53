package rthread

import (
	"sync/atomic"
	"testing"

	"rthread/defs"
)

func TestKeyDeleteHidesValues(t *testing.T) {
	defer adopt(t)()

	var destroyed atomic.Int32
	key, err := Key_create(func(interface{}) { destroyed.Add(1) })
	if err != 0 {
		t.Fatalf("key_create: %v", err)
	}
	if Getspecific(key) != nil {
		t.Fatal("fresh key has a value")
	}
	Setspecific(key, "main")

	var set, gate Sem_t
	set.Init(false, 0)
	gate.Init(false, 0)
	var ts []*Thread_t
	for i := 0; i < 2; i++ {
		ts = append(ts, mustcreate(t, nil, func(a interface{}) interface{} {
			Setspecific(key, a)
			if Getspecific(key) != a {
				t.Errorf("thread lost its value")
			}
			set.Post()
			gate.Wait()
			return Getspecific(key)
		}, i))
	}
	set.Wait()
	set.Wait()
	if err := Key_delete(key); err != 0 {
		t.Fatalf("key_delete: %v", err)
	}
	gate.Post()
	gate.Post()
	for _, th := range ts {
		if v := mustjoin(t, th); v != nil {
			t.Fatalf("deleted key still reads %v", v)
		}
	}
	if Getspecific(key) != nil {
		t.Fatal("deleted key still has a value in the main thread")
	}
	if err := Setspecific(key, 1); err != -defs.EINVAL {
		t.Fatalf("want EINVAL, got %v", err)
	}
	if err := Key_delete(key); err != -defs.EINVAL {
		t.Fatalf("double delete: want EINVAL, got %v", err)
	}
	if destroyed.Load() != 0 {
		t.Fatal("destructor ran for a deleted key")
	}

	// new keys start out empty everywhere
	key2, _ := Key_create(nil)
	defer Key_delete(key2)
	if Getspecific(key2) != nil {
		t.Fatal("reused key leaked an old value")
	}
}

func TestKeyDestructors(t *testing.T) {
	defer adopt(t)()

	var got []interface{}
	var key Key_t
	key, _ = Key_create(func(v interface{}) {
		got = append(got, v)
	})
	defer Key_delete(key)
	var calls atomic.Int32
	var again Key_t
	again, _ = Key_create(func(v interface{}) {
		calls.Add(1)
		// keeps coming back; the passes must stop
		Setspecific(again, v)
	})
	defer Key_delete(again)

	th := mustcreate(t, nil, func(interface{}) interface{} {
		Setspecific(key, "v")
		Setspecific(again, "w")
		return nil
	}, nil)
	mustjoin(t, th)
	if len(got) != 1 || got[0] != "v" {
		t.Fatalf("want one destructor call with v, got %v", got)
	}
	if calls.Load() != DESTRUCTOR_ITERATIONS {
		t.Fatalf("want %d passes, got %d", DESTRUCTOR_ITERATIONS, calls.Load())
	}

	th = mustcreate(t, nil, func(interface{}) interface{} {
		Setspecific(key, nil)
		return nil
	}, nil)
	mustjoin(t, th)
	if len(got) != 1 {
		t.Fatal("destructor ran for a nil value")
	}
}

func TestKeyExhaustion(t *testing.T) {
	defer adopt(t)()

	var keys []Key_t
	for {
		k, err := Key_create(nil)
		if err == -defs.EAGAIN {
			break
		}
		if err != 0 {
			t.Fatalf("key_create: %v", err)
		}
		keys = append(keys, k)
		if len(keys) > KEYS_MAX {
			t.Fatal("more keys than slots")
		}
	}
	if len(keys) == 0 {
		t.Fatal("no key could be created")
	}
	for _, k := range keys {
		if err := Key_delete(k); err != 0 {
			t.Fatalf("key_delete: %v", err)
		}
	}
	k, err := Key_create(nil)
	if err != 0 {
		t.Fatalf("key_create after delete: %v", err)
	}
	Key_delete(k)

	if Getspecific(KEYS_MAX) != nil || Setspecific(-1, 1) != -defs.EINVAL {
		t.Fatal("out of range key accepted")
	}
}
