package rthread

import (
	"testing"
	"time"

	"rthread/defs"
	"rthread/limits"
	"rthread/mem"
	"rthread/stack"
)

// adopt makes the test goroutine a thread; defer the returned func.
func adopt(t *testing.T) func() {
	t.Helper()
	if _, err := Adopt(); err != 0 {
		t.Fatalf("adopt: %v", err)
	}
	return func() {
		if err := Release(); err != 0 {
			t.Errorf("release: %v", err)
		}
	}
}

func mustcreate(t *testing.T, attr *Attr_t, fn func(interface{}) interface{}, arg interface{}) *Thread_t {
	t.Helper()
	th, err := Create(attr, fn, arg)
	if err != 0 {
		t.Fatalf("create: %v", err)
	}
	return th
}

func mustjoin(t *testing.T, th *Thread_t) interface{} {
	t.Helper()
	v, err := Join(th)
	if err != 0 {
		t.Fatalf("join: %v", err)
	}
	return v
}

func waitfor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// drain reaps until every finished thread is gone.
func drain(t *testing.T) {
	t.Helper()
	waitfor(t, "garbage to drain", func() bool {
		reaper()
		return garbage.len() == 0
	})
}

func TestJoinReturnsValue(t *testing.T) {
	defer adopt(t)()

	th := mustcreate(t, nil, func(a interface{}) interface{} {
		return a.(int) + 1
	}, 41)
	waitfor(t, "thread to finish", func() bool { return th.State() == ST_DEAD })
	start := time.Now()
	if v := mustjoin(t, th); v != 42 {
		t.Fatalf("want 42, got %v", v)
	}
	if time.Since(start) > time.Second {
		t.Fatal("join of a finished thread blocked")
	}

	th = mustcreate(t, nil, func(interface{}) interface{} {
		time.Sleep(50 * time.Millisecond)
		return "late"
	}, nil)
	start = time.Now()
	if v := mustjoin(t, th); v != "late" {
		t.Fatalf("want late, got %v", v)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("join returned before the thread exited")
	}
}

func TestExitValue(t *testing.T) {
	defer adopt(t)()

	th := mustcreate(t, nil, func(interface{}) interface{} {
		Exit("early")
		return "late"
	}, nil)
	if v := mustjoin(t, th); v != "early" {
		t.Fatalf("want early, got %v", v)
	}
}

func TestSweepComesFirst(t *testing.T) {
	defer adopt(t)()

	th := mustcreate(t, nil, func(interface{}) interface{} { return nil }, nil)
	waitfor(t, "teardown", func() bool { return th.Tid() == 0 })
	if err := Detach(th); err != 0 {
		t.Fatalf("detach: %v", err)
	}
	// already reclaimed by the detach; the join's sweep frees it
	if _, err := Join(th); err != -defs.ESRCH {
		t.Fatalf("want ESRCH, got %v", err)
	}
	if err := Detach(th); err != -defs.ESRCH {
		t.Fatalf("want ESRCH, got %v", err)
	}
}

func TestJoinErrors(t *testing.T) {
	defer adopt(t)()

	if _, err := Join(nil); err != -defs.EINVAL {
		t.Fatalf("nil: want EINVAL, got %v", err)
	}
	if _, err := Join(Self()); err != -defs.EDEADLK {
		t.Fatalf("self: want EDEADLK, got %v", err)
	}

	var gate Sem_t
	gate.Init(false, 0)
	th := mustcreate(t, nil, func(interface{}) interface{} {
		gate.Wait()
		return nil
	}, nil)
	if err := Detach(th); err != 0 {
		t.Fatalf("detach: %v", err)
	}
	if err := Detach(th); err != -defs.EINVAL {
		t.Fatalf("double detach: want EINVAL, got %v", err)
	}
	if _, err := Join(th); err != -defs.EINVAL {
		t.Fatalf("detached: want EINVAL, got %v", err)
	}
	gate.Post()
	drain(t)
	if _, err := Join(th); err != -defs.ESRCH {
		t.Fatalf("reaped: want ESRCH, got %v", err)
	}
	if err := Detach(th); err != -defs.ESRCH {
		t.Fatalf("reaped: want ESRCH, got %v", err)
	}

	th = mustcreate(t, nil, func(interface{}) interface{} { return nil }, nil)
	mustjoin(t, th)
	drain(t)
	if _, err := Join(th); err != -defs.ESRCH {
		t.Fatalf("joined twice: want ESRCH, got %v", err)
	}
}

func counter(t *testing.T, n int) int {
	var m Mutex_t
	count := 0
	inc := func(interface{}) interface{} {
		m.Lock()
		count++
		m.Unlock()
		return nil
	}
	var ts []*Thread_t
	for done := 0; done < n; {
		batch := min(100, n-done)
		for i := 0; i < batch; i++ {
			ts = append(ts, mustcreate(t, nil, inc, nil))
		}
		for _, th := range ts {
			mustjoin(t, th)
		}
		ts = ts[:0]
		done += batch
	}
	m.Lock()
	defer m.Unlock()
	return count
}

func TestMutexCounter(t *testing.T) {
	defer adopt(t)()

	for _, n := range []int{0, 1, 100, 10000} {
		if n > 100 && testing.Short() {
			continue
		}
		if got := counter(t, n); got != n {
			t.Fatalf("want %d, got %d", n, got)
		}
	}
}

func TestDetachReclaims(t *testing.T) {
	defer adopt(t)()
	drain(t)

	nlive := live.len()
	reaped := Stats.Nreap.Load()
	attr := MkAttr()
	attr.Setdetachstate(CREATE_DETACHED)
	for i := 0; i < 500; i++ {
		mustcreate(t, attr, func(interface{}) interface{} { return nil }, nil)
	}
	// detach after the fact
	for i := 0; i < 500; i++ {
		th := mustcreate(t, nil, func(interface{}) interface{} { return nil }, nil)
		if i%2 == 0 {
			waitfor(t, "thread to finish", func() bool { return th.State() == ST_DEAD })
		}
		if err := Detach(th); err != 0 {
			t.Fatalf("detach: %v", err)
		}
	}
	waitfor(t, "threads to exit", func() bool { return live.len() == nlive })
	drain(t)
	if n := Stats.Nreap.Load() - reaped; n < 1000 {
		t.Fatalf("want at least 1000 reaped, got %d", n)
	}
}

func TestStackReuse(t *testing.T) {
	defer adopt(t)()
	drain(t)

	before := mem.Mapped()
	reused := stack.Stats.Nreused.Load()
	for i := 0; i < 200; i++ {
		mustjoin(t, mustcreate(t, nil, func(interface{}) interface{} { return nil }, nil))
		drain(t)
	}
	bound := int64(limits.Syslimit.Stackcache.Load()) * int64(stack.DEFSIZE+stack.DEFGUARD)
	if grew := mem.Mapped() - before; grew > bound {
		t.Fatalf("mapped memory grew by %d, more than the cache holds", grew)
	}
	if stack.Stats.Nreused.Load()-reused < 199 {
		t.Fatal("default stacks were not reused")
	}
}

func TestCreateFailureUnwinds(t *testing.T) {
	defer adopt(t)()
	drain(t)

	nlive := live.len()
	old := limits.Syslimit.Threads.Swap(0)
	_, err := Create(nil, func(interface{}) interface{} { return nil }, nil)
	limits.Syslimit.Threads.Swap(old)
	if err != -defs.EAGAIN {
		t.Fatalf("want EAGAIN, got %v", err)
	}
	if live.len() != nlive {
		t.Fatal("failed thread left in the registry")
	}

	if _, err := Create(&Attr_t{}, func(interface{}) interface{} { return nil }, nil); err != -defs.EINVAL {
		t.Fatalf("uninitialized attr: want EINVAL, got %v", err)
	}
	if _, err := Create(nil, nil, nil); err != -defs.EINVAL {
		t.Fatalf("nil fn: want EINVAL, got %v", err)
	}
}

func TestExternStack(t *testing.T) {
	defer adopt(t)()
	drain(t)

	buf := make([]uint8, 64*1024)
	attr := MkAttr()
	if err := attr.Setstack(buf[:100]); err != -defs.EINVAL {
		t.Fatalf("tiny stack: want EINVAL, got %v", err)
	}
	if err := attr.Setstack(buf); err != 0 {
		t.Fatalf("setstack: %v", err)
	}
	before := mem.Mapped()
	th := mustcreate(t, attr, func(interface{}) interface{} { return "ok" }, nil)
	if mem.Mapped() != before {
		t.Fatal("caller stack was mapped")
	}
	if v := mustjoin(t, th); v != "ok" {
		t.Fatalf("want ok, got %v", v)
	}
}

func TestCreateSuspended(t *testing.T) {
	defer adopt(t)()

	ran := false
	attr := MkAttr()
	attr.Setcreatesuspended(true)
	th := mustcreate(t, attr, func(interface{}) interface{} {
		ran = true
		return nil
	}, nil)
	if th.State() != ST_SUSPENDED {
		t.Fatalf("want suspended, got %v", th.State())
	}
	time.Sleep(20 * time.Millisecond)
	if th.State() != ST_SUSPENDED {
		t.Fatal("suspended thread ran")
	}
	if err := Resume(th); err != 0 {
		t.Fatalf("resume: %v", err)
	}
	if err := Resume(th); err != -defs.EINVAL {
		t.Fatalf("second resume: want EINVAL, got %v", err)
	}
	mustjoin(t, th)
	if !ran {
		t.Fatal("resumed thread did not run")
	}
}

func TestSchedInherit(t *testing.T) {
	defer adopt(t)()

	attr := MkAttr()
	if err := attr.Setschedparam(Sched_param_t{Priority: MAX_PRIORITY + 1}); err != -defs.EINVAL {
		t.Fatalf("want EINVAL, got %v", err)
	}
	if err := attr.Setschedpolicy(42); err != -defs.ENOTSUP {
		t.Fatalf("want ENOTSUP, got %v", err)
	}
	attr.Setinheritsched(EXPLICIT_SCHED)
	attr.Setschedpolicy(SCHED_RR)
	attr.Setschedparam(Sched_param_t{Priority: 100})
	got := make(chan Attr_t, 2)
	parent := mustcreate(t, attr, func(interface{}) interface{} {
		got <- Self().attr
		child, err := Create(nil, func(interface{}) interface{} {
			got <- Self().attr
			return nil
		}, nil)
		if err != 0 {
			t.Errorf("create: %v", err)
			return nil
		}
		Join(child)
		return nil
	}, nil)
	mustjoin(t, parent)
	for i := 0; i < 2; i++ {
		a := <-got
		if a.policy != SCHED_RR || a.param.Priority != 100 {
			t.Fatalf("thread %d: want rr/100, got %d/%d", i, a.policy, a.param.Priority)
		}
	}
}

func TestSelfAndErrno(t *testing.T) {
	if Self() != nil {
		t.Fatal("plain goroutine has a thread")
	}
	defer adopt(t)()

	me := Self()
	if me == nil || !Equal(me, Self()) {
		t.Fatal("Self is not stable")
	}
	Seterrno(-defs.EINTR)
	th := mustcreate(t, nil, func(interface{}) interface{} {
		return Errno()
	}, nil)
	if v := mustjoin(t, th); v != defs.Err_t(0) {
		t.Fatalf("errno leaked into new thread: %v", v)
	}
	if Errno() != -defs.EINTR {
		t.Fatalf("want -EINTR, got %v", Errno())
	}
	if err := Setconcurrency(-1); err != -defs.EINVAL {
		t.Fatalf("want EINVAL, got %v", err)
	}
	Setconcurrency(4)
	if Getconcurrency() != 4 {
		t.Fatal("concurrency hint lost")
	}
}

func TestOnce(t *testing.T) {
	defer adopt(t)()

	var once Once_t
	var m Mutex_t
	calls := 0
	var ts []*Thread_t
	for i := 0; i < 10; i++ {
		ts = append(ts, mustcreate(t, nil, func(interface{}) interface{} {
			once.Do(func() {
				m.Lock()
				calls++
				m.Unlock()
			})
			return nil
		}, nil))
	}
	for _, th := range ts {
		mustjoin(t, th)
	}
	if calls != 1 {
		t.Fatalf("want 1 call, got %d", calls)
	}
}

func TestCleanupOrder(t *testing.T) {
	defer adopt(t)()

	var order []int
	th := mustcreate(t, nil, func(interface{}) interface{} {
		for i := 1; i <= 3; i++ {
			Cleanup_push(func(a interface{}) { order = append(order, a.(int)) }, i)
		}
		Cleanup_push(func(interface{}) { order = append(order, 99) }, nil)
		Cleanup_pop(false)
		Exit(nil)
		return nil
	}, nil)
	mustjoin(t, th)
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Fatalf("want [3 2 1], got %v", order)
	}
}

func TestName(t *testing.T) {
	defer adopt(t)()

	me := Self()
	if err := Setname(me, "cafe\u0301"); err != 0 {
		t.Fatalf("setname: %v", err)
	}
	if n, _ := Getname(me); n != "caf\u00e9" {
		t.Fatalf("want NFC name, got %q", n)
	}
	long := ""
	for i := 0; i < 40; i++ {
		long += "a"
	}
	Setname(me, long)
	if n, _ := Getname(me); len(n) != NAMELEN-1 {
		t.Fatalf("want %d bytes, got %d", NAMELEN-1, len(n))
	}

	attr := MkAttr()
	attr.Setname("worker")
	th := mustcreate(t, attr, func(interface{}) interface{} {
		n, _ := Getname(Self())
		return n
	}, nil)
	if v := mustjoin(t, th); v != "worker" {
		t.Fatalf("want worker, got %v", v)
	}
}
