/**
 * @file main.go
 * @brief thrstress hammers the thread runtime and checks its invariants.
 */
package main

import "flag"
import "fmt"
import "log"
import "os"
import "sort"
import "strings"
import "sync/atomic"
import "time"

import "golang.org/x/sync/errgroup"

import "rthread/defs"
import "rthread/rthread"

type scenario_t struct {
	name string
	run  func(threads, iters int) error
}

var scenarios = []scenario_t{
	{"mutex", mutexcount},
	{"sem", semadmit},
	{"cond", condqueue},
	{"detach", detachchurn},
	{"cancel", cancelwaiters},
}

func errf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// spawn creates n joinable threads running fn and joins them all.
func spawn(n int, fn func(i int) interface{}) ([]interface{}, error) {
	ts := make([]*rthread.Thread_t, 0, n)
	for i := 0; i < n; i++ {
		t, err := rthread.Create(nil, func(a interface{}) interface{} {
			return fn(a.(int))
		}, i)
		if err != 0 {
			return nil, errf("create %d: %v", i, err)
		}
		ts = append(ts, t)
	}
	rets := make([]interface{}, 0, n)
	for _, t := range ts {
		v, err := rthread.Join(t)
		if err != 0 {
			return nil, errf("join: %v", err)
		}
		rets = append(rets, v)
	}
	return rets, nil
}

func mutexcount(threads, iters int) error {
	var m rthread.Mutex_t
	count := 0
	if _, err := spawn(threads, func(int) interface{} {
		for j := 0; j < iters; j++ {
			m.Lock()
			count++
			m.Unlock()
		}
		return nil
	}); err != nil {
		return err
	}
	if want := threads * iters; count != want {
		return errf("counter %d, want %d", count, want)
	}
	if err := m.Destroy(); err != 0 {
		return errf("destroy: %v", err)
	}
	return nil
}

func semadmit(threads, iters int) error {
	const credits = 3
	var sem rthread.Sem_t
	sem.Init(false, credits)
	var inside, most atomic.Int32
	if _, err := spawn(threads, func(int) interface{} {
		for j := 0; j < iters; j++ {
			sem.Wait()
			n := inside.Add(1)
			for {
				m := most.Load()
				if n <= m || most.CompareAndSwap(m, n) {
					break
				}
			}
			rthread.Yield()
			inside.Add(-1)
			sem.Post()
		}
		return nil
	}); err != nil {
		return err
	}
	if most.Load() > credits {
		return errf("%d threads inside, %d credits", most.Load(), credits)
	}
	if v, _ := sem.Getvalue(); v != credits {
		return errf("%d credits left, want %d", v, credits)
	}
	if err := sem.Destroy(); err != 0 {
		return errf("destroy: %v", err)
	}
	return nil
}

func condqueue(threads, iters int) error {
	var m rthread.Mutex_t
	var c rthread.Cond_t
	var q []int
	total := threads * iters
	got := 0
	consumer, err := rthread.Create(nil, func(interface{}) interface{} {
		m.Lock()
		for got < total {
			for len(q) == 0 {
				c.Wait(&m)
			}
			got += len(q)
			q = q[:0]
		}
		m.Unlock()
		return nil
	}, nil)
	if err != 0 {
		return errf("create consumer: %v", err)
	}
	if _, err := spawn(threads, func(i int) interface{} {
		for j := 0; j < iters; j++ {
			m.Lock()
			q = append(q, i)
			c.Signal()
			m.Unlock()
		}
		return nil
	}); err != nil {
		return err
	}
	if _, err := rthread.Join(consumer); err != 0 {
		return errf("join consumer: %v", err)
	}
	if got != total {
		return errf("consumed %d, want %d", got, total)
	}
	return nil
}

func detachchurn(threads, iters int) error {
	attr := rthread.MkAttr()
	attr.Setdetachstate(rthread.CREATE_DETACHED)
	var ran atomic.Int64
	before := rthread.Stats.Nreap.Load()
	// waves keep the number of threads in flight bounded
	for j := 0; j < iters; j++ {
		for i := 0; i < threads; i++ {
			if _, err := rthread.Create(attr, func(interface{}) interface{} {
				ran.Add(1)
				return nil
			}, nil); err != 0 {
				return errf("create: %v", err)
			}
		}
		want := int64(threads * (j + 1))
		for deadline := time.Now().Add(10 * time.Second); ran.Load() < want; {
			if time.Now().After(deadline) {
				return errf("%d of %d detached threads ran", ran.Load(), want)
			}
			rthread.Yield()
		}
	}
	// joinable churn drives the reaper
	if _, err := spawn(threads, func(int) interface{} { return nil }); err != nil {
		return err
	}
	if rthread.Stats.Nreap.Load() == before {
		return errf("no detached thread was reaped")
	}
	return nil
}

func cancelwaiters(threads, iters int) error {
	for j := 0; j < iters/20+1; j++ {
		var sem rthread.Sem_t
		sem.Init(false, 0)
		var waiting atomic.Int32
		ts := make([]*rthread.Thread_t, 0, threads)
		for i := 0; i < threads; i++ {
			t, err := rthread.Create(nil, func(interface{}) interface{} {
				waiting.Add(1)
				sem.Wait()
				return "woke"
			}, nil)
			if err != 0 {
				return errf("create: %v", err)
			}
			ts = append(ts, t)
		}
		for waiting.Load() < int32(threads) {
			rthread.Yield()
		}
		for _, t := range ts {
			rthread.Cancel(t)
		}
		for _, t := range ts {
			v, err := rthread.Join(t)
			if err != 0 {
				return errf("join: %v", err)
			}
			if v != defs.Canceled {
				return errf("waiter returned %v", v)
			}
		}
		if v, _ := sem.Getvalue(); v != 0 {
			return errf("cancellation left %d credits", v)
		}
		if err := sem.Destroy(); err != 0 {
			return errf("destroy: %v", err)
		}
	}
	return nil
}

func main() {
	threads := flag.Int("threads", 8, "threads per scenario")
	iters := flag.Int("iters", 1000, "iterations per thread")
	only := flag.String("run", "", "comma separated scenarios to run (default all)")
	dump := flag.Bool("dump", false, "dump the thread table when done")
	debug := flag.Int("debug", 0, "runtime debug level")
	flag.Parse()
	rthread.Debug = *debug

	want := map[string]bool{}
	for _, s := range strings.Split(*only, ",") {
		if s != "" {
			want[s] = true
		}
	}

	var g errgroup.Group
	times := make(map[string]time.Duration)
	var timesl rthread.Mutex_t
	for _, sc := range scenarios {
		if len(want) != 0 && !want[sc.name] {
			continue
		}
		delete(want, sc.name)
		g.Go(func() error {
			if _, err := rthread.Adopt(); err != 0 {
				return errf("%s: adopt: %v", sc.name, err)
			}
			defer rthread.Release()
			st := time.Now()
			if err := sc.run(*threads, *iters); err != nil {
				return errf("%s: %v", sc.name, err)
			}
			timesl.Lock()
			times[sc.name] = time.Since(st)
			timesl.Unlock()
			return nil
		})
	}
	if len(want) != 0 {
		log.Fatalf("unknown scenario %v", want)
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}

	names := make([]string, 0, len(times))
	for n := range times {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Printf("%-8s ok %v\n", n, times[n])
	}
	if *dump {
		if err := rthread.Dump(os.Stdout); err != nil {
			log.Fatal(err)
		}
	}
}
