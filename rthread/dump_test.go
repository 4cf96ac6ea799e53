package rthread

import (
	"bytes"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/pprof/profile"

	"rthread/defs"
)

func TestDump(t *testing.T) {
	defer adopt(t)()
	Setname(Self(), "dumper")

	var buf bytes.Buffer
	if err := Dump(&buf); err != nil {
		t.Fatalf("dump: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"live threads", "dumper", "running", "#Ncreate", "#Nsleep"} {
		if !strings.Contains(out, want) {
			t.Fatalf("dump lacks %q:\n%s", want, out)
		}
	}
}

// failw fails every write that contains bad.
type failw struct {
	bad string
}

func (f *failw) Write(b []byte) (int, error) {
	if strings.Contains(string(b), f.bad) {
		return 0, errors.New("write failed")
	}
	return len(b), nil
}

func TestDumpWriteErrors(t *testing.T) {
	defer adopt(t)()

	for _, bad := range []string{"live threads", "prio", "threads:"} {
		if err := Dump(&failw{bad}); err == nil {
			t.Fatalf("failed write of %q not reported", bad)
		}
	}
}

func TestDumpprof(t *testing.T) {
	defer adopt(t)()
	Setname(Self(), "profiled")

	var sem Sem_t
	sem.Init(false, 0)
	th := mustcreate(t, nil, func(interface{}) interface{} {
		return sem.Wait()
	}, nil)
	waitfor(t, "waiter", func() bool { return th.State() == ST_SEMWAIT })

	var buf bytes.Buffer
	if err := Dumpprof(&buf); err != nil {
		t.Fatalf("dumpprof: %v", err)
	}
	p, err := profile.Parse(&buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sem.Post()
	mustjoin(t, th)

	if len(p.SampleType) != 2 || p.SampleType[1].Unit != "bytes" {
		t.Fatalf("bad sample types %v", p.SampleType)
	}
	var named, waiting bool
	for _, s := range p.Sample {
		if len(s.Label["name"]) == 1 && s.Label["name"][0] == "profiled" {
			named = true
		}
		if s.Label["state"][0] == "sem wait" {
			waiting = true
			if s.Value[1] == 0 {
				t.Fatal("created thread has no stack bytes")
			}
			if s.NumLabel["tid"][0] != int64(th.Tid()) {
				t.Fatal("wrong tid label")
			}
		}
	}
	if !named || !waiting {
		t.Fatalf("missing samples (named %v, waiting %v)", named, waiting)
	}
}

func TestSignals(t *testing.T) {
	defer adopt(t)()

	if _, err := Sigaction(defs.SIGTHR, nil); err != -defs.EINVAL {
		t.Fatalf("sigaction: want EINVAL, got %v", err)
	}
	if err := Kill(Self(), defs.SIGTHR); err != -defs.EINVAL {
		t.Fatalf("kill: want EINVAL, got %v", err)
	}
	if err := Kill(Self(), 0); err != 0 {
		t.Fatalf("kill 0: %v", err)
	}
	all := ^defs.Sigset_t(0) >> (64 - uint(defs.NSIG-1))
	if _, err := Sigmask(defs.SIG_BLOCK, all); err != 0 {
		t.Fatalf("sigmask: %v", err)
	}
	old, _ := Sigmask(defs.SIG_SETMASK, 0)
	if old.Has(defs.SIGTHR) {
		t.Fatal("cancellation signal visible in the mask")
	}
	if !old.Has(defs.SIGUSR1) {
		t.Fatal("block lost SIGUSR1")
	}

	var got atomic.Int32
	prev, err := Sigaction(defs.SIGUSR1, func(sig int) { got.Store(int32(sig)) })
	if err != 0 {
		t.Fatalf("sigaction: %v", err)
	}
	defer Sigaction(defs.SIGUSR1, prev)
	var spins atomic.Int64
	th := mustcreate(t, nil, func(interface{}) interface{} {
		for got.Load() == 0 {
			spins.Add(1)
			Yield()
		}
		return nil
	}, nil)
	waitfor(t, "spinning", func() bool { return spins.Load() > 0 })
	if err := Kill(th, defs.SIGUSR1); err != 0 {
		t.Fatalf("kill: %v", err)
	}
	mustjoin(t, th)
	if got.Load() != int32(defs.SIGUSR1) {
		t.Fatalf("handler got %d", got.Load())
	}

	// blocking everything still leaves cancellation deliverable
	var sem Sem_t
	sem.Init(false, 0)
	th = mustcreate(t, nil, func(interface{}) interface{} {
		Sigmask(defs.SIG_BLOCK, ^defs.Sigset_t(0))
		sem.Wait()
		return "woke"
	}, nil)
	waitfor(t, "waiter", func() bool { return sem.s.waiters() == 1 })
	Cancel(th)
	if v := mustjoin(t, th); v != defs.Canceled {
		t.Fatalf("blocking every signal stopped cancellation: %v", v)
	}
}
