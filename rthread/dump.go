package rthread

import "io"
import "time"

import "github.com/google/pprof/profile"
import "golang.org/x/text/language"
import "golang.org/x/text/message"

import "rthread/kern"
import "rthread/mem"
import "rthread/stack"
import "rthread/stats"

// a consistent copy of one thread's printable state
type threadinfo_t struct {
	tid   int64
	state State_t
	name  string
	flags uint32
	stack int
	run   time.Duration
	sleep time.Duration
	prio  int
}

func snapshot() []threadinfo_t {
	var ts []threadinfo_t
	for _, t := range Threads() {
		t.flagl.Lock()
		ti := threadinfo_t{
			tid:   int64(t.Tid()),
			state: t.State(),
			name:  t.name,
			flags: t.flags,
			stack: t.stacklen,
			prio:  t.attr.param.Priority,
		}
		t.flagl.Unlock()
		ti.run, ti.sleep = t.Times()
		ts = append(ts, ti)
	}
	return ts
}

func flagstr(f uint32) string {
	s := []byte("-------")
	for i, c := range "DXCEFYL" {
		if f&(1<<uint(i)) != 0 {
			s[i] = byte(c)
		}
	}
	return string(s)
}

/// Dump writes a table of the live threads and the runtime's counters to
/// w.
func Dump(w io.Writer) error {
	p := message.NewPrinter(language.English)
	ts := snapshot()
	if _, err := p.Fprintf(w, "%d live threads, %d awaiting reap, %d stacks cached, %d bytes mapped\n",
		len(ts), garbage.len(), stack.Cached(), mem.Mapped()); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, "%8s %-10s %-7s %4s %10s %12s %12s %s\n",
		"tid", "state", "flags", "prio", "stack", "run", "sleep", "name"); err != nil {
		return err
	}
	for _, t := range ts {
		_, err := p.Fprintf(w, "%8d %-10s %-7s %4d %10d %12v %12v %s\n",
			t.tid, t.state, flagstr(t.flags), t.prio, t.stack,
			t.run.Round(time.Microsecond), t.sleep.Round(time.Microsecond), t.name)
		if err != nil {
			return err
		}
	}
	counters := "threads:" + stats.Stats2String(&Stats) +
		"stacks:" + stats.Stats2String(&stack.Stats)
	if k, ok := kernel.(*kern.Kern_t); ok {
		counters += "kernel:" + stats.Stats2String(&k.Stats)
	}
	_, err := io.WriteString(w, counters)
	return err
}

/// Profile returns a pprof profile with one sample per live thread,
/// valued by thread count and stack bytes and labeled with the thread's
/// state, name and tid. Samples are attributed to a pseudo function per
/// thread state.
func Profile() *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "threads", Unit: "count"},
			{Type: "stack", Unit: "bytes"},
		},
		DefaultSampleType: "threads",
		TimeNanos:         time.Now().UnixNano(),
	}
	locs := make(map[State_t]*profile.Location)
	for _, t := range snapshot() {
		loc, ok := locs[t.state]
		if !ok {
			id := uint64(len(locs) + 1)
			fn := &profile.Function{
				ID:         id,
				Name:       "rthread." + t.state.String(),
				SystemName: "rthread." + t.state.String(),
			}
			loc = &profile.Location{ID: id, Line: []profile.Line{{Function: fn}}}
			locs[t.state] = loc
			p.Function = append(p.Function, fn)
			p.Location = append(p.Location, loc)
		}
		s := &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{1, int64(t.stack)},
			Label:    map[string][]string{"state": {t.state.String()}},
			NumLabel: map[string][]int64{"tid": {t.tid}},
		}
		if t.name != "" {
			s.Label["name"] = []string{t.name}
		}
		p.Sample = append(p.Sample, s)
	}
	return p
}

/// Dumpprof writes Profile to w in the gzipped protobuf format pprof
/// reads.
func Dumpprof(w io.Writer) error {
	p := Profile()
	if err := p.CheckValid(); err != nil {
		return err
	}
	return p.Write(w)
}
