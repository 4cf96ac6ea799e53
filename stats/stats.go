package stats

import "reflect"
import "sync/atomic"
import "strconv"
import "strings"

const Stats = true

/// Counter_t is a statistical counter.
type Counter_t int64

/// Inc increments the counter.
func (c *Counter_t) Inc() {
	if Stats {
		atomic.AddInt64((*int64)(c), 1)
	}
}

/// Add adds n to the counter.
func (c *Counter_t) Add(n int64) {
	if Stats {
		atomic.AddInt64((*int64)(c), n)
	}
}

/// Load reads the counter.
func (c *Counter_t) Load() int64 {
	return atomic.LoadInt64((*int64)(c))
}

/// Stats2String converts a struct of counters to a printable string.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	v := reflect.ValueOf(st)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			var n int64
			if f := v.Field(i); f.CanAddr() {
				n = f.Addr().Interface().(*Counter_t).Load()
			} else {
				n = int64(f.Interface().(Counter_t))
			}
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(n, 10)
		}
	}
	return s + "\n"
}
