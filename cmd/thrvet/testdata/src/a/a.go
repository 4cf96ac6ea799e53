package a

import "rthread/rthread"

type queue_t struct {
	m     rthread.Mutex_t
	c     rthread.Cond_t
	items []int
}

func (q *queue_t) get() int {
	q.m.Lock()
	for len(q.items) == 0 {
		q.c.Wait(&q.m)
	}
	v := q.items[0]
	q.items = q.items[1:]
	q.m.Unlock()
	return v
}

func (q *queue_t) getonce() int {
	q.m.Lock()
	if len(q.items) == 0 {
		q.c.Wait(&q.m) // want `Cond_t.Wait outside a loop`
	}
	v := q.items[0]
	q.m.Unlock()
	return v
}

func (q *queue_t) timed() {
	q.m.Lock()
	go func() {
		for {
			q.c.Signal()
		}
	}()
	for len(q.items) == 0 {
		func() {
			q.c.Timedwait(&q.m) // want `Cond_t.Timedwait outside a loop`
		}()
	}
	q.m.Unlock()
}

func lockit(m rthread.Mutex_t) { // want `parameter passes Mutex_t by value`
	m.Lock()
}

func mksem() rthread.Sem_t { // want `result passes Sem_t by value`
	return rthread.Sem_t{}
}

func copyit(q *queue_t) {
	c := q.c // want `assignment copies Cond_t`
	var m = q.m // want `variable declaration copies Mutex_t`
	s := mksem()
	fresh := rthread.Mutex_t{}
	use(&c, &m, &s, &fresh)
}

func use(...interface{}) {}

var run = func(s rthread.Sem_t) {} // want `parameter passes Sem_t by value`
