package rthread

type Mutex_t struct{ owner int }

func (m *Mutex_t) Lock() int   { return 0 }
func (m *Mutex_t) Unlock() int { return 0 }

type Cond_t struct{ n int }

func (c *Cond_t) Wait(m *Mutex_t) int      { return 0 }
func (c *Cond_t) Timedwait(m *Mutex_t) int { return 0 }
func (c *Cond_t) Signal() int              { return 0 }

type Sem_t struct{ v uint32 }

func (s *Sem_t) Post() int { return 0 }
