package retrytest

import (
	"sync"
	"time"
)

type Timer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

func NewTimer() *Timer {
	return &Timer{c: make(chan time.Time, 1)}
}

func (t *Timer) Start(d time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	t.mu.Unlock()
	// a wait that ended on ctx.Done leaves its tick behind
	select {
	case <-t.c:
	default:
	}
	t.c <- time.Now()
}

func (t *Timer) Stop() {}

func (t *Timer) C() <-chan time.Time { return t.c }

func (t *Timer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}

func (t *Timer) Total() time.Duration {
	var total time.Duration
	for _, w := range t.Waits() {
		total += w
	}
	return total
}
