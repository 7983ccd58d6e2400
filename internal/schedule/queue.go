package schedule

import (
	"sync"
	"time"
)

// Queue runs callbacks at fixed instants, one at a time. Cancel drops every
// callback that has not started yet; a callback that was already handed to
// the clock checks the queue generation and becomes a no-op.
type Queue struct {
	clock Clock

	runMu   sync.Mutex
	mu      sync.Mutex
	gen     uint64
	pending int
	timers  []Timer
}

func NewQueue(clock Clock) *Queue {
	if clock == nil {
		clock = RealClock()
	}
	return &Queue{clock: clock}
}

// Schedule registers fn to run at the given instant (immediately if it is in
// the past).
func (q *Queue) Schedule(at time.Time, fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	gen := q.gen
	d := at.Sub(q.clock.Now())
	if d < 0 {
		d = 0
	}
	q.pending++
	q.timers = append(q.timers, q.clock.AfterFunc(d, func() { q.run(gen, fn) }))
}

func (q *Queue) run(gen uint64, fn func()) {
	q.runMu.Lock()
	defer q.runMu.Unlock()

	q.mu.Lock()
	if gen != q.gen {
		q.mu.Unlock()
		return
	}
	q.pending--
	q.mu.Unlock()

	fn()
}

// Cancel stops all pending callbacks.
func (q *Queue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gen++
	for _, t := range q.timers {
		t.Stop()
	}
	q.timers = nil
	q.pending = 0
}

// Pending reports how many scheduled callbacks have not run yet.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}
