// Package queue implements the pipeline's typed FIFO queues and the
// level-triggered multi-queue wait used by worker loops to sleep until any
// one of several queues has work.
package queue

import "sync"

// Queue is an in-memory FIFO of a single message type. All operations are
// safe for concurrent use.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	waiters *Waiter
}

// New returns an empty queue. If w is non-nil, every enqueue notifies it so
// blocked Waiter.Wait callers wake up.
func New[T any](w *Waiter) *Queue[T] {
	return &Queue[T]{waiters: w}
}

// Enqueue appends v to the tail of the queue.
func (q *Queue[T]) Enqueue(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.notify()
}

// EnqueueAll appends vs atomically: no other Dequeue/Size call observes a
// partial batch.
func (q *Queue[T]) EnqueueAll(vs []T) {
	if len(vs) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, vs...)
	q.mu.Unlock()
	q.notify()
}

// TryDequeue removes and returns the head of the queue, if any.
func (q *Queue[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// Size returns the current queue length.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) notify() {
	if q.waiters != nil {
		q.waiters.signal()
	}
}

// Sizer is the subset of Queue's interface a Waiter needs to poll depths;
// satisfied by *Queue[T] for any T.
type Sizer interface {
	Size() int
}

// Waiter blocks a worker until any one of a registered set of queues becomes
// non-empty. Notification is level-triggered: a waiter that finds a
// non-empty queue at the time of the call never blocks, regardless of
// whether a signal is currently pending.
type Waiter struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queues []Sizer
	closed bool
}

// NewWaiter returns a Waiter with no queues registered yet. Register queues
// via Watch before constructing them with New, or call Watch afterward — the
// list is read fresh on every Wait/signal.
func NewWaiter() *Waiter {
	w := &Waiter{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Watch adds a queue to the set this waiter polls.
func (w *Waiter) Watch(q Sizer) {
	w.mu.Lock()
	w.queues = append(w.queues, q)
	w.mu.Unlock()
}

func (w *Waiter) signal() {
	w.mu.Lock()
	w.cond.Broadcast()
	w.mu.Unlock()
}

// Wait blocks until at least one watched queue is non-empty, or the waiter
// has been Closed, then returns. Because notification is level-triggered,
// Wait never blocks if a queue is already non-empty when called.
func (w *Waiter) Wait() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for !w.anyNonEmptyLocked() && !w.closed {
		w.cond.Wait()
	}
}

// Close marks the waiter as shutting down: every blocked and future Wait
// call returns immediately. Used to unstick idle workers on Pipeline.Stop.
func (w *Waiter) Close() {
	w.mu.Lock()
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()
}

func (w *Waiter) anyNonEmptyLocked() bool {
	for _, q := range w.queues {
		if q.Size() > 0 {
			return true
		}
	}
	return false
}
