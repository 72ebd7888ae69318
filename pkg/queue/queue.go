package queue

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
)

//Bounded is a capacity-limited concurrent queue.
//Capacity and overflow policy are fixed at construction; the store decides
//dequeue order (FIFO or priority). CurrentSize never exceeds the capacity
//at any observation point, including while an overflow is being resolved.
type Bounded[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items    store[T]
	capacity int
	policy   radar.OverflowPolicy
	closed   bool

	received *atomic.Uint64
	dropped  *atomic.Uint64
	peak     *atomic.Uint32
}

//NewFIFO creates a bounded queue with first-in-first-out ordering.
func NewFIFO[T any](capacity int, policy radar.OverflowPolicy) *Bounded[T] {
	return newBounded[T](capacity, policy, newFIFOStore[T]())
}

//NewPriority creates a bounded queue ordered by priority with a stable
//FIFO tie-break inside each priority class.
func NewPriority[T any](capacity int, policy radar.OverflowPolicy, priorityOf func(T) radar.PacketPriority) *Bounded[T] {
	return newBounded[T](capacity, policy, newPriorityStore[T](priorityOf))
}

func newBounded[T any](capacity int, policy radar.OverflowPolicy, items store[T]) *Bounded[T] {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Bounded[T]{
		items:    items,
		capacity: capacity,
		policy:   policy,
		received: atomic.NewUint64(0),
		dropped:  atomic.NewUint64(0),
		peak:     atomic.NewUint32(0),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

//Enqueue adds an item, resolving overflow per the configured policy.
//drop_oldest evicts per the store's eviction order and always accepts
//the new item. drop_newest rejects with ErrQueueFull. block waits until
//space frees or the queue closes.
func (q *Bounded[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return radar.ErrShutdown
	}

	if q.items.len() >= q.capacity {
		switch q.policy {
		case radar.DropOldest:
			if _, ok := q.items.evict(); ok {
				q.dropped.Inc()
			}
		case radar.DropNewest:
			q.dropped.Inc()
			return radar.ErrQueueFull
		case radar.BlockOnFull:
			for q.items.len() >= q.capacity {
				if q.closed {
					return radar.ErrShutdown
				}
				q.notFull.Wait()
			}
			if q.closed {
				return radar.ErrShutdown
			}
		}
	}

	q.items.push(item)
	q.received.Inc()
	if size := uint32(q.items.len()); size > q.peak.Load() {
		q.peak.Store(size)
	}
	q.notEmpty.Signal()
	return nil
}

//Dequeue removes the next item in store order.
//timeout 0 waits indefinitely. Returns ErrTimeout when the timeout
//elapses and ErrShutdown once the queue is closed and drained.
func (q *Bounded[T]) Dequeue(timeout time.Duration) (T, error) {
	var zero T
	q.mu.Lock()
	defer q.mu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for q.items.len() == 0 {
		if q.closed {
			return zero, radar.ErrShutdown
		}
		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return zero, radar.ErrTimeout
			}
			//Cond has no timed wait; an AfterFunc broadcast bounds this one
			timer := time.AfterFunc(remaining, func() {
				q.mu.Lock()
				q.notEmpty.Broadcast()
				q.mu.Unlock()
			})
			q.notEmpty.Wait()
			timer.Stop()
		} else {
			q.notEmpty.Wait()
		}
	}

	item, _ := q.items.pop()
	q.notFull.Signal()
	return item, nil
}

//TryDequeue removes the next item without blocking.
func (q *Bounded[T]) TryDequeue() (T, bool) {
	var zero T
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.len() == 0 {
		return zero, false
	}
	item, _ := q.items.pop()
	q.notFull.Signal()
	return item, true
}

//Clear drains the queue and returns the removed items in dequeue order.
//Cleared items do not count as dropped.
func (q *Bounded[T]) Clear() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.items.clear()
	q.notFull.Broadcast()
	return drained
}

//Close marks the queue closed and wakes every blocked producer and
//consumer. Enqueue fails immediately afterwards; Dequeue keeps serving
//until the remaining items drain.
func (q *Bounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

//Closed reports whether Close was called.
func (q *Bounded[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

//Len returns the number of queued items.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.len()
}

//Cap returns the fixed capacity.
func (q *Bounded[T]) Cap() int {
	return q.capacity
}

//Status snapshots the queue counters.
//Fields are read atomically but not transactionally against each other.
func (q *Bounded[T]) Status() radar.BufferStatus {
	q.mu.Lock()
	size := uint32(q.items.len())
	q.mu.Unlock()

	return radar.BufferStatus{
		TotalCapacity: uint32(q.capacity),
		CurrentSize:   size,
		PeakSize:      q.peak.Load(),
		TotalReceived: q.received.Load(),
		TotalDropped:  q.dropped.Load(),
	}
}
