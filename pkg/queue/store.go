package queue

import (
	"container/heap"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
)

const (
	defaultStoreCap     = 16
	compactMinCap       = 64 //Don't compact below this capacity
	compactShrinkFactor = 4  //Compact when len < cap/4
)

//store is the unlocked ordering backend of a Bounded queue.
//All calls happen under the owning queue's mutex.
type store[T any] interface {
	push(item T)
	//pop removes and returns the next item in dequeue order
	pop() (T, bool)
	//evict removes and returns the item an overflowing enqueue sacrifices
	evict() (T, bool)
	len() int
	//clear removes everything and returns the drained items in dequeue order
	clear() []T
}

//fifoStore is a slice ring with element zeroing and occasional compaction
//so long-lived queues do not pin their high-water backing array.
type fifoStore[T any] struct {
	items []T
}

func newFIFOStore[T any]() *fifoStore[T] {
	return &fifoStore[T]{items: make([]T, 0, defaultStoreCap)}
}

func (s *fifoStore[T]) push(item T) {
	s.items = append(s.items, item)
}

func (s *fifoStore[T]) pop() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	item := s.items[0]
	//Zero out the element in the underlying array to prevent memory leak
	s.items[0] = zero
	s.items = s.items[1:]
	s.maybeCompact()
	return item, true
}

//evict is the same as pop for FIFO order: the head is the oldest item.
func (s *fifoStore[T]) evict() (T, bool) {
	return s.pop()
}

func (s *fifoStore[T]) len() int {
	return len(s.items)
}

func (s *fifoStore[T]) clear() []T {
	drained := make([]T, len(s.items))
	copy(drained, s.items)
	s.items = make([]T, 0, defaultStoreCap)
	return drained
}

func (s *fifoStore[T]) maybeCompact() {
	n := len(s.items)
	c := cap(s.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		s.items = make([]T, 0, defaultStoreCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := c / 2
	if newCap < defaultStoreCap {
		newCap = defaultStoreCap
	}
	if newCap < n {
		newCap = n
	}

	newSlice := make([]T, n, newCap)
	copy(newSlice, s.items)
	s.items = newSlice
}

//priorityItem wraps a queued element with its priority and a submission
//sequence for stability.
type priorityItem[T any] struct {
	value    T
	priority radar.PacketPriority
	sequence uint64
	index    int
}

//priorityHeap implements heap.Interface.
//Highest priority first, then earliest sequence first (FIFO within a priority).
type priorityHeap[T any] []*priorityItem[T]

func (h priorityHeap[T]) Len() int { return len(h) }

func (h priorityHeap[T]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].sequence < h[j].sequence
}

func (h priorityHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *priorityHeap[T]) Push(x interface{}) {
	n := len(*h)
	item := x.(*priorityItem[T])
	item.index = n
	*h = append(*h, item)
}

func (h *priorityHeap[T]) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil //Avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

//priorityStore orders items by priority with a stable FIFO tie-break.
type priorityStore[T any] struct {
	pq           priorityHeap[T]
	priorityOf   func(T) radar.PacketPriority
	nextSequence uint64
}

func newPriorityStore[T any](priorityOf func(T) radar.PacketPriority) *priorityStore[T] {
	return &priorityStore[T]{
		pq:         make(priorityHeap[T], 0, defaultStoreCap),
		priorityOf: priorityOf,
	}
}

func (s *priorityStore[T]) push(item T) {
	entry := &priorityItem[T]{
		value:    item,
		priority: s.priorityOf(item),
		sequence: s.nextSequence,
	}
	s.nextSequence++
	heap.Push(&s.pq, entry)
}

func (s *priorityStore[T]) pop() (T, bool) {
	var zero T
	if len(s.pq) == 0 {
		return zero, false
	}
	item := heap.Pop(&s.pq).(*priorityItem[T])
	return item.value, true
}

//evict sacrifices the lowest-priority item, oldest first within that
//priority, so an overflowing enqueue never displaces more urgent work.
func (s *priorityStore[T]) evict() (T, bool) {
	var zero T
	if len(s.pq) == 0 {
		return zero, false
	}
	victim := 0
	for i := 1; i < len(s.pq); i++ {
		if s.pq[i].priority < s.pq[victim].priority ||
			(s.pq[i].priority == s.pq[victim].priority && s.pq[i].sequence < s.pq[victim].sequence) {
			victim = i
		}
	}
	item := heap.Remove(&s.pq, victim).(*priorityItem[T])
	return item.value, true
}

func (s *priorityStore[T]) len() int {
	return len(s.pq)
}

func (s *priorityStore[T]) clear() []T {
	drained := make([]T, 0, len(s.pq))
	for len(s.pq) > 0 {
		item := heap.Pop(&s.pq).(*priorityItem[T])
		drained = append(drained, item.value)
	}
	s.pq = make(priorityHeap[T], 0, defaultStoreCap)
	s.nextSequence = 0
	return drained
}
