package input

import "sync"

// DefaultQueueCapacity is used when a non-positive capacity is requested.
const DefaultQueueCapacity = 256

// Queue is a bounded, pull-based event buffer. Capture goroutines Push; the
// control loop Drains once per tick. When full, the oldest continuous event
// (mouse or axis motion) is dropped first so that key releases survive.
type Queue struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	dropped  uint64
}

// NewQueue creates a queue holding at most capacity events.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
	}
}

// Push appends ev. It returns false when an older event had to be dropped.
func (q *Queue) Push(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	ok := true
	if len(q.events) >= q.capacity {
		victim := 0
		for i, e := range q.events {
			if e.continuous() {
				victim = i
				break
			}
		}
		q.events = append(q.events[:victim], q.events[victim+1:]...)
		q.dropped++
		ok = false
	}
	q.events = append(q.events, ev)
	return ok
}

// Drain appends every queued event to dst in arrival order and empties the
// queue.
func (q *Queue) Drain(dst []Event) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	dst = append(dst, q.events...)
	q.events = q.events[:0]
	return dst
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped returns how many events were discarded on overflow.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
