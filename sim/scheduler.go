package sim

import "container/heap"

// eventHeap implements heap.Interface with deterministic ordering:
// timestamp → priority → event ID.
type eventHeap []Event

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return Less(h[i], h[j]) }
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler orders and hands out simulation events.
//
// Callback events can be cancelled. Removing an arbitrary element from a heap
// is expensive, so cancellation records a tombstone instead and the event is
// dropped when it reaches the front of the queue.
//
// Thread-safety: NOT thread-safe. Must be driven from a single goroutine.
type Scheduler struct {
	events  eventHeap
	running bool
	nextID  uint64

	// pending callback IDs still in the heap, and the subset cancelled
	callbacks map[uint64]struct{}
	cancelled map[uint64]struct{}
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		events:    make(eventHeap, 0),
		callbacks: make(map[uint64]struct{}),
		cancelled: make(map[uint64]struct{}),
	}
	heap.Init(&s.events)
	return s
}

// NewEventID returns the next event identity. IDs start at 1 and strictly
// increase, which makes the event order total and replay deterministic.
func (s *Scheduler) NewEventID() uint64 {
	s.nextID++
	return s.nextID
}

// AddEvent inserts e into the queue.
func (s *Scheduler) AddEvent(e Event) {
	heap.Push(&s.events, e)
	if e.Priority() == PriorityCallback {
		s.callbacks[e.EventID()] = struct{}{}
	}
	s.running = true
}

// DeleteEvent cancels the pending callback event with the given ID. IDs that
// do not name a pending callback are ignored, so cancellation is idempotent.
func (s *Scheduler) DeleteEvent(id uint64) {
	if _, ok := s.callbacks[id]; !ok {
		return
	}
	s.cancelled[id] = struct{}{}
}

// NextEvent removes and returns the earliest event.
//
// On an empty queue it returns nil and Running() becomes false. When the
// earliest event is a cancelled callback, the tombstone is cleared and nil is
// returned while Running() stays true; the caller should retrieve again.
func (s *Scheduler) NextEvent() Event {
	if len(s.events) == 0 {
		s.running = false
		return nil
	}
	e := heap.Pop(&s.events).(Event)
	if e.Priority() == PriorityCallback {
		id := e.EventID()
		delete(s.callbacks, id)
		if _, ok := s.cancelled[id]; ok {
			delete(s.cancelled, id)
			return nil
		}
	}
	return e
}

// Peek returns the earliest event without removing it, or nil.
func (s *Scheduler) Peek() Event {
	if len(s.events) == 0 {
		return nil
	}
	return s.events[0]
}

// CountEvents returns the queue size, including cancelled callbacks that have
// not been retrieved yet.
func (s *Scheduler) CountEvents() int {
	return len(s.events)
}

// Cancelled returns the number of live tombstones.
func (s *Scheduler) Cancelled() int {
	return len(s.cancelled)
}

// IsCancelled reports whether id names a pending, cancelled callback.
func (s *Scheduler) IsCancelled(id uint64) bool {
	_, ok := s.cancelled[id]
	return ok
}

// Running reports whether the last retrieval found the queue non-empty.
func (s *Scheduler) Running() bool {
	return s.running
}

// Stop clears the running flag without touching queued events.
func (s *Scheduler) Stop() {
	s.running = false
}
