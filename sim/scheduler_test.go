package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainIDs pops every event, skipping suppressed callbacks, and returns the
// dispatched IDs in order.
func drainIDs(s *Scheduler) []uint64 {
	var ids []uint64
	for {
		e := s.NextEvent()
		if e == nil {
			if !s.Running() {
				return ids
			}
			continue
		}
		ids = append(ids, e.EventID())
	}
}

func TestScheduler_TiesBrokenByPriority(t *testing.T) {
	// GIVEN events at (50, TxEnd, 1), (100, RxEnd, 3), (100, Callback, 7)
	// inserted out of order
	s := NewScheduler()
	s.AddEvent(NewCallbackEvent(100, "cb", nil, 7))
	s.AddEvent(NewRxEndEvent(100, "rx", nil, 3))
	s.AddEvent(NewTxEndEvent(50, "tx", nil, 1))

	// WHEN the queue is drained
	ids := drainIDs(s)

	// THEN the earlier time goes first, and RxEnd precedes Callback at equal time
	assert.Equal(t, []uint64{1, 3, 7}, ids)
}

func TestScheduler_EmptyQueueStopsRunning(t *testing.T) {
	s := NewScheduler()
	assert.False(t, s.Running())

	s.AddEvent(NewQuitEvent(10, s.NewEventID()))
	assert.True(t, s.Running())
	assert.Equal(t, 1, s.CountEvents())

	require.NotNil(t, s.NextEvent())
	assert.True(t, s.Running(), "retrieving the last event does not stop the loop yet")

	assert.Nil(t, s.NextEvent())
	assert.False(t, s.Running())
}

func TestScheduler_CancelledCallbackIsSuppressed(t *testing.T) {
	// GIVEN two callbacks, one of them cancelled
	s := NewScheduler()
	keep := s.NewEventID()
	drop := s.NewEventID()
	s.AddEvent(NewCallbackEvent(10, "keep", nil, keep))
	s.AddEvent(NewCallbackEvent(5, "drop", nil, drop))
	s.DeleteEvent(drop)

	// THEN the cancelled event still counts toward the queue size
	assert.Equal(t, 2, s.CountEvents())
	assert.Equal(t, 1, s.Cancelled())
	assert.True(t, s.IsCancelled(drop))

	// WHEN the first (cancelled) event is retrieved
	e := s.NextEvent()

	// THEN nothing is returned, the loop keeps running and the tombstone is gone
	assert.Nil(t, e)
	assert.True(t, s.Running())
	assert.Equal(t, 0, s.Cancelled())

	// AND the next retrieval yields the surviving callback
	e = s.NextEvent()
	require.NotNil(t, e)
	assert.Equal(t, keep, e.EventID())
}

func TestScheduler_DeleteEventOnlyAffectsPendingCallbacks(t *testing.T) {
	s := NewScheduler()
	tx := s.NewEventID()
	s.AddEvent(NewTxEndEvent(10, "a", nil, tx))

	// non-callback and unknown ids are ignored
	s.DeleteEvent(tx)
	s.DeleteEvent(999)
	assert.Equal(t, 0, s.Cancelled())
	assert.Equal(t, []uint64{tx}, drainIDs(s))

	// cancelling an already dispatched callback is a no-op
	cb := s.NewEventID()
	s.AddEvent(NewCallbackEvent(20, "cb", nil, cb))
	require.NotNil(t, s.NextEvent())
	s.DeleteEvent(cb)
	assert.Equal(t, 0, s.Cancelled())
}

func TestScheduler_DeleteEventIsIdempotent(t *testing.T) {
	s := NewScheduler()
	cb := s.NewEventID()
	s.AddEvent(NewCallbackEvent(20, "cb", nil, cb))
	s.DeleteEvent(cb)
	s.DeleteEvent(cb)
	assert.Equal(t, 1, s.Cancelled())
	assert.Empty(t, drainIDs(s))
}

func TestScheduler_NewEventIDStartsAtOneAndIncreases(t *testing.T) {
	s := NewScheduler()
	assert.Equal(t, uint64(1), s.NewEventID())
	assert.Equal(t, uint64(2), s.NewEventID())
	assert.Equal(t, uint64(3), s.NewEventID())
}

func TestScheduler_PeekDoesNotRemove(t *testing.T) {
	s := NewScheduler()
	assert.Nil(t, s.Peek())
	s.AddEvent(NewMilestoneEvent(5, 2))
	s.AddEvent(NewBirthEvent(5, "n", 9))

	require.NotNil(t, s.Peek())
	assert.Equal(t, uint64(9), s.Peek().EventID(), "Birth outranks Milestone at equal time")
	assert.Equal(t, 2, s.CountEvents())
}

func TestScheduler_RandomizedDrainIsMonotoneAndNeverYieldsCancelled(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 42} {
		rng := rand.New(rand.NewSource(seed))
		s := NewScheduler()
		cancelled := make(map[uint64]bool)

		for i := 0; i < 500; i++ {
			id := s.NewEventID()
			ts := rng.Int63n(100)
			if rng.Intn(3) == 0 {
				s.AddEvent(NewCallbackEvent(ts, "cb", nil, id))
				if rng.Intn(2) == 0 {
					s.DeleteEvent(id)
					cancelled[id] = true
				}
				continue
			}
			prio := Priority(rng.Intn(int(numPriorities)))
			s.AddEvent(&BirthEvent{BaseEvent: newBaseEvent(ts, prio, id)})
		}

		var prev Event
		dispatched := 0
		for {
			e := s.NextEvent()
			if e == nil {
				if !s.Running() {
					break
				}
				continue
			}
			dispatched++
			assert.False(t, cancelled[e.EventID()], "seed %d: cancelled event %d dispatched", seed, e.EventID())
			if prev != nil {
				ok := prev.Timestamp() < e.Timestamp() ||
					(prev.Timestamp() == e.Timestamp() && prev.Priority() <= e.Priority())
				assert.True(t, ok, "seed %d: (time, priority) went backwards", seed)
			}
			prev = e
		}
		assert.Equal(t, 500-len(cancelled), dispatched, "seed %d", seed)
		assert.Equal(t, 0, s.Cancelled())
	}
}

func TestLess_StrictTotalOrder(t *testing.T) {
	events := []Event{
		NewBirthEvent(0, "a", 1),
		NewBirthEvent(0, "b", 2),
		NewQuitEvent(0, 3),
		NewTxEndEvent(5, "a", nil, 4),
		NewCallbackEvent(5, "cb", nil, 5),
		NewMilestoneEvent(1, 6),
	}
	for i, a := range events {
		for j, b := range events {
			if i == j {
				assert.False(t, Less(a, a))
				continue
			}
			assert.True(t, Less(a, b) != Less(b, a), "events %d and %d must be strictly ordered", a.EventID(), b.EventID())
		}
	}
}

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "Birth", PriorityBirth.String())
	assert.Equal(t, "RxSignalEnd", PriorityRxSignalEnd.String())
	assert.Equal(t, "Quit", PriorityQuit.String())
	assert.Equal(t, "Priority(42)", Priority(42).String())
	assert.Len(t, AllPriorities(), int(numPriorities))
}
