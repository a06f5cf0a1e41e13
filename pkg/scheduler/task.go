package scheduler

import (
	"time"

	"github.com/hackebrot/go-timer-scheduler/pkg/minheap"
)

// Callback is the unit of work a timer runs when it fires. Arguments are bound
// by closing over them when the timer is scheduled.
type Callback func()

// Handle identifies a scheduled timer. It stays comparable and copyable after
// the timer fires or is cancelled; from then on it no longer refers to anything.
// The zero Handle never refers to a timer.
type Handle struct {
	slot       uint32
	generation uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.generation == 0
}

// event is a pending timer as stored in the heap.
type event struct {
	deadline time.Time
	callback Callback
	handle   Handle

	// cancelled marks a parked event that was cancelled before it reached the heap.
	cancelled bool
}

func eventLess(a, b event) bool {
	return a.deadline.Before(b.deadline)
}

// slot is one arena cell. entry is nil while the slot is free.
type slot struct {
	generation uint32
	entry      *minheap.Entry[event]
}

// arena hands out handles for pending events and recycles their slots.
type arena struct {
	slots []slot
	free  []uint32
}

func (a *arena) alloc(deadline time.Time, cb Callback) *minheap.Entry[event] {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{generation: 1})
	}

	s := &a.slots[idx]
	s.entry = minheap.NewEntry(event{
		deadline: deadline,
		callback: cb,
		handle:   Handle{slot: idx, generation: s.generation},
	})
	return s.entry
}

// lookup returns the entry h refers to, or nil once h is stale.
func (a *arena) lookup(h Handle) *minheap.Entry[event] {
	if h.IsZero() || int(h.slot) >= len(a.slots) {
		return nil
	}
	s := a.slots[h.slot]
	if s.generation != h.generation {
		return nil
	}
	return s.entry
}

// release frees h's slot. Every outstanding copy of h goes stale.
func (a *arena) release(h Handle) {
	s := &a.slots[h.slot]
	s.entry = nil
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	a.free = append(a.free, h.slot)
}

// releaseAll frees every occupied slot.
func (a *arena) releaseAll() {
	for i := range a.slots {
		if a.slots[i].entry != nil {
			a.release(Handle{slot: uint32(i), generation: a.slots[i].generation})
		}
	}
}
