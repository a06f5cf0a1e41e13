// Package scheduler runs one-shot timers from a single driver goroutine.
//
// Timers are kept in an indexed min-heap ordered by deadline. The driver calls
// Tick, which fires every timer whose deadline has passed. A Scheduler has no
// internal locking: Schedule, Cancel and Tick must all be called from the
// goroutine that drives it, callbacks included.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hackebrot/go-timer-scheduler/pkg/minheap"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrAllocation is returned by Schedule when no more timers can be held.
	ErrAllocation = minheap.ErrAllocation

	// ErrNotPresent is returned by Cancel for a timer that already fired or was
	// already cancelled. Callers should treat it as a normal outcome.
	ErrNotPresent = minheap.ErrNotPresent

	// ErrUnsupported is returned by Schedule for a delay it cannot turn into a deadline.
	ErrUnsupported = errors.New("scheduler: unsupported delay")

	// ErrInvalidDelay is returned by Schedule for a delay with out-of-range fields.
	ErrInvalidDelay = errors.New("scheduler: invalid delay")

	// ErrNilCallback is returned by Schedule when the callback is nil.
	ErrNilCallback = errors.New("scheduler: nil callback")
)

// Scheduler holds pending timers and fires them on Tick.
type Scheduler struct {
	pending *minheap.Heap[event]
	arena   arena

	// parked holds events scheduled during a drain that were already due.
	// They enter the heap once the drain ends so they fire on the next Tick.
	parked     []*minheap.Entry[event]
	liveParked int
	draining   bool
	drainNow   time.Time

	clock      func() time.Time
	location   *time.Location
	maxPending int
	logger     *slog.Logger
	metrics    *metrics
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source used to compute deadlines. Defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithLocation sets the time zone daily, weekly and monthly delays are evaluated in.
// Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

// WithMaxPending caps the number of pending timers. Schedule fails with
// ErrAllocation once the cap is reached.
func WithMaxPending(n int) Option {
	return func(s *Scheduler) {
		s.maxPending = n
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithMetrics registers the scheduler's collectors with reg.
// Registering two schedulers with the same registerer panics.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Scheduler) {
		s.metrics = newMetrics(reg)
	}
}

// New creates an empty Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		pending:  minheap.New(eventLess),
		clock:    time.Now,
		location: time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time according to the scheduler's clock.
func (s *Scheduler) Now() time.Time {
	return s.clock()
}

// Schedule registers cb to run once delay has elapsed. The returned handle
// can cancel the timer until it fires.
func (s *Scheduler) Schedule(delay Delay, cb Callback) (Handle, error) {
	if cb == nil {
		return Handle{}, ErrNilCallback
	}
	if delay == nil {
		return Handle{}, fmt.Errorf("%w: %T", ErrUnsupported, delay)
	}

	deadline, err := delay.next(s.clock(), s.location)
	if err != nil {
		return Handle{}, err
	}

	if s.maxPending > 0 && s.Pending() >= s.maxPending {
		return Handle{}, fmt.Errorf("scheduler: %d timers pending: %w", s.Pending(), ErrAllocation)
	}

	entry := s.arena.alloc(deadline, cb)
	h := entry.Value.handle

	if s.draining && !deadline.After(s.drainNow) {
		s.parked = append(s.parked, entry)
		s.liveParked++
	} else {
		s.push(entry)
	}

	s.metrics.scheduled(s.Pending())
	return h, nil
}

// Cancel removes the timer h refers to. It returns ErrNotPresent when the
// timer already fired or was cancelled before.
func (s *Scheduler) Cancel(h Handle) error {
	entry := s.arena.lookup(h)
	if entry == nil {
		return ErrNotPresent
	}

	if entry.Position() >= 0 {
		if err := s.pending.Erase(entry); err != nil {
			return err
		}
	} else {
		entry.Value.cancelled = true
		s.liveParked--
	}

	s.arena.release(h)
	s.metrics.cancelled(s.Pending())
	return nil
}

// Tick fires, in deadline order, every timer due at or before now. Timers that
// callbacks schedule for a deadline at or before now fire on the next Tick.
// Tick returns the number of timers fired. Calling Tick from a callback panics.
func (s *Scheduler) Tick(now time.Time) int {
	if s.draining {
		panic("scheduler: Tick called from a timer callback")
	}

	s.draining = true
	s.drainNow = now
	defer s.endDrain()

	fired := 0
	for {
		top, ok := s.pending.Top()
		if !ok || top.Value.deadline.After(now) {
			break
		}

		e, _ := s.pending.Pop()
		s.arena.release(e.Value.handle)
		fired++
		s.metrics.fired(s.Pending(), now.Sub(e.Value.deadline))

		e.Value.callback()
	}

	if fired > 0 {
		s.logger.Debug("fired timers", "count_fired", fired, "count_pending", s.Pending())
	}
	return fired
}

// endDrain moves parked events into the heap. It runs even if a callback panics.
func (s *Scheduler) endDrain() {
	s.draining = false

	parked := s.parked
	s.parked = nil
	s.liveParked = 0

	for _, entry := range parked {
		if entry.Value.cancelled {
			continue
		}
		s.push(entry)
	}
}

// push inserts a detached entry. The heap is unbounded and maxPending is
// enforced by Schedule, so Push cannot fail.
func (s *Scheduler) push(entry *minheap.Entry[event]) {
	if err := s.pending.Push(entry); err != nil {
		panic(fmt.Sprintf("scheduler: push timer: %v", err))
	}
}

// Deadline returns when the timer h refers to is due, or false once h is stale.
func (s *Scheduler) Deadline(h Handle) (time.Time, bool) {
	entry := s.arena.lookup(h)
	if entry == nil {
		return time.Time{}, false
	}
	return entry.Value.deadline, true
}

// Pending returns the number of timers waiting to fire.
func (s *Scheduler) Pending() int {
	return s.pending.Len() + s.liveParked
}

// NextDeadline returns the earliest deadline among timers in the heap.
// Timers parked during a running Tick are not considered.
func (s *Scheduler) NextDeadline() (time.Time, bool) {
	top, ok := s.pending.Top()
	if !ok {
		return time.Time{}, false
	}
	return top.Value.deadline, true
}

// Clear drops every pending timer without firing it and returns how many were
// dropped. Handles to dropped timers go stale.
func (s *Scheduler) Clear() int {
	n := s.Pending()

	s.pending = minheap.New(eventLess)
	s.parked = nil
	s.liveParked = 0
	s.arena.releaseAll()

	s.metrics.cleared()
	if n > 0 {
		s.logger.Debug("cleared timers", "count_dropped", n)
	}
	return n
}
