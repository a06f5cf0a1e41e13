// Package minheap provides a binary min-heap whose entries track their own
// position, so an arbitrary entry can be removed in O(log n) without a lookup table.
package minheap

import (
	"container/heap"
	"errors"
)

var (
	// ErrAllocation is returned by Push when the backing storage cannot grow.
	ErrAllocation = errors.New("minheap: cannot grow backing storage")

	// ErrNotPresent is returned by Erase when the entry is not in the heap.
	ErrNotPresent = errors.New("minheap: entry not present")

	// ErrPresent is returned by Push when the entry already sits in a heap.
	ErrPresent = errors.New("minheap: entry already present")
)

// Entry wraps a value stored in a Heap.
type Entry[T any] struct {
	Value T

	// position is the entry's index in the backing slice, -1 when detached.
	position int
}

// NewEntry creates a detached entry holding v.
func NewEntry[T any](v T) *Entry[T] {
	return &Entry[T]{Value: v, position: -1}
}

// Position returns the entry's current index in its heap, or -1.
func (e *Entry[T]) Position() int {
	return e.position
}

// Heap is a min-heap of entries ordered by less. Entries comparing equal come
// out in no particular order.
//
// A Heap is not safe for concurrent use.
type Heap[T any] struct {
	elements entries[T]
	maxSize  int
}

// Option configures a Heap.
type Option func(*config)

type config struct {
	maxSize int
}

// WithMaxSize bounds the number of entries the heap may hold. Push fails with
// ErrAllocation once the bound is reached. Zero or negative means unbounded.
func WithMaxSize(n int) Option {
	return func(c *config) {
		c.maxSize = n
	}
}

// New creates an empty heap ordered by less.
func New[T any](less func(a, b T) bool, opts ...Option) *Heap[T] {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Heap[T]{
		elements: entries[T]{less: less},
		maxSize:  cfg.maxSize,
	}
}

// Len returns the number of entries in the heap.
func (h *Heap[T]) Len() int {
	return len(h.elements.items)
}

// Empty reports whether the heap holds no entries.
func (h *Heap[T]) Empty() bool {
	return h.Len() == 0
}

// Top returns the smallest entry without removing it.
func (h *Heap[T]) Top() (*Entry[T], bool) {
	if h.Empty() {
		return nil, false
	}
	return h.elements.items[0], true
}

// Push inserts e and records its position.
func (h *Heap[T]) Push(e *Entry[T]) error {
	if e.position >= 0 {
		return ErrPresent
	}
	if h.maxSize > 0 && h.Len() >= h.maxSize {
		return ErrAllocation
	}

	heap.Push(&h.elements, e)
	return nil
}

// Pop removes and returns the smallest entry. The returned entry is detached.
func (h *Heap[T]) Pop() (*Entry[T], bool) {
	if h.Empty() {
		return nil, false
	}
	return heap.Pop(&h.elements).(*Entry[T]), true
}

// Erase removes e from anywhere in the heap. The element moved into the vacated
// slot is sifted down, or up when it is smaller than its new parent.
func (h *Heap[T]) Erase(e *Entry[T]) error {
	i := e.position
	if i < 0 || i >= h.Len() || h.elements.items[i] != e {
		return ErrNotPresent
	}

	heap.Remove(&h.elements, i)
	return nil
}

// entries implements heap.Interface and keeps every entry's position in step
// with its index.
type entries[T any] struct {
	items []*Entry[T]
	less  func(a, b T) bool
}

func (h entries[T]) Len() int { return len(h.items) }

func (h entries[T]) Less(i, j int) bool {
	return h.less(h.items[i].Value, h.items[j].Value)
}

func (h entries[T]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].position = i
	h.items[j].position = j
}

func (h *entries[T]) Push(x any) {
	e := x.(*Entry[T])
	e.position = len(h.items)
	h.items = append(h.items, e)
}

func (h *entries[T]) Pop() any {
	old := h.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil // avoid memory leak
	e.position = -1
	h.items = old[:n-1]
	return e
}
