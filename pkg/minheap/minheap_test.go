//nolint:testpackage // invariant checks need the backing slice
package minheap

import (
	"math/rand"
	"testing"

	"github.com/onsi/gomega"
	"pgregory.net/rapid"
)

func intLess(a, b int) bool { return a < b }

// checkInvariants verifies the heap property and position coherence.
func checkInvariants(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, h *Heap[int]) {
	t.Helper()

	items := h.elements.items
	for i, e := range items {
		if e.position != i {
			t.Fatalf("entry %d has position %d", i, e.position)
		}
		if i == 0 {
			continue
		}
		parent := items[(i-1)/2]
		if parent.Value > e.Value {
			t.Fatalf("heap property violated at %d: parent %d > child %d", i, parent.Value, e.Value)
		}
	}
}

func TestPopOrdering(t *testing.T) {
	expect := gomega.NewWithT(t)
	h := New(intLess)

	for _, v := range []int{5, 1, 3, 2, 4} {
		expect.Expect(h.Push(NewEntry(v))).To(gomega.Succeed())
	}

	var got []int
	for !h.Empty() {
		e, ok := h.Pop()
		expect.Expect(ok).To(gomega.BeTrue())
		expect.Expect(e.Position()).To(gomega.Equal(-1))
		got = append(got, e.Value)
	}

	expect.Expect(got).To(gomega.Equal([]int{1, 2, 3, 4, 5}))
}

func TestEmptyHeap(t *testing.T) {
	expect := gomega.NewWithT(t)
	h := New(intLess)

	top, ok := h.Top()
	expect.Expect(ok).To(gomega.BeFalse())
	expect.Expect(top).To(gomega.BeNil())

	e, ok := h.Pop()
	expect.Expect(ok).To(gomega.BeFalse())
	expect.Expect(e).To(gomega.BeNil())

	expect.Expect(h.Len()).To(gomega.Equal(0))
	expect.Expect(h.Empty()).To(gomega.BeTrue())
}

func TestTopDoesNotRemove(t *testing.T) {
	expect := gomega.NewWithT(t)
	h := New(intLess)

	expect.Expect(h.Push(NewEntry(7))).To(gomega.Succeed())
	expect.Expect(h.Push(NewEntry(3))).To(gomega.Succeed())

	top, ok := h.Top()
	expect.Expect(ok).To(gomega.BeTrue())
	expect.Expect(top.Value).To(gomega.Equal(3))
	expect.Expect(top.Position()).To(gomega.Equal(0))
	expect.Expect(h.Len()).To(gomega.Equal(2))
}

func TestEraseNonRoot(t *testing.T) {
	expect := gomega.NewWithT(t)
	r := rand.New(rand.NewSource(1))
	h := New(intLess)

	all := make([]*Entry[int], 0, 20)
	for _, v := range r.Perm(1000)[:20] {
		e := NewEntry(v)
		expect.Expect(h.Push(e)).To(gomega.Succeed())
		all = append(all, e)
	}
	checkInvariants(t, h)

	var victim *Entry[int]
	for _, e := range all {
		if e.Position() != 0 && e.Position() != h.Len()-1 {
			victim = e
			break
		}
	}
	expect.Expect(victim).NotTo(gomega.BeNil())

	expect.Expect(h.Erase(victim)).To(gomega.Succeed())
	expect.Expect(victim.Position()).To(gomega.Equal(-1))
	expect.Expect(h.Len()).To(gomega.Equal(19))
	checkInvariants(t, h)

	for _, e := range h.elements.items {
		expect.Expect(e).NotTo(gomega.BeIdenticalTo(victim))
	}
}

// Erasing a deep leaf from one subtree can pull in a last element that is
// smaller than the vacated slot's parent; it must move up, not down.
func TestEraseSiftsUp(t *testing.T) {
	expect := gomega.NewWithT(t)
	h := New(intLess)

	//        0
	//     10    1
	//   11  12 2  3
	// 13
	values := []int{0, 10, 1, 11, 12, 2, 3, 13}
	byValue := map[int]*Entry[int]{}
	for _, v := range values {
		e := NewEntry(v)
		byValue[v] = e
		h.elements.items = append(h.elements.items, e)
		e.position = len(h.elements.items) - 1
	}
	checkInvariants(t, h)

	// Vacate 12's slot; replacement 13 fits there. Then vacate 11's slot with 3 as
	// the last element, which is smaller than the parent 10.
	expect.Expect(h.Erase(byValue[12])).To(gomega.Succeed())
	checkInvariants(t, h)
	expect.Expect(h.Erase(byValue[11])).To(gomega.Succeed())
	checkInvariants(t, h)

	expect.Expect(byValue[3].Position()).To(gomega.Equal(1))
}

func TestEraseTwice(t *testing.T) {
	expect := gomega.NewWithT(t)
	h := New(intLess)

	e := NewEntry(1)
	expect.Expect(h.Push(e)).To(gomega.Succeed())
	expect.Expect(h.Push(NewEntry(2))).To(gomega.Succeed())

	expect.Expect(h.Erase(e)).To(gomega.Succeed())
	expect.Expect(h.Erase(e)).To(gomega.MatchError(ErrNotPresent))
	expect.Expect(h.Len()).To(gomega.Equal(1))
}

func TestEraseAfterPop(t *testing.T) {
	expect := gomega.NewWithT(t)
	h := New(intLess)

	e := NewEntry(1)
	expect.Expect(h.Push(e)).To(gomega.Succeed())

	popped, ok := h.Pop()
	expect.Expect(ok).To(gomega.BeTrue())
	expect.Expect(popped).To(gomega.BeIdenticalTo(e))
	expect.Expect(h.Erase(e)).To(gomega.MatchError(ErrNotPresent))
}

func TestEraseForeignEntry(t *testing.T) {
	expect := gomega.NewWithT(t)
	a := New(intLess)
	b := New(intLess)

	expect.Expect(a.Push(NewEntry(1))).To(gomega.Succeed())
	foreign := NewEntry(2)
	expect.Expect(b.Push(foreign)).To(gomega.Succeed())

	expect.Expect(a.Erase(foreign)).To(gomega.MatchError(ErrNotPresent))
	expect.Expect(a.Len()).To(gomega.Equal(1))
	expect.Expect(b.Len()).To(gomega.Equal(1))
}

func TestPushPresentEntry(t *testing.T) {
	expect := gomega.NewWithT(t)
	h := New(intLess)

	e := NewEntry(1)
	expect.Expect(h.Push(e)).To(gomega.Succeed())
	expect.Expect(h.Push(e)).To(gomega.MatchError(ErrPresent))
	expect.Expect(h.Len()).To(gomega.Equal(1))
}

func TestPushAllocationFailure(t *testing.T) {
	expect := gomega.NewWithT(t)
	h := New(intLess, WithMaxSize(2))

	expect.Expect(h.Push(NewEntry(3))).To(gomega.Succeed())
	expect.Expect(h.Push(NewEntry(2))).To(gomega.Succeed())

	e := NewEntry(1)
	expect.Expect(h.Push(e)).To(gomega.MatchError(ErrAllocation))
	expect.Expect(e.Position()).To(gomega.Equal(-1))
	expect.Expect(h.Len()).To(gomega.Equal(2))

	top, _ := h.Top()
	expect.Expect(top.Value).To(gomega.Equal(2))
	checkInvariants(t, h)

	// Space frees up again after a pop.
	_, _ = h.Pop()
	expect.Expect(h.Push(e)).To(gomega.Succeed())
}

func TestDuplicateValues(t *testing.T) {
	expect := gomega.NewWithT(t)
	h := New(intLess)

	for range 5 {
		expect.Expect(h.Push(NewEntry(4))).To(gomega.Succeed())
	}
	checkInvariants(t, h)

	seen := map[*Entry[int]]bool{}
	for !h.Empty() {
		e, _ := h.Pop()
		expect.Expect(seen[e]).To(gomega.BeFalse())
		seen[e] = true
	}
	expect.Expect(seen).To(gomega.HaveLen(5))
}

// Property: any interleaving of push, pop and erase keeps both invariants and
// pop always returns the current minimum.
func TestHeapInvariantsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := New(intLess)
		var live []*Entry[int]

		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 200).Draw(t, "ops")
		for i, op := range ops {
			switch {
			case op == 0 || len(live) == 0:
				e := NewEntry(rapid.IntRange(-50, 50).Draw(t, "value"))
				if err := h.Push(e); err != nil {
					t.Fatalf("push: %v", err)
				}
				live = append(live, e)

			case op == 1:
				want := live[0].Value
				for _, e := range live {
					want = min(want, e.Value)
				}
				e, ok := h.Pop()
				if !ok || e.Value != want {
					t.Fatalf("op %d: pop returned %v, want %d", i, e, want)
				}
				live = remove(live, e)

			default:
				idx := rapid.IntRange(0, len(live)-1).Draw(t, "erase")
				e := live[idx]
				if err := h.Erase(e); err != nil {
					t.Fatalf("op %d: erase: %v", i, err)
				}
				live = remove(live, e)
			}

			if h.Len() != len(live) {
				t.Fatalf("op %d: len %d, want %d", i, h.Len(), len(live))
			}
			checkInvariants(t, h)
		}
	})
}

func remove(live []*Entry[int], e *Entry[int]) []*Entry[int] {
	for i, x := range live {
		if x == e {
			return append(live[:i], live[i+1:]...)
		}
	}
	return live
}
