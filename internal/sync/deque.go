package sync

import (
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// nextPow2 rounds n up to the nearest power of two, the same bound
// arithmetic the pack's catrate ring buffer uses constraints.Ordered for
// when sizing itself — here applied to rounding NewDeque's initial
// capacity up (growth itself doubles the current array size).
func nextPow2[I constraints.Integer](n I) I {
	if n < 1 {
		return 1
	}
	p := I(1)
	for p < n {
		p <<= 1
	}
	return p
}

// circularArray is the growable, power-of-two backing store for Deque. It
// mirrors the source runtime's detail::CircularArray<T>: indices wrap via
// modulo, and grow() copies the live [top, bottom) range into a doubled
// array rather than resizing in place, so stealers that hold a stale index
// never observe a half-written slot.
type circularArray[T any] struct {
	buf []atomic.Pointer[T]
}

func newCircularArray[T any](size int) *circularArray[T] {
	return &circularArray[T]{buf: make([]atomic.Pointer[T], size)}
}

func (c *circularArray[T]) size() int { return len(c.buf) }

func (c *circularArray[T]) get(i int64) *T {
	return c.buf[i%int64(len(c.buf))].Load()
}

func (c *circularArray[T]) put(i int64, item *T) {
	c.buf[i%int64(len(c.buf))].Store(item)
}

func (c *circularArray[T]) grow(top, bottom int64) *circularArray[T] {
	na := newCircularArray[T](len(c.buf) * 2)
	for i := top; i != bottom; i++ {
		na.put(i, c.get(i))
	}
	return na
}

// Deque is a Chase-Lev work-stealing deque: the owner pushes and pops from
// the bottom (LIFO, cheap, single-writer), while thieves steal from the top
// (FIFO-ish across thieves, contended, CAS-protected). It backs the ready
// queue a worker's Scheduler uses to hold runnable, migratable Contexts
// (spec.md C1/C3): PushBottom/PopBottom are only ever called by the owning
// worker goroutine; Steal may be called concurrently by any other worker.
type Deque[T any] struct {
	top    atomic.Int64
	bottom atomic.Int64
	array  atomic.Pointer[circularArray[T]]
}

// NewDeque returns an empty Deque with an initial capacity of at least
// minCap slots, rounded up to a power of two.
func NewDeque[T any](minCap int) *Deque[T] {
	size := nextPow2(minCap)
	if size < 8 {
		size = 8
	}
	d := &Deque[T]{}
	d.array.Store(newCircularArray[T](size))
	return d
}

// Len returns an approximation of the number of items currently held; it is
// exact only when called by the owner with no concurrent thieves.
func (d *Deque[T]) Len() int {
	b := d.bottom.Load()
	t := d.top.Load()
	if b < t {
		return 0
	}
	return int(b - t)
}

// PushBottom adds item to the bottom of the deque. Owner-only.
func (d *Deque[T]) PushBottom(item *T) {
	b := d.bottom.Load()
	t := d.top.Load()
	a := d.array.Load()

	if size := b - t; size >= int64(a.size())-1 {
		a = a.grow(t, b)
		d.array.Store(a)
	}

	a.put(b, item)
	d.bottom.Store(b + 1)
}

// PopBottom removes and returns the item at the bottom of the deque, or nil
// if empty. Owner-only. Races against concurrent Steal calls at the last
// remaining element, resolved with a single CAS on top.
func (d *Deque[T]) PopBottom() *T {
	b := d.bottom.Load() - 1
	a := d.array.Load()
	d.bottom.Store(b)

	t := d.top.Load()
	size := b - t
	if size < 0 {
		d.bottom.Store(t)
		return nil
	}

	item := a.get(b)
	if size > 0 {
		return item
	}

	// Last element: race a concurrent thief for it via CAS on top.
	if !d.top.CompareAndSwap(t, t+1) {
		item = nil
	}
	d.bottom.Store(t + 1)
	return item
}

// Steal removes and returns the item at the top of the deque, or nil if
// empty or if it lost a race against the owner's PopBottom or another
// thief's Steal.
func (d *Deque[T]) Steal() *T {
	t := d.top.Load()
	b := d.bottom.Load()
	if b-t <= 0 {
		return nil
	}

	a := d.array.Load()
	item := a.get(t)
	if !d.top.CompareAndSwap(t, t+1) {
		return nil
	}
	return item
}
