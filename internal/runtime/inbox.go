package runtime

import "sync/atomic"

// inbox is the per-worker remote enqueue MPSC queue (spec.md §4.3's
// "remote inbox"): a lock-free intrusive queue using the Vyukov algorithm.
// Producers (any worker scheduling a Context onto a different worker) call
// Push concurrently; only the owning worker's run loop calls Pop, so Pop
// itself needs no synchronization beyond the atomics Push already uses.
//
// It is intrusive: the linked-list "next" pointer lives on the Context
// itself (mpscNext), so pushing never allocates. A sentinel stub node
// (itself a *Context whose address is never resumed) seeds head/tail so
// the empty-queue check never needs a nil special case on tail.
type inbox struct {
	head atomic.Pointer[Context]
	tail atomic.Pointer[Context]
	stub Context
}

func newInbox() *inbox {
	q := &inbox{}
	q.head.Store(&q.stub)
	q.tail.Store(&q.stub)
	return q
}

// Push enqueues ctx. Safe for concurrent use by multiple producers.
func (q *inbox) Push(ctx *Context) {
	ctx.mpscNextPtr().Store(nil)
	prev := q.tail.Swap(ctx)
	// Linearization point: once prev.next is published, a concurrent Pop
	// that has already advanced as far as prev can see ctx.
	prev.mpscNextPtr().Store(ctx)
}

// Pop dequeues one Context, or returns nil if empty (or if a producer is
// between its swap and its link; that Context is returned by a later
// Pop). Single-consumer only. A Context is returned only once head has
// moved past it, so it can be pushed again without linking to itself.
func (q *inbox) Pop() *Context {
	head := q.head.Load()
	next := head.mpscNextPtr().Load()
	if head == &q.stub {
		if next == nil {
			return nil
		}
		q.head.Store(next)
		head, next = next, next.mpscNextPtr().Load()
	}
	if next != nil {
		q.head.Store(next)
		return head
	}
	if head != q.tail.Load() {
		return nil
	}
	q.Push(&q.stub)
	if next = head.mpscNextPtr().Load(); next != nil {
		q.head.Store(next)
		return head
	}
	return nil
}
