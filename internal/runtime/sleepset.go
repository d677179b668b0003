package runtime

import (
	"container/heap"
	"time"
)

// sleepSet is a Scheduler's wake-time-ordered sleep set (spec.md §3/C1).
// The source runtime describes this structure as "Treiber-style"; a pure
// Treiber stack is LIFO and cannot maintain wake-time order, which the
// spec also requires ("sleep set ordered by wake-time"), so this is
// implemented as a binary min-heap instead (see DESIGN.md for the Open
// Question resolution). It needs no internal locking: only the context
// currently acting as "the worker" for this Scheduler ever pushes to or
// pops from it (sleep_until/alt_wait from the running context, or the
// promotion step of this Scheduler's own run loop) — cooperative
// scheduling means there is never more than one such caller at a time.
type sleepSet struct {
	items []*Context
}

func (s *sleepSet) Len() int { return len(s.items) }

func (s *sleepSet) Less(i, j int) bool {
	return s.items[i].WakeTime().Before(s.items[j].WakeTime())
}

func (s *sleepSet) Swap(i, j int) {
	s.items[i], s.items[j] = s.items[j], s.items[i]
	s.items[i].SetSleepIndex(i)
	s.items[j].SetSleepIndex(j)
}

func (s *sleepSet) Push(x any) {
	c := x.(*Context)
	c.SetSleepIndex(len(s.items))
	s.items = append(s.items, c)
}

func (s *sleepSet) Pop() any {
	n := len(s.items)
	c := s.items[n-1]
	s.items[n-1] = nil
	s.items = s.items[:n-1]
	c.SetSleepIndex(-1)
	return c
}

// insert adds ctx to the sleep set, marking it as sleeping.
func (s *sleepSet) insert(ctx *Context) {
	ctx.membership.Store(membershipSleep)
	heap.Push(s, ctx)
}

// peekDeadline returns the earliest wake time in the set and whether the
// set is non-empty.
func (s *sleepSet) peekDeadline() (deadline time.Time, ok bool) {
	if len(s.items) == 0 {
		return time.Time{}, false
	}
	return s.items[0].WakeTime(), true
}

// drainExpired removes and returns every entry whose wake time is <= now.
// A plain timed sleep commits via the membership CAS; a context parked in
// an Alt with a timeout instead commits via that Alt's own TryTimeout,
// which is the single atomic decision point racing this timeout against a
// concurrent rendezvous from a peer channel end (spec.md's two-party
// priority rule). Either way, losing the race just drops the entry: the
// heap bookkeeping for it is already done, nothing further is needed.
func (s *sleepSet) drainExpired(now time.Time, out []*Context) []*Context {
	for len(s.items) > 0 && !s.items[0].WakeTime().After(now) {
		ctx := heap.Pop(s).(*Context)
		if h := ctx.Alt(); h != nil {
			if !h.TryTimeout() {
				continue
			}
		} else if !ctx.membership.CompareAndSwap(membershipSleep, membershipReady) {
			continue
		}
		out = append(out, ctx)
	}
	return out
}

// remove removes ctx from the set regardless of position (used when an Alt
// with a timeout is won via the channel-rendezvous path instead of the
// timeout path, so the stale sleep-set entry does not linger).
func (s *sleepSet) remove(ctx *Context) {
	i := ctx.SleepIndex()
	if i < 0 || i >= len(s.items) || s.items[i] != ctx {
		return
	}
	heap.Remove(s, i)
}
