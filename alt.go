// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package procx

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/procx/internal/runtime"
)

// commitResult is the single outcome an Alt ever settles on. Exactly one
// of a channel rendezvous, a channel close, or a timeout produces it.
type commitResult struct {
	index    int
	value    any
	closed   bool
	timedOut bool
}

// altState is the shared commit point a single Alt call exposes to every
// channel it has a pending offer on, and to the scheduler's sleep-set
// timeout path. It implements runtime.AltHandle.
type altState struct {
	committed atomic.Pointer[commitResult]
}

func (a *altState) tryCommit(index int, value any) bool {
	return a.committed.CompareAndSwap(nil, &commitResult{index: index, value: value})
}

func (a *altState) tryCommitClosed(index int) bool {
	return a.committed.CompareAndSwap(nil, &commitResult{index: index, closed: true})
}

// TryTimeout implements runtime.AltHandle: called by the owning
// scheduler's sleep-set promotion when this Alt's deadline elapses.
func (a *altState) TryTimeout(index int) bool {
	return a.committed.CompareAndSwap(nil, &commitResult{index: index, timedOut: true})
}

// timeoutHandle adapts a fixed index into the runtime.AltHandle shape the
// scheduler calls with no arguments.
type timeoutHandle struct {
	alt *altState
	idx int
}

func (h timeoutHandle) TryTimeout() bool { return h.alt.TryTimeout(h.idx) }

// Choice is one guarded alternative in an Alt: a channel operation (Send
// or Recv), a Timeout, or Skip. Build one with SendCase, RecvCase,
// TimeoutCase or SkipCase and pass it to NewAlt. There are no separate
// send_if/recv_if/skip_if/timeout_if constructors: conditionally including
// a case is just conditionally appending to the slice passed to NewAlt.
type Choice struct {
	tryNow    func(self *runtime.Context, alt *altState, idx int) bool
	register  func(self *runtime.Context, alt *altState, idx int) any
	cancel    func(token any)
	extract   func(cr *commitResult) any
	clashKey  any
	isTimeout bool
	duration  time.Duration
}

// SendCase builds a Choice that offers to send v on tx.
func SendCase[T any](tx Tx[T], v T) Choice {
	ch := tx.ch
	return Choice{
		tryNow: func(self *runtime.Context, alt *altState, idx int) bool {
			return ch.altOfferSend(self, alt, idx, v)
		},
		register: func(self *runtime.Context, alt *altState, idx int) any {
			return ch.altRegisterSend(self, alt, idx, v)
		},
		cancel:   func(token any) { ch.altWithdrawSend(token) },
		extract:  func(*commitResult) any { return nil },
		clashKey: ch,
	}
}

// RecvCase builds a Choice that offers to receive from rx.
func RecvCase[T any](rx Rx[T]) Choice {
	ch := rx.ch
	return Choice{
		tryNow: func(self *runtime.Context, alt *altState, idx int) bool {
			return ch.altOfferRecv(self, alt, idx)
		},
		register: func(self *runtime.Context, alt *altState, idx int) any {
			return ch.altRegisterRecv(self, alt, idx)
		},
		cancel: func(token any) { ch.altWithdrawRecv(token) },
		extract: func(cr *commitResult) any {
			v, _ := cr.value.(T)
			return v
		},
		clashKey: ch,
	}
}

// SkipCase builds a Choice that is always immediately ready. Ordered
// last, it behaves as an else-branch; ordered earlier, per spec.md's
// "guards evaluated in order, first ready wins" rule it preempts anything
// after it.
func SkipCase() Choice {
	return Choice{
		tryNow: func(self *runtime.Context, alt *altState, idx int) bool {
			return alt.tryCommit(idx, nil)
		},
		register: func(self *runtime.Context, alt *altState, idx int) any { return nil },
		cancel:   func(any) {},
		extract:  func(*commitResult) any { return nil },
	}
}

// TimeoutCase builds a Choice that fires once d has elapsed with no other
// guard ready. Multiple TimeoutCase entries in the same Alt resolve to
// whichever has the shortest remaining duration.
func TimeoutCase(d time.Duration) Choice {
	return Choice{
		tryNow:    func(self *runtime.Context, alt *altState, idx int) bool { return false },
		register:  func(self *runtime.Context, alt *altState, idx int) any { return nil },
		cancel:    func(any) {},
		extract:   func(*commitResult) any { return nil },
		isTimeout: true,
		duration:  d,
	}
}

// Alt is a guarded choice among channel operations, built once and
// Select-ed (spec.md §4.5/§4.6: two-party Alt synchronization). Building
// an Alt with zero cases is a programmer error.
type Alt struct {
	cases []Choice
}

// NewAlt builds an Alt over the given cases, evaluated in the order
// given on every non-blocking scan.
func NewAlt(cases ...Choice) *Alt {
	if len(cases) == 0 {
		panic(newRuntimeError("NewAlt", "an Alt needs at least one case"))
	}
	return &Alt{cases: cases}
}

// Select blocks self until exactly one case commits: a channel
// rendezvous, a channel closing, a SkipCase, or a TimeoutCase elapsing. It
// returns the winning case's index, the delivered value (nil for Send,
// Skip and Timeout cases and for a Closed outcome), and the Result. With
// no TimeoutCase and no case able to commit, Select stays parked until
// one can. If it ever returns with no case committed, the index is -1 and
// the Result is WouldBlock.
func (a *Alt) Select(self *runtime.Context) (index int, value any, result Result) {
	st := &altState{}

	// Clash rule: if the same channel appears in more than one case, in
	// either direction, only the first occurrence is eligible (spec.md's
	// clash semantics).
	seen := make(map[any]bool, len(a.cases))
	eligible := make([]bool, len(a.cases))
	for i, c := range a.cases {
		if c.clashKey == nil {
			eligible[i] = true
			continue
		}
		if seen[c.clashKey] {
			eligible[i] = false
			continue
		}
		seen[c.clashKey] = true
		eligible[i] = true
	}

	deadline, timeoutIdx, hasDeadline := a.shortestTimeout()

	for i, c := range a.cases {
		if !eligible[i] || c.isTimeout {
			continue
		}
		if c.tryNow(self, st, i) {
			return a.finish(st.committed.Load())
		}
	}

	// Registration itself now rescans its channel's opposite queue before
	// falling back to enqueueing (see altRegisterSend/Recv), so a case can
	// win right here. Stop registering further cases the moment that
	// happens: a later case's register call would otherwise still run its
	// own scan-and-commit-or-enqueue and could match a second, unrelated
	// peer even though this Alt has already settled on a winner.
	tokens := make([]any, len(a.cases))
	for i, c := range a.cases {
		if !eligible[i] || c.isTimeout {
			continue
		}
		tokens[i] = c.register(self, st, i)
		if st.committed.Load() != nil {
			break
		}
	}

	// A case may have matched synchronously inside register (self made the
	// commit and got a nil token back), in which case there is nothing to
	// park for: nobody is going to call Schedule on self. A commit on a case
	// that did enqueue a party was made by a peer, which always calls
	// Schedule on self afterwards, so self parks to consume that wake-up
	// even when the commit is already visible here.
	if cr := st.committed.Load(); cr == nil || tokens[cr.index] != nil {
		if hasDeadline {
			self.SetAlt(timeoutHandle{alt: st, idx: timeoutIdx})
			self.SleepUntil(deadline)
			self.SetAlt(nil)
		} else {
			self.ParkWithLock(nil)
		}
	}

	for i, tok := range tokens {
		if tok == nil {
			continue
		}
		a.cases[i].cancel(tok)
	}

	return a.finish(st.committed.Load())
}

// shortestTimeout finds the smallest TimeoutCase duration among cases, if
// any, converted to an absolute deadline at call time.
func (a *Alt) shortestTimeout() (deadline time.Time, idx int, ok bool) {
	best := time.Duration(-1)
	bestIdx := -1
	for i, c := range a.cases {
		if !c.isTimeout {
			continue
		}
		if best < 0 || c.duration < best {
			best = c.duration
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return time.Time{}, -1, false
	}
	return time.Now().Add(best), bestIdx, true
}

func (a *Alt) finish(cr *commitResult) (int, any, Result) {
	switch {
	case cr == nil:
		return -1, nil, WouldBlock
	case cr.timedOut:
		return cr.index, nil, Timeout
	case cr.closed:
		return cr.index, nil, Closed
	default:
		return cr.index, a.cases[cr.index].extract(cr), Ok
	}
}
