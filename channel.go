// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package procx

import (
	"iter"
	"time"

	"github.com/joeycumines/procx/internal/runtime"
	isync "github.com/joeycumines/procx/internal/sync"
)

// partyKind tags whether a channel queue entry represents a plain,
// single-channel blocking operation or one leg of a multi-channel Alt.
type partyKind uint8

const (
	partyPlain partyKind = iota
	partyAlt
)

// party is one context's pending offer to rendezvous on a channel. Plain
// sends/recvs create one, park, and read it back once woken. Alt cases
// create one per candidate channel and register it on every one of them
// simultaneously; whichever channel rendezvous wins races the others via
// alt.tryCommit, so at most one ever completes.
type party[T any] struct {
	ctx   *runtime.Context
	kind  partyKind
	alt   *altState
	altIx int
	value T
	ok    bool
}

// Chan is a synchronous (unbuffered) rendezvous channel: spec.md's core
// channel type. A send and a recv only ever complete together — there is
// no internal buffer, so Create returns a channel that is ready to pair
// sends and recvs the instant both ends have a pending party.
type Chan[T any] struct {
	mu     isync.Spinlock
	closed bool
	sendQ  []*party[T]
	recvQ  []*party[T]
}

// Tx is the send-only end of a Chan (spec.md's ChanEnd descriptor,
// send direction). Passing a Rx where a Tx is expected is a compile error,
// not a runtime one.
type Tx[T any] struct{ ch *Chan[T] }

// Rx is the recv-only end of a Chan.
type Rx[T any] struct{ ch *Chan[T] }

// Create allocates a new channel and returns its two ends.
func Create[T any]() (Tx[T], Rx[T]) {
	ch := &Chan[T]{}
	return Tx[T]{ch}, Rx[T]{ch}
}

// CreateN allocates n independent channels of the same element type at
// once, a convenience for topologies (pipelines, fan-out rings) that need
// a whole slice of them.
func CreateN[T any](n int) ([]Tx[T], []Rx[T]) {
	txs := make([]Tx[T], n)
	rxs := make([]Rx[T], n)
	for i := 0; i < n; i++ {
		txs[i], rxs[i] = Create[T]()
	}
	return txs, rxs
}

// Send blocks self until a receiver rendezvouses (Ok) or the channel is
// closed (Closed).
func (tx Tx[T]) Send(self *runtime.Context, v T) Result {
	return tx.ch.send(self, v)
}

// Close marks the channel closed. Every party currently parked on either
// end wakes with Closed. Closing an already-closed channel panics with a
// RuntimeError (spec.md treats double-close as a programmer error).
func (tx Tx[T]) Close() { tx.ch.close() }

// Recv blocks self until a sender rendezvouses or the channel closes.
func (rx Rx[T]) Recv(self *runtime.Context) (T, Result) {
	return rx.ch.recv(self)
}

// IsClosed reports whether the channel has been closed. Since a
// synchronous channel has no buffer, a false result is only a snapshot:
// another goroutine may close it the instant after this returns.
func (tx Tx[T]) IsClosed() bool { return tx.ch.isClosed() }

// IsClosed reports whether the channel has been closed (see Tx.IsClosed).
func (rx Rx[T]) IsClosed() bool { return rx.ch.isClosed() }

// SendUntil is Send with a deadline: it returns Timeout if no receiver
// rendezvouses (and the channel does not close) before deadline.
func (tx Tx[T]) SendUntil(self *runtime.Context, v T, deadline time.Time) Result {
	_, _, res := NewAlt(SendCase(tx, v), TimeoutCase(time.Until(deadline))).Select(self)
	return res
}

// SendFor is SendUntil relative to now.
func (tx Tx[T]) SendFor(self *runtime.Context, v T, d time.Duration) Result {
	return tx.SendUntil(self, v, time.Now().Add(d))
}

// RecvUntil is Recv with a deadline: it returns Timeout if no sender
// rendezvouses (and the channel does not close) before deadline.
func (rx Rx[T]) RecvUntil(self *runtime.Context, deadline time.Time) (T, Result) {
	_, v, res := NewAlt(RecvCase(rx), TimeoutCase(time.Until(deadline))).Select(self)
	out, _ := v.(T)
	return out, res
}

// RecvFor is RecvUntil relative to now.
func (rx Rx[T]) RecvFor(self *runtime.Context, d time.Duration) (T, Result) {
	return rx.RecvUntil(self, time.Now().Add(d))
}

// All returns a lazy iterator (range-over-func) over every value received
// on rx, stopping once the channel closes. A break out of the range loop
// simply stops receiving; values already in flight are not un-sent.
func (rx Rx[T]) All(self *runtime.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, res := rx.ch.recv(self)
			if res != Ok {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

func (c *Chan[T]) send(self *runtime.Context, v T) Result {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Closed
	}
	for len(c.recvQ) > 0 {
		rp := c.recvQ[0]
		c.recvQ = c.recvQ[1:]
		if rp.kind == partyAlt {
			if !rp.alt.tryCommit(rp.altIx, v) {
				continue
			}
		}
		rp.value = v
		rp.ok = true
		c.mu.Unlock()
		rp.ctx.Scheduler().Schedule(rp.ctx)
		return Ok
	}
	sp := &party[T]{ctx: self, kind: partyPlain, value: v}
	c.sendQ = append(c.sendQ, sp)
	self.ParkWithLock(&c.mu)
	if sp.ok {
		return Ok
	}
	return Closed
}

func (c *Chan[T]) recv(self *runtime.Context) (T, Result) {
	c.mu.Lock()
	for len(c.sendQ) > 0 {
		sp := c.sendQ[0]
		c.sendQ = c.sendQ[1:]
		if sp.kind == partyAlt {
			if !sp.alt.tryCommit(sp.altIx, sp.value) {
				continue
			}
		}
		v := sp.value
		sp.ok = true
		c.mu.Unlock()
		sp.ctx.Scheduler().Schedule(sp.ctx)
		return v, Ok
	}
	if c.closed {
		c.mu.Unlock()
		var zero T
		return zero, Closed
	}
	rp := &party[T]{ctx: self, kind: partyPlain}
	c.recvQ = append(c.recvQ, rp)
	self.ParkWithLock(&c.mu)
	if rp.ok {
		return rp.value, Ok
	}
	var zero T
	return zero, Closed
}

func (c *Chan[T]) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Chan[T]) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		panic(newRuntimeError("Close", "channel already closed"))
	}
	c.closed = true
	sendWaiters := c.sendQ
	recvWaiters := c.recvQ
	c.sendQ = nil
	c.recvQ = nil
	c.mu.Unlock()

	for _, p := range sendWaiters {
		if p.kind == partyAlt && !p.alt.tryCommitClosed(p.altIx) {
			continue
		}
		p.ctx.Scheduler().Schedule(p.ctx)
	}
	for _, p := range recvWaiters {
		if p.kind == partyAlt && !p.alt.tryCommitClosed(p.altIx) {
			continue
		}
		p.ctx.Scheduler().Schedule(p.ctx)
	}
}

// --- Alt-engine hooks (used only by alt.go; see Choice constructors) ---

func (c *Chan[T]) altOfferSend(self *runtime.Context, alt *altState, idx int, v T) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return alt.tryCommitClosed(idx)
	}
	for len(c.recvQ) > 0 {
		rp := c.recvQ[0]
		c.recvQ = c.recvQ[1:]
		if rp.kind == partyAlt {
			if !rp.alt.tryCommit(rp.altIx, v) {
				continue
			}
		}
		rp.value = v
		rp.ok = true
		c.mu.Unlock()
		// alt is not yet registered anywhere else at this point in the
		// scan (see alt.go), so this commit cannot lose the race.
		alt.tryCommit(idx, nil)
		rp.ctx.Scheduler().Schedule(rp.ctx)
		return true
	}
	c.mu.Unlock()
	return false
}

// altRegisterSend publishes self's offer to send v and, under the very
// same lock hold, scans recvQ one more time for a peer that arrived in the
// window since altOfferSend's scan. Without this the two scans (offer,
// then a blind append) leave a gap in which two Alts racing in opposite
// directions on the same channel can both register and never be woken by
// each other (spec.md §4.6's select_n publishes its offer and rescans
// before ever parking; a bare append does not). Only falls back to
// enqueuing if no peer is found.
func (c *Chan[T]) altRegisterSend(self *runtime.Context, alt *altState, idx int, v T) any {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		alt.tryCommitClosed(idx)
		return nil
	}
	for len(c.recvQ) > 0 {
		rp := c.recvQ[0]
		c.recvQ = c.recvQ[1:]
		if rp.kind == partyAlt {
			if !rp.alt.tryCommit(rp.altIx, v) {
				continue
			}
		}
		rp.value = v
		rp.ok = true
		c.mu.Unlock()
		alt.tryCommit(idx, nil)
		rp.ctx.Scheduler().Schedule(rp.ctx)
		return nil
	}
	p := &party[T]{ctx: self, kind: partyAlt, alt: alt, altIx: idx, value: v}
	c.sendQ = append(c.sendQ, p)
	c.mu.Unlock()
	return p
}

func (c *Chan[T]) altWithdrawSend(token any) {
	p, _ := token.(*party[T])
	if p == nil {
		return
	}
	c.mu.Lock()
	for i, q := range c.sendQ {
		if q == p {
			c.sendQ = append(c.sendQ[:i], c.sendQ[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
}

func (c *Chan[T]) altOfferRecv(self *runtime.Context, alt *altState, idx int) bool {
	c.mu.Lock()
	for len(c.sendQ) > 0 {
		sp := c.sendQ[0]
		c.sendQ = c.sendQ[1:]
		if sp.kind == partyAlt {
			if !sp.alt.tryCommit(sp.altIx, sp.value) {
				continue
			}
		}
		v := sp.value
		sp.ok = true
		c.mu.Unlock()
		alt.tryCommit(idx, v)
		sp.ctx.Scheduler().Schedule(sp.ctx)
		return true
	}
	if c.closed {
		c.mu.Unlock()
		return alt.tryCommitClosed(idx)
	}
	c.mu.Unlock()
	return false
}

// altRegisterRecv is altRegisterSend's mirror image for the recv side; see
// its doc comment for why the scan and the enqueue share one lock hold.
func (c *Chan[T]) altRegisterRecv(self *runtime.Context, alt *altState, idx int) any {
	c.mu.Lock()
	for len(c.sendQ) > 0 {
		sp := c.sendQ[0]
		c.sendQ = c.sendQ[1:]
		if sp.kind == partyAlt {
			if !sp.alt.tryCommit(sp.altIx, sp.value) {
				continue
			}
		}
		v := sp.value
		sp.ok = true
		c.mu.Unlock()
		alt.tryCommit(idx, v)
		sp.ctx.Scheduler().Schedule(sp.ctx)
		return nil
	}
	if c.closed {
		c.mu.Unlock()
		alt.tryCommitClosed(idx)
		return nil
	}
	p := &party[T]{ctx: self, kind: partyAlt, alt: alt, altIx: idx}
	c.recvQ = append(c.recvQ, p)
	c.mu.Unlock()
	return p
}

func (c *Chan[T]) altWithdrawRecv(token any) {
	p, _ := token.(*party[T])
	if p == nil {
		return
	}
	c.mu.Lock()
	for i, q := range c.recvQ {
		if q == p {
			c.recvQ = append(c.recvQ[:i], c.recvQ[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
}
