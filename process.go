// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package procx

import (
	"github.com/joeycumines/procx/internal/runtime"
	"golang.org/x/sync/semaphore"
)

// parallelLaunchConcurrency bounds how many of Parallel's children may be
// running at once, the same way startupConcurrency bounds worker spawn —
// keeps a Parallel over a large fn slice from flooding every worker's
// ready queue in one burst.
const parallelLaunchConcurrency = 8

// Process is a handle to a launched Work Context, returned by Launch. It
// carries the refcount share spec.md §3 assigns the launching side: call
// Join or Detach exactly once to release it.
type Process struct {
	ctx *runtime.Context
}

// Launch starts entry as a new Work Process scheduled on self's worker,
// returning a handle self must eventually Join or Detach.
func Launch(self *Proc, entry func(*Proc)) *Process {
	return &Process{ctx: self.Launch(entry)}
}

// ID returns the process's identity, stable for its lifetime.
func (p *Process) ID() uintptr { return p.ctx.ID() }

// Join blocks self until p terminates, then releases self's reference to
// it. A Process may only be Joined (or Detached) once.
func (p *Process) Join(self *Proc) {
	self.Join(p.ctx)
	p.ctx.Release()
}

// Detach releases self's reference to p without waiting for it to
// terminate — spec.md's fire-and-forget launch, for children whose
// completion the caller never needs to observe.
func (p *Process) Detach() {
	p.ctx.Release()
}

// Parallel launches one child Process per fn, waits for all of them to
// terminate, and returns the first non-nil error any of them returned (in
// completion order, not fn order). The number of children running their
// fn at once is bounded by a semaphore so a large fns slice doesn't flood
// self's worker with runnable work all at once.
//
// self's own goroutine never calls a blocking Acquire: a real blocking
// call here would stall this worker's baton-holding goroutine outside the
// park protocol every other operation in this package goes through.
// Instead self polls TryAcquire and cooperatively Yields between
// attempts, the same spin-then-yield shape internal/sync's spinlock uses
// under contention.
func Parallel(self *Proc, fns ...func(*Proc) error) error {
	if len(fns) == 0 {
		return nil
	}

	tx, rx := Create[error]()
	sem := semaphore.NewWeighted(int64(min(parallelLaunchConcurrency, len(fns))))

	for _, fn := range fns {
		fn := fn
		for !sem.TryAcquire(1) {
			self.Yield()
		}
		Launch(self, func(p *Proc) {
			err := fn(p)
			// Release before Send: Send waits for the Recv loop below,
			// which only starts once every child has been launched.
			sem.Release(1)
			tx.Send(p, err)
		}).Detach()
	}

	var firstErr error
	for range fns {
		if err, _ := rx.Recv(self); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Spawn launches fn as a detached Process, for fire-and-forget work whose
// handle and completion the caller has no interest in.
func Spawn(self *Proc, fn func(*Proc)) {
	Launch(self, fn).Detach()
}

// ProcFor launches one child Process per item, applying fn to the item
// and that child's own Proc, and returns their handles without waiting —
// for topologies that want per-item Processes but their own Join/Detach
// policy rather than Parallel's built-in barrier.
func ProcFor[T any](self *Proc, items []T, fn func(p *Proc, item T)) []*Process {
	procs := make([]*Process, len(items))
	for i, item := range items {
		item := item
		procs[i] = Launch(self, func(p *Proc) { fn(p, item) })
	}
	return procs
}
