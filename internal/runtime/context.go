// Package runtime implements THE CORE of the procx CSP runtime: process
// contexts, the per-worker scheduler, cross-worker coordination, and the
// lock-free structures that tie them together. It is the Go-native
// re-expression of libproxc's context/scheduler/policy layers (see
// SPEC_FULL.md §0 for why context switching is done via goroutine-baton
// handoff instead of manual stack switching).
package runtime

import (
	"sync/atomic"
	"time"
	"unsafe"

	isync "github.com/joeycumines/procx/internal/sync"
)

// Kind tags what role a Context plays, mirroring spec.md §3's
// {Main, Scheduler, Work} type tag.
type Kind uint8

const (
	// KindMain is the OS thread that first touched the runtime.
	KindMain Kind = iota
	// KindScheduler is a worker's own bookkeeping context (runs the run
	// loop itself; never migrates).
	KindScheduler
	// KindWork is a user-launched, migratable lightweight process.
	KindWork
)

func (k Kind) String() string {
	switch k {
	case KindMain:
		return "main"
	case KindScheduler:
		return "scheduler"
	case KindWork:
		return "work"
	default:
		return "unknown"
	}
}

// AltHandle is the non-generic face a Context shows to the Alt engine
// (which is generic over channel element types and lives in the procx
// package, one level up). It lets the scheduler's sleep-set promotion and
// a peer channel's rendezvous path race for the single atomic commit point
// on an Alt without internal/runtime needing to know about T.
type AltHandle interface {
	// TryTimeout is called by the scheduler when this context's sleep
	// deadline elapses while parked in an Alt. Returns true if this call
	// won the race to decide the Alt's outcome; the scheduler then makes
	// the waiting context runnable.
	TryTimeout() bool
}

// parkMsg is what a Context's goroutine hands back to whichever scheduler
// goroutine resumed it, the instant it reaches a suspension point. It is
// the Go re-expression of spec.md §4.1's tagged resume payload: "schedule
// this other context" and "release this spinlock" are folded into
// scheduleOnPark/unlockOnPark, executed by the scheduler immediately after
// observing the parking context yield — so the lock stays held for the
// entire window between the parking decision and the context switch
// finishing, exactly as the safe-park protocol requires.
type parkMsg struct {
	scheduleOnPark *Context
	unlockOnPark   *isync.Spinlock
	sleepSelf      bool
}

// Context is a single lightweight process: spec.md §3's "Process context".
// Every Context is backed by one real goroutine so it can suspend at an
// arbitrary point (mid channel-send, mid Alt.select); the Scheduler
// ensures only one Context's goroutine is ever actually progressing at a
// time per worker (see doc comment on Scheduler).
type Context struct {
	kind  Kind
	sched *Scheduler
	entry func(*Context)

	terminated atomic.Bool
	wake       time.Time // farFuture until set (newContext initializes it; see WakeTime/SetWakeTime)

	altBox atomic.Pointer[altHolder]

	joinLock isync.Spinlock
	waiters  []*Context // contexts parked in Join(ctx), woken on terminate

	refcount atomic.Int32

	// Intrusive hooks: a Context is a member of at most one of
	// {ready(deque/readylist), work, sleep, terminated}, tracked via the
	// membership field below, which Schedule and the sleep set's
	// promotion step CAS on to decide who makes the context runnable, plus an
	// independent wait-queue membership (the waiters slice above, owned by
	// the context being joined, not by this context).
	membership atomic.Uint32 // membershipNone | membershipReady | ...

	sleepIndex int // heap index, maintained by the sleepSet heap.Interface; -1 when not a member

	mpscNext atomic.Pointer[Context] // remote inbox intrusive hook

	// baton is the single-slot handoff channel: Scheduler.resume sends on
	// it to let this Context run; the Context's goroutine blocks reading
	// it whenever it is not the one currently running.
	baton chan struct{}
	// yielded carries this Context's safe-park instructions, sent by its
	// own goroutine the instant it reaches a suspension point, handing
	// control back to whichever worker goroutine most recently sent a
	// baton (see Scheduler.resume).
	yielded chan parkMsg

	done chan struct{} // closed once terminate() has fully run
}

type altHolder struct{ h AltHandle }

const (
	membershipNone uint32 = iota
	membershipReady
	membershipWork
	membershipSleep
	membershipTerminated
)

// farFuture is used as the "max by default" wake-time sentinel from
// spec.md §3 ("a wake-time point (max by default)").
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

func newContext(kind Kind, sched *Scheduler, entry func(*Context)) *Context {
	c := &Context{
		kind:       kind,
		sched:      sched,
		entry:      entry,
		wake:       farFuture,
		sleepIndex: -1,
		baton:      make(chan struct{}, 1),
		yielded:    make(chan parkMsg),
		done:       make(chan struct{}),
	}
	c.refcount.Store(1)
	return c
}

// ID returns the process identity "derived from its address" (spec.md §3).
func (c *Context) ID() uintptr { return uintptr(unsafe.Pointer(c)) }

// Kind returns the context's type tag.
func (c *Context) Kind() Kind { return c.kind }

// Scheduler returns the owning worker's Scheduler.
func (c *Context) Scheduler() *Scheduler { return c.sched }

// Terminated reports whether the context's entry function has returned.
func (c *Context) Terminated() bool { return c.terminated.Load() }

// WakeTime returns the context's current wake-time-point.
func (c *Context) WakeTime() time.Time { return c.wake }

// SetWakeTime sets the context's wake-time-point (used by the sleep set).
func (c *Context) SetWakeTime(t time.Time) { c.wake = t }

// SleepIndex/SetSleepIndex implement the heap bookkeeping contract used by
// sleepSet (container/heap.Interface needs a way to track each element's
// current slot so concurrent removals stay O(log n)).
func (c *Context) SleepIndex() int        { return c.sleepIndex }
func (c *Context) SetSleepIndex(i int)    { c.sleepIndex = i }

// SetAlt stores the Alt this context currently occupies (nil clears it),
// per spec.md §3's "optional pointer to the Alt it currently occupies".
func (c *Context) SetAlt(h AltHandle) {
	if h == nil {
		c.altBox.Store(nil)
		return
	}
	c.altBox.Store(&altHolder{h: h})
}

// Alt returns the Alt this context currently occupies, or nil.
func (c *Context) Alt() AltHandle {
	if b := c.altBox.Load(); b != nil {
		return b.h
	}
	return nil
}

// mpscNextPtr exposes the intrusive remote-inbox hook to the inbox code
// living alongside the scheduler (kept in this package so the field stays
// unexported outside it; user code never inspects scheduler internals).
func (c *Context) mpscNextPtr() *atomic.Pointer[Context] { return &c.mpscNext }

// Retain increments the shared-ownership refcount (spec.md §3 lifecycle:
// "Work contexts are refcounted and owned jointly by their Process handle
// and any queue they live on").
func (c *Context) Retain() { c.refcount.Add(1) }

// Release decrements the refcount; the scheduler's terminated-set drain
// releases its own reference once a Work context has terminated, and the
// Process handle releases its reference when dropped/joined.
func (c *Context) Release() int32 { return c.refcount.Add(-1) }

// run is the goroutine body for a Work or Main context: it waits for the
// first baton, runs the entry function to completion, then calls
// terminate(). Worker scheduling loops run on plain goroutines instead,
// not inside a Context (see Pool.Start / Pool.Bootstrap).
func (c *Context) run() {
	<-c.baton
	func() {
		defer c.terminate()
		c.entry(c)
	}()
}

// park hands msg to whichever scheduler goroutine is currently inside
// Resume(c, ...), then blocks until that or another scheduler resumes c by
// sending on its baton again. This is the only suspension primitive in the
// whole runtime: channel send/recv, Alt, Join and sleep are all built by
// constructing the right parkMsg and calling park.
func (c *Context) park(msg parkMsg) {
	c.yielded <- msg
	<-c.baton
}

// terminate marks the context terminated, hands it to its scheduler's
// terminated set (whose drain releases the scheduler's reference and
// removes it from the work set once the refcount reaches zero), wakes
// every joiner, and closes done.
func (c *Context) terminate() {
	c.joinLock.Lock()
	c.terminated.Store(true)
	waiters := c.waiters
	c.waiters = nil
	c.joinLock.Unlock()

	c.sched.enqueueTerminated(c)
	for _, w := range waiters {
		w.sched.Schedule(w)
	}

	close(c.done)
	// No parkMsg is sent: the scheduler inside resume observes done
	// closing instead, and this goroutine returns without reading the
	// baton again.
}

// join blocks self until c terminates. The target's joinLock is acquired
// before publishing self on the waiter list and held across self's park
// call (released only once the scheduler running self observes that self
// has actually parked, via parkMsg.unlockOnPark) — this is what prevents
// terminate() from running on c's goroutine, observing self in waiters,
// and scheduling it before self has genuinely suspended.
func (c *Context) join(self *Context) {
	c.joinLock.Lock()
	if c.terminated.Load() {
		c.joinLock.Unlock()
		return
	}
	c.waiters = append(c.waiters, self)
	self.park(parkMsg{unlockOnPark: &c.joinLock})
}

// sleepUntil parks self until its scheduler's sleep-set promotion observes
// wake has elapsed (or, if self currently occupies an Alt, until that
// Alt's TryTimeout wins the race against a rendezvous commit).
func (c *Context) sleepUntil(wake time.Time) {
	c.SetWakeTime(wake)
	c.park(parkMsg{sleepSelf: true})
}

// Yield gives up the worker voluntarily, rejoining the back of its
// scheduler's ready queue (spec.md thisproc.yield).
func (c *Context) Yield() {
	c.park(parkMsg{scheduleOnPark: c})
}

// Join blocks c until target has terminated. A no-op if target is already
// terminated.
func (c *Context) Join(target *Context) {
	target.join(c)
}

// SleepUntil parks c until wake (spec.md thisproc.delay_until / timer
// package), unless c currently occupies an Alt with a competing timeout.
func (c *Context) SleepUntil(wake time.Time) {
	c.sleepUntil(wake)
}

// ParkWithLock parks c, having already published c somewhere reachable by
// a peer while holding lk; lk is released by the scheduler the instant it
// observes c has genuinely parked, closing the publish/park race channel
// and Alt code both depend on.
func (c *Context) ParkWithLock(lk *isync.Spinlock) {
	c.park(parkMsg{unlockOnPark: lk})
}

// ParkAndSchedule parks c and, in the same atomic safe-park step, makes
// other runnable — the rendezvous handoff idiom: "I'm done, you go," used
// when committing a channel send/recv wakes a parked peer.
func (c *Context) ParkAndSchedule(other *Context, lk *isync.Spinlock) {
	c.park(parkMsg{scheduleOnPark: other, unlockOnPark: lk})
}

// Launch starts entry as a new Work Context attached to c's current
// scheduler and makes it runnable, per spec.md process.launch.
func (c *Context) Launch(entry func(*Context)) *Context {
	return c.sched.pool.launch(c, entry)
}
