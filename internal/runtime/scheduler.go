package runtime

import (
	"time"

	"github.com/joeycumines/procx/internal/rtlog"
	isync "github.com/joeycumines/procx/internal/sync"
)

// Scheduler is one worker: a Chase-Lev ready deque it alone pushes/pops
// from the bottom of, a lock-free remote inbox any other worker may push
// onto, and a wake-time-ordered sleep set it alone touches. Exactly one
// goroutine is ever "the" active Context per Scheduler at a time — the
// baton handoff in Context.park/Scheduler.resume enforces that — so most
// of a Scheduler's own state needs no lock at all; mu exists only to
// guard the bits genuinely touched from other goroutines (workSet, written
// by register on whichever goroutine launches a Context, and
// terminatedSet, appended by terminate() running on the terminating
// Context's own goroutine).
type Scheduler struct {
	id    int
	pool  *Pool
	ready *isync.Deque[Context]
	inbox *inbox
	sleep sleepSet

	mu            isync.Spinlock
	workSet       map[uintptr]*Context
	terminatedSet []*Context

	current *Context

	idleSig chan struct{}
}

func newScheduler(pool *Pool, id int) *Scheduler {
	return &Scheduler{
		id:      id,
		pool:    pool,
		ready:   isync.NewDeque[Context](256),
		inbox:   newInbox(),
		workSet: make(map[uintptr]*Context),
		idleSig: make(chan struct{}, 1),
	}
}

// Pool returns the worker pool this Scheduler belongs to.
func (s *Scheduler) Pool() *Pool { return s.pool }

func (s *Scheduler) register(ctx *Context) {
	s.mu.Lock()
	s.workSet[ctx.ID()] = ctx
	s.mu.Unlock()
}

// readyPushLocal pushes a never-before-scheduled Context straight onto
// the local deque, where sibling workers can steal it. Used for the Main
// Context and for freshly launched Work Contexts, which have no prior
// membership state to race against; the caller runs on this Scheduler's
// behalf (its worker goroutine or the Context it is currently resuming).
func (s *Scheduler) readyPushLocal(ctx *Context) {
	ctx.membership.Store(membershipReady)
	s.ready.PushBottom(ctx)
}

// Schedule makes ctx runnable again. Safe to call from any goroutine: it
// only ever mutates shared state through the lock-free inbox and the
// membership CAS, so it never races the single-writer invariant the ready
// deque and sleep set depend on. The owning Scheduler's own run loop
// drains its inbox into its local deque once per tick.
func (s *Scheduler) Schedule(ctx *Context) {
	for {
		old := ctx.membership.Load()
		if old == membershipReady || old == membershipTerminated {
			return
		}
		if ctx.membership.CompareAndSwap(old, membershipReady) {
			break
		}
	}
	owner := ctx.sched
	owner.inbox.Push(ctx)
	owner.pokeIdle()
}

// launch creates and registers a new Work Context under self's current
// scheduler (spec.md §4.2 commit: "attaches to the calling context's own
// current scheduler"), starts its goroutine, and pushes it onto that
// scheduler's ready deque, where idle sibling workers can steal it.
func (p *Pool) launch(self *Context, entry func(*Context)) *Context {
	sched := self.sched
	child := newContext(KindWork, sched, entry)
	sched.register(child)
	go child.run()
	sched.readyPushLocal(child)
	rtlog.Get().Log(rtlog.Entry{
		Level:    rtlog.LevelDebug,
		Category: "process",
		WorkerID: sched.id,
		ProcID:   child.ID(),
		Message:  "launched",
	})
	return child
}

func (s *Scheduler) pokeIdle() {
	select {
	case s.idleSig <- struct{}{}:
	default:
	}
}

// drainInbox moves every remotely-scheduled Context into the local ready
// deque. A Context woken this way may still be sitting in this worker's
// sleep set — e.g. a timed Alt resolved by a channel rendezvous rather
// than its own deadline — so it is evicted from the heap here, the one
// place that is both single-owner for the sleep set and guaranteed to run
// before the Context is ever handed the baton again. sleepSet.remove is a
// no-op if the Context was never a member (SleepIndex defaults to -1).
func (s *Scheduler) drainInbox() {
	for {
		ctx := s.inbox.Pop()
		if ctx == nil {
			return
		}
		s.sleep.remove(ctx)
		s.ready.PushBottom(ctx)
	}
}

func (s *Scheduler) drainTerminated() {
	s.mu.Lock()
	done := s.terminatedSet
	s.terminatedSet = nil
	s.mu.Unlock()
	if len(done) == 0 {
		return
	}
	s.mu.Lock()
	for _, ctx := range done {
		if ctx.Release() <= 0 {
			delete(s.workSet, ctx.ID())
		}
	}
	s.mu.Unlock()
}

// enqueueTerminated records a just-terminated Context for cleanup by this
// Scheduler's own next drainTerminated pass. Called from the terminating
// Context's own goroutine (see Context.terminate).
func (s *Scheduler) enqueueTerminated(ctx *Context) {
	s.mu.Lock()
	s.terminatedSet = append(s.terminatedSet, ctx)
	s.mu.Unlock()
}

func (s *Scheduler) pickNext() *Context {
	if ctx := s.ready.PopBottom(); ctx != nil {
		return ctx
	}
	return s.pool.stealFrom(s)
}

// resume hands the baton to ctx and blocks until it either parks (and
// immediately, atomically, acts on the resulting parkMsg) or terminates
// outright.
func (s *Scheduler) resume(ctx *Context) {
	s.current = ctx
	ctx.sched = s
	// The running context is in no queue; clearing membership lets the next
	// Schedule call (after it parks) make it runnable again.
	ctx.membership.Store(membershipNone)
	ctx.baton <- struct{}{}
	select {
	case msg := <-ctx.yielded:
		s.current = nil
		if msg.unlockOnPark != nil {
			msg.unlockOnPark.Unlock()
		}
		if msg.sleepSelf {
			s.sleep.insert(ctx)
		}
		if msg.scheduleOnPark != nil {
			msg.scheduleOnPark.sched.Schedule(msg.scheduleOnPark)
		}
	case <-ctx.done:
		s.current = nil
	}
}

// tick runs exactly one iteration of the six-step run loop (spec.md
// §4.2): drain terminated contexts, drain the remote inbox, promote
// expired sleepers, pick the next runnable context (local pop, then
// steal), resume it or idle.
func (s *Scheduler) tick() {
	s.drainTerminated()
	s.drainInbox()

	now := time.Now()
	expired := s.sleep.drainExpired(now, nil)
	for _, ctx := range expired {
		s.ready.PushBottom(ctx)
	}

	next := s.pickNext()
	if next == nil {
		s.idle(now)
		return
	}
	s.resume(next)
}

// idle parks the worker goroutine itself until either poked (new remote
// work, or a steal candidate freshly published) or the earliest sleeping
// context's deadline elapses, whichever comes first.
func (s *Scheduler) idle(now time.Time) {
	wake, ok := s.sleep.peekDeadline()
	if !ok {
		select {
		case <-s.idleSig:
		case <-time.After(10 * time.Millisecond):
		}
		return
	}
	d := wake.Sub(now)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.idleSig:
	case <-timer.C:
	}
}

// runLoop drives this Scheduler until the Pool signals exit. Used by
// every worker except worker 0, which is driven directly by Pool.Bootstrap
// on the thread that called it.
func (s *Scheduler) runLoop() {
	for !s.pool.exit.Load() {
		s.tick()
	}
}

// runUntil drives this Scheduler's tick loop until done reports true.
func (s *Scheduler) runUntil(done func() bool) {
	for !done() {
		s.tick()
	}
}
