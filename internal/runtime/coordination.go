package runtime

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/procx/internal/rtlog"
	isync "github.com/joeycumines/procx/internal/sync"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// startupConcurrency bounds how many worker goroutines may simultaneously
// be inside runtime.LockOSThread during pool startup, avoiding a
// thundering herd of OS thread creation on large-NumCPU machines.
const startupConcurrency = 4

// Config controls Pool construction. The procx package's public
// SchedulerOption translates down to this; kept in an internal package so
// internal/runtime stays free to change its shape independently of the
// public API surface (spec.md §3: "the construction policy is an
// implementation detail, not part of the public contract").
type Config struct {
	Workers    int // total worker OS threads, including the bootstrapping one; <=0 means runtime.NumCPU()
	SpinBudget int // stored only; no scheduler, idle or spinlock code reads it
	OnLog      func(event string, fields map[string]any)
}

// Pool is the fixed-size collection of workers a procx.Runtime bootstraps
// on first use, mirroring spec.md §4.3: "runtime.NumCPU() probed once;
// N-1 additional OS-thread-locked workers spawned lazily on first use,
// alongside the bootstrapping (main) thread's own worker."
type Pool struct {
	cfg       Config
	workers   []*Scheduler
	spawnOnce sync.Once
	workersEG *errgroup.Group
	rngMu     isync.Spinlock
	rng       *rand.Rand
	mainCtx   *Context
	exit      atomic.Bool
}

// NewPool constructs a Pool sized per cfg but does not start any worker
// threads beyond the bootstrapping one; additional workers are spawned by
// Start, which Bootstrap calls (and which runs only once per Pool).
func NewPool(cfg Config) *Pool {
	n := cfg.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	cfg.Workers = n
	p := &Pool{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	p.workers = make([]*Scheduler, n)
	for i := range p.workers {
		p.workers[i] = newScheduler(p, i)
	}
	return p
}

// Start spawns the N-1 extra OS-thread-locked workers (worker 0 is driven
// by whichever goroutine calls Bootstrap), bounding how many may acquire
// their OS thread lock concurrently with a semaphore, and blocks until all
// have entered their run loop — the same shape as the source runtime's
// worker spawn barrier. The spawned goroutines themselves are tracked by
// an errgroup.Group so Bootstrap can wait for them to actually retire at
// shutdown, rather than merely having started.
func (p *Pool) Start() {
	p.spawnOnce.Do(func() {
		g := new(errgroup.Group)
		p.workersEG = g
		sem := semaphore.NewWeighted(int64(min(startupConcurrency, len(p.workers))))
		ready := make(chan struct{}, len(p.workers)-1)
		ctx := context.Background()
		for i := 1; i < len(p.workers); i++ {
			w := p.workers[i]
			g.Go(func() error {
				if err := sem.Acquire(ctx, 1); err != nil {
					return err
				}
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
				sem.Release(1)
				ready <- struct{}{}
				w.runLoop()
				return nil
			})
		}
		for i := 1; i < len(p.workers); i++ {
			<-ready
		}
		rtlog.Get().Log(rtlog.Entry{
			Level:    rtlog.LevelInfo,
			Category: "scheduler",
			Message:  "worker pool started",
			Fields:   map[string]any{"workers": len(p.workers)},
		})
	})
}

// Bootstrap runs worker 0's loop on the calling goroutine after launching
// entry as the Main context (spec.md §3's Main context: "the OS thread
// that first touched the runtime"). It returns once the Main context has
// terminated and the other workers have left their run loops; Contexts
// that entry launched but never joined are not waited for.
func (p *Pool) Bootstrap(entry func(*Context)) {
	p.Start()
	w := p.workers[0]
	main := newContext(KindMain, w, entry)
	p.mainCtx = main
	w.register(main)
	go main.run()
	w.readyPushLocal(main)
	w.runUntil(main.Terminated)
	p.exit.Store(true)
	p.wakeAllIdle()
	if p.workersEG != nil {
		_ = p.workersEG.Wait()
	}
	rtlog.Get().Log(rtlog.Entry{
		Level:    rtlog.LevelInfo,
		Category: "scheduler",
		Message:  "main context terminated, shutting down",
	})
}

func (p *Pool) worker(i int) *Scheduler { return p.workers[i%len(p.workers)] }

// stealFrom tries every other worker once, in a random rotation, looking
// for a Context to steal (spec.md §4.3's work-stealing pick_next fallback).
func (p *Pool) stealFrom(self *Scheduler) *Context {
	n := len(p.workers)
	if n <= 1 {
		return nil
	}
	p.rngMu.Lock()
	start := p.rng.Intn(n)
	p.rngMu.Unlock()
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		peer := p.workers[idx]
		if peer == self {
			continue
		}
		if ctx := peer.ready.Steal(); ctx != nil {
			return ctx
		}
	}
	return nil
}

// wakeAllIdle pokes every worker out of idle, used at shutdown so each
// one notices the exit flag promptly instead of only on its own
// idle-timer tick.
func (p *Pool) wakeAllIdle() {
	for _, w := range p.workers {
		w.pokeIdle()
	}
}
