// Package sync provides the lock-free and low-level synchronization
// primitives shared by the scheduler, channel and Alt engine: an adaptive
// spinlock and a Chase-Lev work-stealing deque. (The Vyukov intrusive MPSC
// inbox and the wake-time-ordered sleep set live in internal/runtime.)
package sync

import (
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"
)

// maxSpinTests caps how many runtime.Gosched wait iterations Lock makes
// before backing off to time.Sleep(0), mirroring the MAX_TESTS bound used
// by the source runtime's detail::Spinlock.
const maxSpinTests = 100

// Spinlock is an adaptive test-and-test-and-set spinlock. Its zero value
// is ready to use — collision backoff jitter is drawn from math/rand's
// global, auto-seeded source rather than a per-instance one, so no
// constructor is needed. It tracks a running average of how many wait
// iterations were needed to acquire the lock (prevTests) and uses that to
// size the next bounded wait, each iteration of which yields with
// runtime.Gosched; once the adaptive bound is exceeded each iteration
// calls time.Sleep(0) instead (the analogue of sleep_for(0)). On a
// failed acquisition it performs a short randomized exponential backoff
// before retrying, so that threads racing for the same lock desynchronize
// instead of retriggering a cache-line thundering herd.
type Spinlock struct {
	locked    atomic.Bool
	prevTests atomic.Uint64
}

// Lock blocks until the lock is acquired.
func (s *Spinlock) Lock() {
	var collisions uint64
	for {
		var tests uint64
		prevTests := s.prevTests.Load()
		maxTests := uint64(maxSpinTests)
		if alt := 2*prevTests + 10; alt < maxTests {
			maxTests = alt
		}

		for s.locked.Load() {
			if tests < maxTests {
				tests++
				runtime.Gosched()
			} else {
				tests++
				time.Sleep(0)
			}
		}

		if s.locked.Swap(true) {
			// Lost the race: another goroutine locked it between our load and
			// our swap. Back off by a random number of relaxations bounded by
			// 2^collisions, same shape as the source's distr(rng) backoff.
			span := uint64(1) << minUint64(collisions, 20)
			z := rand.Uint64() % (span + 1)
			collisions++
			for i := uint64(0); i < z; i++ {
				runtime.Gosched()
			}
			continue
		}

		s.prevTests.Store(uint64(int64(prevTests) + (int64(tests)-int64(prevTests))/8))
		return
	}
}

// TryLock attempts to acquire the lock without blocking.
func (s *Spinlock) TryLock() bool {
	return !s.locked.Swap(true)
}

// Unlock releases the lock. The caller must hold it.
func (s *Spinlock) Unlock() {
	s.locked.Store(false)
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
