// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package procx

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunch_JoinWaitsForCompletion(t *testing.T) {
	t.Parallel()

	bootstrap(t, 2, func(main *Proc) {
		var ran atomic.Bool
		p := Launch(main, func(c *Proc) { ran.Store(true) })
		p.Join(main)
		assert.True(t, ran.Load())
	})
}

func TestLaunch_IDIsStableAndUnique(t *testing.T) {
	t.Parallel()

	bootstrap(t, 2, func(main *Proc) {
		a := Launch(main, func(c *Proc) {})
		b := Launch(main, func(c *Proc) {})
		assert.NotEqual(t, a.ID(), b.ID())
		a.Join(main)
		b.Join(main)
	})
}

func TestProcess_Detach(t *testing.T) {
	t.Parallel()

	bootstrap(t, 2, func(main *Proc) {
		done := make(chan struct{})
		Launch(main, func(c *Proc) { close(done) }).Detach()
		<-done
	})
}

func TestParallel_RunsAllAndReturnsNilOnSuccess(t *testing.T) {
	t.Parallel()

	bootstrap(t, 4, func(main *Proc) {
		var count atomic.Int64
		err := Parallel(main,
			func(p *Proc) error { count.Add(1); return nil },
			func(p *Proc) error { count.Add(1); return nil },
			func(p *Proc) error { count.Add(1); return nil },
		)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count.Load())
	})
}

func TestParallel_NoFunctionsReturnsNilImmediately(t *testing.T) {
	t.Parallel()

	bootstrap(t, 1, func(main *Proc) {
		assert.NoError(t, Parallel(main))
	})
}

func TestParallel_ReturnsFirstErrorEncountered(t *testing.T) {
	t.Parallel()

	bootstrap(t, 4, func(main *Proc) {
		boom := errors.New("boom")
		err := Parallel(main,
			func(p *Proc) error { return nil },
			func(p *Proc) error { return boom },
			func(p *Proc) error { return nil },
		)
		require.Error(t, err)
		assert.Same(t, boom, err)
	})
}

func TestParallel_AllErrorsStillLetsEveryChildRun(t *testing.T) {
	t.Parallel()

	bootstrap(t, 4, func(main *Proc) {
		var ran atomic.Int64
		fns := make([]func(*Proc) error, 20)
		for i := range fns {
			fns[i] = func(p *Proc) error {
				ran.Add(1)
				return errors.New("fail")
			}
		}
		err := Parallel(main, fns...)
		require.Error(t, err)
		assert.EqualValues(t, 20, ran.Load())
	})
}

func TestParallel_BoundsConcurrencyButCompletesAll(t *testing.T) {
	t.Parallel()

	bootstrap(t, 4, func(main *Proc) {
		const n = 50
		var inFlight, maxInFlight atomic.Int64
		fns := make([]func(*Proc) error, n)
		for i := range fns {
			fns[i] = func(p *Proc) error {
				cur := inFlight.Add(1)
				for {
					m := maxInFlight.Load()
					if cur <= m || maxInFlight.CompareAndSwap(m, cur) {
						break
					}
				}
				p.Yield()
				inFlight.Add(-1)
				return nil
			}
		}
		require.NoError(t, Parallel(main, fns...))
		assert.LessOrEqual(t, maxInFlight.Load(), int64(parallelLaunchConcurrency))
	})
}

func TestSpawn_FireAndForgetRuns(t *testing.T) {
	t.Parallel()

	bootstrap(t, 2, func(main *Proc) {
		done := make(chan struct{})
		Spawn(main, func(p *Proc) { close(done) })
		<-done
	})
}

func TestProcFor_LaunchesOnePerItem(t *testing.T) {
	t.Parallel()

	bootstrap(t, 4, func(main *Proc) {
		items := []int{1, 2, 3, 4, 5}
		var sum atomic.Int64
		procs := ProcFor(main, items, func(p *Proc, item int) {
			sum.Add(int64(item))
		})
		require.Len(t, procs, len(items))
		for _, p := range procs {
			p.Join(main)
		}
		assert.EqualValues(t, 15, sum.Load())
	})
}
