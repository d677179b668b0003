package runtime

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_BootstrapRunsMainToCompletion(t *testing.T) {
	t.Parallel()

	p := NewPool(Config{Workers: 2})
	var ran atomic.Bool
	p.Bootstrap(func(c *Context) {
		ran.Store(true)
	})
	assert.True(t, ran.Load())
}

func TestContext_LaunchAndJoin(t *testing.T) {
	t.Parallel()

	p := NewPool(Config{Workers: 2})
	var childRan atomic.Bool
	p.Bootstrap(func(main *Context) {
		child := main.Launch(func(c *Context) {
			childRan.Store(true)
		})
		main.Join(child)
		assert.True(t, childRan.Load())
	})
}

func TestContext_JoinAlreadyTerminatedReturnsImmediately(t *testing.T) {
	t.Parallel()

	p := NewPool(Config{Workers: 2})
	p.Bootstrap(func(main *Context) {
		child := main.Launch(func(c *Context) {})
		main.Join(child)
		// child is now terminated; a second Join must not block.
		main.Join(child)
	})
}

func TestContext_JoinManyWaiters(t *testing.T) {
	t.Parallel()

	p := NewPool(Config{Workers: 4})
	p.Bootstrap(func(main *Context) {
		target := main.Launch(func(c *Context) {
			c.SleepUntil(time.Now().Add(10 * time.Millisecond))
		})

		const waiters = 8
		done := make(chan struct{}, waiters)
		for i := 0; i < waiters; i++ {
			main.Launch(func(c *Context) {
				c.Join(target)
				done <- struct{}{}
			})
		}
		for i := 0; i < waiters; i++ {
			<-done
		}
	})
}

func TestContext_Yield(t *testing.T) {
	t.Parallel()

	p := NewPool(Config{Workers: 2})
	p.Bootstrap(func(main *Context) {
		var order []int
		done := make(chan struct{})
		main.Launch(func(c *Context) {
			for i := 0; i < 3; i++ {
				order = append(order, i)
				c.Yield()
			}
			close(done)
		})
		<-done
		require.Equal(t, []int{0, 1, 2}, order)
	})
}

func TestContext_SleepUntilWakesAfterDeadline(t *testing.T) {
	t.Parallel()

	p := NewPool(Config{Workers: 2})
	p.Bootstrap(func(main *Context) {
		start := time.Now()
		done := make(chan struct{})
		main.Launch(func(c *Context) {
			c.SleepUntil(time.Now().Add(30 * time.Millisecond))
			close(done)
		})
		<-done
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})
}

func TestContext_WorkStealingAcrossWorkers(t *testing.T) {
	t.Parallel()

	p := NewPool(Config{Workers: 4})
	var count atomic.Int64
	p.Bootstrap(func(main *Context) {
		const n = 100
		done := make(chan struct{}, n)
		for i := 0; i < n; i++ {
			main.Launch(func(c *Context) {
				count.Add(1)
				done <- struct{}{}
			})
		}
		for i := 0; i < n; i++ {
			<-done
		}
	})
	assert.EqualValues(t, 100, count.Load())
}

func TestSleepSet_RemoveEvictsBeforeDeadline(t *testing.T) {
	t.Parallel()

	var s sleepSet
	a := &Context{wake: time.Now().Add(time.Hour), sleepIndex: -1}
	b := &Context{wake: time.Now().Add(2 * time.Hour), sleepIndex: -1}
	s.insert(a)
	s.insert(b)
	require.Equal(t, 2, s.Len())

	s.remove(a)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, -1, a.SleepIndex())

	// removing again, or removing something never inserted, is a no-op.
	s.remove(a)
	s.remove(&Context{sleepIndex: -1})
	assert.Equal(t, 1, s.Len())
}

func TestSleepSet_ReinsertAfterRemoveDoesNotDuplicate(t *testing.T) {
	t.Parallel()

	var s sleepSet
	a := &Context{wake: time.Now().Add(time.Hour), sleepIndex: -1}
	s.insert(a)
	s.remove(a)
	s.insert(a)
	assert.Equal(t, 1, s.Len())
	assert.Same(t, a, s.items[0])
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "main", KindMain.String())
	assert.Equal(t, "scheduler", KindScheduler.String())
	assert.Equal(t, "work", KindWork.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
