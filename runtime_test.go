// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package procx

import (
	"sync/atomic"
	"testing"

	"github.com/joeycumines/procx/internal/rtlog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultOptionsRunsMain(t *testing.T) {
	t.Parallel()

	rt, err := New()
	require.NoError(t, err)

	var ran atomic.Bool
	rt.Run(func(p *Proc) { ran.Store(true) })
	assert.True(t, ran.Load())
}

func TestNew_WithWorkersRunsAcrossMultipleWorkers(t *testing.T) {
	t.Parallel()

	rt, err := New(WithWorkers(4))
	require.NoError(t, err)

	var count atomic.Int64
	rt.Run(func(main *Proc) {
		const n = 40
		done := make(chan struct{}, n)
		for i := 0; i < n; i++ {
			Launch(main, func(p *Proc) {
				count.Add(1)
				done <- struct{}{}
			})
		}
		for i := 0; i < n; i++ {
			<-done
		}
	})
	assert.EqualValues(t, 40, count.Load())
}

func TestNew_WithSpinBudgetAppliesWithoutError(t *testing.T) {
	t.Parallel()

	rt, err := New(WithSpinBudget(16))
	require.NoError(t, err)

	var ran atomic.Bool
	rt.Run(func(p *Proc) { ran.Store(true) })
	assert.True(t, ran.Load())
}

func TestNew_WithLoggerReceivesSchedulerEvents(t *testing.T) {
	// Not t.Parallel(): installs a package-level logger via rtlog.SetLogger
	// through New, which other tests in this package do not expect.
	var buf zerologWriter
	logger := rtlog.NewZerologLogger(zerolog.New(&buf), rtlog.LevelDebug)

	rt, err := New(WithLogger(logger), WithWorkers(2))
	require.NoError(t, err)

	rt.Run(func(main *Proc) {
		Launch(main, func(p *Proc) {}).Join(main)
	})
	t.Cleanup(func() { SetLogger(nil) })

	assert.NotEmpty(t, buf.String())
}

func TestNew_NilOptionIsIgnored(t *testing.T) {
	t.Parallel()

	rt, err := New(nil, WithWorkers(1))
	require.NoError(t, err)

	var ran atomic.Bool
	rt.Run(func(p *Proc) { ran.Store(true) })
	assert.True(t, ran.Load())
}

// zerologWriter is a minimal io.Writer accumulating bytes for assertions.
type zerologWriter struct{ data []byte }

func (w *zerologWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *zerologWriter) String() string { return string(w.data) }
