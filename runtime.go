// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package procx is a cooperative CSP runtime: a fixed worker pool runs
// lightweight, goroutine-backed Contexts that communicate exclusively
// through synchronous rendezvous channels and guarded Alt selection, in
// the style of occam/libproxc rather than Go's buffered-by-default
// channels and preemptive goroutine scheduler.
package procx

import (
	"github.com/joeycumines/procx/internal/rtlog"
	"github.com/joeycumines/procx/internal/runtime"
)

// Proc is the handle user code receives for "the currently running
// process": every procx operation (Send, Recv, Alt.Select, Launch,
// Join, Yield, thisproc helpers) takes one explicitly, since Go has no
// supported way to recover "the current goroutine" implicitly the way
// libproxc's thread_local this_ctx can.
type Proc = runtime.Context

// Runtime is a bootstrapped worker pool. Construct one with New and run
// a top-level Process with Run.
type Runtime struct {
	pool *runtime.Pool
}

// New constructs a Runtime per the given options but does not start any
// worker threads yet; Run does that on first call.
func New(opts ...SchedulerOption) (*Runtime, error) {
	cfg, err := resolveSchedulerOptions(opts)
	if err != nil {
		return nil, err
	}
	if cfg.logger != nil {
		rtlog.SetLogger(cfg.logger)
	}
	return &Runtime{pool: runtime.NewPool(cfg.toRuntimeConfig())}, nil
}

// Run bootstraps the worker pool (if not already started) and runs entry
// as the top-level Main Process on the calling OS thread, returning once
// entry (and, transitively, everything it Join-waited on) completes.
// Processes entry itself Launches but never Joins are not waited for —
// matching spec.md's Main-context lifecycle, the program is considered
// finished when Main returns, the same way Go's own main() ends a
// program regardless of still-running goroutines.
func (r *Runtime) Run(entry func(p *Proc)) {
	r.pool.Bootstrap(entry)
}
