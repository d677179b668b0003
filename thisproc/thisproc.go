// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package thisproc mirrors libproxc's thisproc namespace: the operations a
// running process performs on itself (yield, delay, identity). The
// original reaches these through an implicit thread_local context; Go has
// no supported equivalent, so every function here takes the caller's
// *procx.Proc explicitly instead — see procx.Proc's doc comment for why
// that's the deliberate redesign, not an oversight.
package thisproc

import (
	"time"

	"github.com/joeycumines/procx/internal/runtime"
)

// Proc is the same type procx.Proc aliases, re-exposed here so callers
// that only need thisproc's self-operations don't need to import procx
// just for the parameter type.
type Proc = runtime.Context

// ID returns p's stable identity.
func ID(p *Proc) uintptr { return p.ID() }

// Yield gives up the worker voluntarily, rejoining the back of p's
// scheduler's ready queue.
func Yield(p *Proc) { p.Yield() }

// DelayFor parks p for at least d.
func DelayFor(p *Proc, d time.Duration) { p.SleepUntil(time.Now().Add(d)) }

// DelayUntil parks p until wake.
func DelayUntil(p *Proc, wake time.Time) { p.SleepUntil(wake) }
