// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package timer provides the three timer value types spec.md's external
// interface list names: Egg, Repeat and Date. None of them schedule
// anything themselves — they are plain value types a Process checks with
// Expired and rearms with Reset, typically alongside thisproc.DelayUntil
// or a procx.TimeoutCase.
package timer

import "time"

// Egg is a one-shot duration timer: Reset always rearms it relative to
// the current time, so repeated Resets never accumulate drift from a
// fixed origin.
type Egg struct {
	duration time.Duration
	deadline time.Time
}

// NewEgg returns an Egg already armed to expire after d.
func NewEgg(d time.Duration) *Egg {
	e := &Egg{duration: d}
	e.Reset()
	return e
}

// Reset rearms the timer to expire d after now.
func (e *Egg) Reset() { e.deadline = time.Now().Add(e.duration) }

// Expired reports whether the deadline has passed.
func (e *Egg) Expired() bool { return !time.Now().Before(e.deadline) }

// Deadline returns the time point Expired compares against.
func (e *Egg) Deadline() time.Time { return e.deadline }

// Repeat is a periodic duration timer: unlike Egg, Reset advances the
// deadline by its period from where it last was, so a loop that checks
// Expired and Resets on each period doesn't drift relative to its first
// arming even if individual iterations run late.
type Repeat struct {
	period   time.Duration
	deadline time.Time
}

// NewRepeat returns a Repeat already armed to first expire after period.
func NewRepeat(period time.Duration) *Repeat {
	return &Repeat{period: period, deadline: time.Now().Add(period)}
}

// Reset advances the deadline by one period from its current value.
func (r *Repeat) Reset() { r.deadline = r.deadline.Add(r.period) }

// Expired reports whether the current deadline has passed.
func (r *Repeat) Expired() bool { return !time.Now().Before(r.deadline) }

// Deadline returns the time point Expired compares against.
func (r *Repeat) Deadline() time.Time { return r.deadline }

// Date is a fixed absolute time point: Reset is a no-op, since a Date's
// deadline is never relative to anything.
type Date struct {
	deadline time.Time
}

// NewDate returns a Date fixed at t.
func NewDate(t time.Time) *Date { return &Date{deadline: t} }

// Reset does nothing; a Date's deadline never moves.
func (d *Date) Reset() {}

// Expired reports whether the fixed time point has passed.
func (d *Date) Expired() bool { return !time.Now().Before(d.deadline) }

// Deadline returns the fixed time point Expired compares against.
func (d *Date) Deadline() time.Time { return d.deadline }
