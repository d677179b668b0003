// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package procx

import "github.com/joeycumines/procx/internal/rtlog"

// Logger is the package-level pluggable structured logger interface,
// mirroring the teacher's SetStructuredLogger shape: host applications
// wire in their own backend (or procx's zerolog-backed default) without
// this module hard-depending on one concrete logging library at the call
// site.
type Logger = rtlog.Logger

// LogEntry is a single structured log record a Logger receives.
type LogEntry = rtlog.Entry

// Log level constants, ordered least to most severe.
const (
	LevelDebug = rtlog.LevelDebug
	LevelInfo  = rtlog.LevelInfo
	LevelWarn  = rtlog.LevelWarn
	LevelError = rtlog.LevelError
)

// SetLogger installs l as the package-level logger the runtime reports
// lifecycle events through (worker pool start, Main shutdown, process
// launch); channels and the Alt engine do not log.
// Equivalent to passing WithLogger(l) to New, but can be called at any
// time, including before any Runtime is constructed.
func SetLogger(l Logger) { rtlog.SetLogger(l) }
