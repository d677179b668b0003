// Package rtlog is the runtime's structured logging seam: a small
// pluggable Logger interface, a package-level default wired to
// github.com/rs/zerolog, and a no-op fallback so the scheduler never pays
// for logging it hasn't been asked to do.
package rtlog

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Level is the severity of a log record.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is a single structured log record. Category names the runtime
// subsystem that produced it: "scheduler", "channel", "alt", "process".
type Entry struct {
	Level    Level
	Category string
	WorkerID int
	ProcID   uintptr
	Fields   map[string]any
	Message  string
	Err      error
	Time     time.Time
}

// Logger is the interface procx.SetLogger accepts.
type Logger interface {
	Log(e Entry)
	IsEnabled(level Level) bool
}

type noopLogger struct{}

func (noopLogger) Log(Entry)            {}
func (noopLogger) IsEnabled(Level) bool { return false }

// NewNoOpLogger returns a Logger that discards everything, the default
// until SetLogger is called.
func NewNoOpLogger() Logger { return noopLogger{} }

// ZerologLogger adapts Entry to github.com/rs/zerolog, the structured
// logging library the rest of this module's dependency pack standardizes
// on.
type ZerologLogger struct {
	level  atomic.Int32
	logger zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog.Logger, logging at level and
// above.
func NewZerologLogger(logger zerolog.Logger, level Level) *ZerologLogger {
	l := &ZerologLogger{logger: logger}
	l.level.Store(int32(level))
	return l
}

func (l *ZerologLogger) SetLevel(level Level) { l.level.Store(int32(level)) }

func (l *ZerologLogger) IsEnabled(level Level) bool {
	return level >= Level(l.level.Load())
}

func (l *ZerologLogger) Log(e Entry) {
	if !l.IsEnabled(e.Level) {
		return
	}
	var zl *zerolog.Event
	switch e.Level {
	case LevelDebug:
		zl = l.logger.Debug()
	case LevelWarn:
		zl = l.logger.Warn()
	case LevelError:
		zl = l.logger.Error()
	default:
		zl = l.logger.Info()
	}
	zl = zl.Str("category", e.Category)
	if e.WorkerID != 0 {
		zl = zl.Int("worker", e.WorkerID)
	}
	if e.ProcID != 0 {
		zl = zl.Uint64("proc", uint64(e.ProcID))
	}
	for k, v := range e.Fields {
		zl = zl.Interface(k, v)
	}
	if e.Err != nil {
		zl = zl.Err(e.Err)
	}
	zl.Msg(e.Message)
}

var global struct {
	sync.RWMutex
	logger Logger
}

// SetLogger installs the package-level logger every worker's scheduler
// logs through.
func SetLogger(l Logger) {
	global.Lock()
	defer global.Unlock()
	global.logger = l
}

// Get returns the current global logger, or a no-op logger if none has
// been set.
func Get() Logger {
	global.RLock()
	defer global.RUnlock()
	if global.logger != nil {
		return global.logger
	}
	return NewNoOpLogger()
}
