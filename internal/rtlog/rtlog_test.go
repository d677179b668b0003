package rtlog

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpLogger_DiscardsEverything(t *testing.T) {
	t.Parallel()

	l := NewNoOpLogger()
	assert.False(t, l.IsEnabled(LevelError))
	l.Log(Entry{Level: LevelError, Message: "should be discarded"})
}

func TestZerologLogger_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buf zerologBuffer
	l := NewZerologLogger(zerolog.New(&buf), LevelWarn)

	require.False(t, l.IsEnabled(LevelDebug))
	require.True(t, l.IsEnabled(LevelWarn))
	require.True(t, l.IsEnabled(LevelError))

	l.Log(Entry{Level: LevelDebug, Category: "scheduler", Message: "ignored"})
	assert.Empty(t, buf.String())

	l.Log(Entry{Level: LevelError, Category: "scheduler", Message: "boom", Err: errors.New("failed")})
	out := buf.String()
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "scheduler")
	assert.Contains(t, out, "failed")
}

func TestZerologLogger_SetLevel(t *testing.T) {
	t.Parallel()

	var buf zerologBuffer
	l := NewZerologLogger(zerolog.New(&buf), LevelError)
	require.False(t, l.IsEnabled(LevelInfo))

	l.SetLevel(LevelInfo)
	assert.True(t, l.IsEnabled(LevelInfo))
}

func TestGetSetLogger(t *testing.T) {
	// Not t.Parallel(): mutates shared package-level global state.
	t.Cleanup(func() { SetLogger(nil) })

	assert.IsType(t, noopLogger{}, Get())

	var buf zerologBuffer
	custom := NewZerologLogger(zerolog.New(&buf), LevelDebug)
	SetLogger(custom)
	assert.Same(t, Logger(custom), Get())
}

func TestLevel_String(t *testing.T) {
	t.Parallel()

	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		assert.NotEmpty(t, l.String())
	}
	assert.Equal(t, "unknown", Level(99).String())
}

// zerologBuffer is a minimal io.Writer that accumulates bytes, avoiding a
// dependency on bytes.Buffer's zero-value quirks under concurrent Log
// calls in a single test goroutine.
type zerologBuffer struct {
	data []byte
}

func (b *zerologBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *zerologBuffer) String() string { return string(b.data) }
