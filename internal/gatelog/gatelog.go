// Package gatelog provides the gate's one-line debug logging, gated behind
// a runtime flag so the gate never logs by default (spec §7: "Logging is
// one-line debug prints gated behind a compile-time or runtime debug flag").
package gatelog

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var (
	enabled atomic.Bool
	once    sync.Once
	logger  zerolog.Logger
)

func init() {
	if os.Getenv("APPROVAL_GATE_DEBUG") != "" {
		enabled.Store(true)
	}
}

func ensure() zerolog.Logger {
	once.Do(func() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
			With().Timestamp().Str("component", "approval-gate").Logger()
	})
	return logger
}

// SetEnabled turns debug logging on or off for the process lifetime.
func SetEnabled(on bool) {
	enabled.Store(on)
}

// Enabled reports whether debug logging is currently on.
func Enabled() bool {
	return enabled.Load()
}

// Debug emits a single structured debug line when logging is enabled; it is
// a no-op otherwise, so callers can call it unconditionally.
func Debug(msg string, fields map[string]any) {
	if !enabled.Load() {
		return
	}
	ev := ensure().Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
