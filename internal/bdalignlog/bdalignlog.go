// Package bdalignlog wires the module's structured logging. Every component
// accepts a *zerolog.Logger and falls back to a no-op logger when the caller
// doesn't provide one, so the library stays silent by default the way
// pkg/bdinfo reports progress through a callback instead of stdout.
package bdalignlog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultLevel is the console logger verbosity cmd/bdalign starts at.
const DefaultLevel = zerolog.InfoLevel

var (
	nop     = zerolog.Nop()
	current = &nop
	mu      sync.RWMutex
)

// Default returns the process-wide logger, or a no-op logger if none has
// been set via SetDefault.
func Default() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetDefault installs l as the process-wide default logger.
func SetDefault(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = &l
}

// NewConsole builds a human-readable console logger at the given level,
// writing to w (os.Stderr if nil). Used by cmd/bdalign; library callers are
// expected to supply their own zerolog.Logger instead.
func NewConsole(w io.Writer, level zerolog.Level) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return zerolog.New(cw).Level(level).With().Timestamp().Logger()
}

// Or returns l if non-nil, otherwise the package default. Components take a
// *zerolog.Logger parameter and call this once at construction.
func Or(l *zerolog.Logger) *zerolog.Logger {
	if l != nil {
		return l
	}
	return Default()
}
