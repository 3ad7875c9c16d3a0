// Package logging configures the process-wide zerolog logger and hands out
// component-scoped child loggers.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Configure sets the process-wide log level and output format. pretty
// switches from newline-delimited JSON (the default, suited to a daemon
// whose stderr is collected by a supervisor) to a human-readable console
// writer (suited to interactive CLI use).
func Configure(level zerolog.Level, pretty bool) {
	mu.Lock()
	defer mu.Unlock()

	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	base = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// WithComponent returns a logger tagged with a "component" field, mirroring
// how every package in this module scopes its log lines.
func WithComponent(name string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With().Str("component", name).Logger()
}
