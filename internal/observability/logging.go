// Package observability carries the structured logging, metrics, and
// tracing ambient stack around the agent loop, provider adapter, tool
// dispatcher, and team substrate. None of those packages import this
// one directly, and none of them receives a logger, metrics recorder, or
// tracer: cmd/octo constructs all three and uses them itself, the same
// "collaborator, not core concern" split spec §1 draws around
// persistence and config.
package observability

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger: structured, leveled, timestamped.
// Subsystems attach to it via child loggers rather than constructing
// their own, so every log line shares one output and level.
func NewLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with component, e.g. "agent",
// "provider", "tool", "team". Never log full tool arguments or API
// keys here; log ids and sizes instead.
func Component(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}
