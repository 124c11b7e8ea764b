// Package logging builds the zerolog logger shared by the portal and the CLI.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w at level. format "console" gives human
// readable output; anything else writes JSON lines.
func New(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
