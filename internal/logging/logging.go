// Package logging constructs the application logger.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New creates a [log.Logger] writing to w (os.Stderr when nil) with the given
// level name. Unknown level names fall back to info.
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}

	logger := log.NewWithOptions(w, log.Options{ReportTimestamp: true})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *log.Logger {
	return log.New(io.Discard)
}
