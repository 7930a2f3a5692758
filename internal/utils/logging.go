package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates a console logger writing to stderr. Debug enables debug level.
func NewLogger(debug bool) (*zerolog.Logger, error) {
	return NewLoggerTo(os.Stderr, debug), nil
}

// NewLoggerTo creates a console logger writing to w.
func NewLoggerTo(w io.Writer, debug bool) *zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: !isTerminal(w)}
	l := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &l
}

// NopLogger returns a logger that discards everything.
func NopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
