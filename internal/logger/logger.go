// Package logger builds the structured loggers used by the widget and the
// chatbot service.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Options controls where and how verbosely a logger writes.
type Options struct {
	Level  string
	File   string
	Prefix string
	// Output overrides File and stderr when set.
	Output io.Writer
}

// New returns a logger configured from opts. When opts.File is set the file is
// opened in append mode and returned as the closer; the caller owns it.
func New(opts Options) (*log.Logger, io.Closer, error) {
	var output io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	switch {
	case opts.Output != nil:
		output = opts.Output
	case opts.File != "":
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, err
		}
		output = file
		closer = file
	}

	l := log.NewWithOptions(output, log.Options{
		Prefix:          opts.Prefix,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
	l.SetLevel(ParseLevel(opts.Level))
	return l, closer, nil
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// ParseLevel maps a level name to a log level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
