package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Options struct {
	File    string
	Debug   bool
	Console io.Writer
}

// Logger owns the files behind the application and notification loggers.
type Logger struct {
	zerolog.Logger
	closers []io.Closer
}

func New(opts Options) (*Logger, error) {
	writers := make([]io.Writer, 0, 2)
	out := &Logger{}
	if strings.TrimSpace(opts.File) != "" {
		f, err := openAppend(opts.File)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out.closers = append(out.closers, f)
		writers = append(writers, f)
	}
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.Kitchen})
	}

	var w io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	out.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return out, nil
}

// NotificationLog returns a logger that records sent notifications in their
// own file. An empty path yields a disabled logger.
func (l *Logger) NotificationLog(path string) (zerolog.Logger, error) {
	if strings.TrimSpace(path) == "" {
		return zerolog.Nop(), nil
	}
	f, err := openAppend(path)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("open notification log: %w", err)
	}
	l.closers = append(l.closers, f)
	return zerolog.New(f).With().Timestamp().Logger(), nil
}

func (l *Logger) Component(name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

func (l *Logger) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.closers = nil
	return first
}

func openAppend(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
