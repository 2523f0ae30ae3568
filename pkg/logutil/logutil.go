// Package logutil builds the colored slog loggers used by the client and
// the tool server.
package logutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"
)

// TimeFormat is the timestamp layout of every log line.
const TimeFormat = "2006-01-02 15:04:05.000"

// ServerLogFile is the file name the tool server tees its logs into.
const ServerLogFile = "sqlite-server.log"

// Options configure New.
type Options struct {
	Level slog.Level
	// AddSource adds file:line to each record.
	AddSource bool
	NoColor   bool
}

// ParseLevel maps a level name to a slog level. "critical" is an alias
// for error.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "critical":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// New returns a tint logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	return slog.New(newHandler(w, opts))
}

func newHandler(w io.Writer, opts Options) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      opts.Level,
		AddSource:  opts.AddSource,
		TimeFormat: TimeFormat,
		NoColor:    opts.NoColor,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})
}

// NewTee returns a logger writing colored output to w and plain output to
// a log file in dir. With an empty dir it is equivalent to New. The returned
// closer releases the file.
func NewTee(w io.Writer, dir, file string, opts Options) (*slog.Logger, io.Closer, error) {
	if dir == "" {
		return New(w, opts), nopCloser{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, file), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	fileOpts := opts
	fileOpts.NoColor = true
	h := fanout{newHandler(w, opts), newHandler(f, fileOpts)}
	return slog.New(h), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout sends each record to every handler.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
