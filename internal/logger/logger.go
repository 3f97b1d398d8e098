// Package logger builds the slog loggers used by the binaries and services.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/oggyb/campus-match/internal/config"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config selects level, output format and a fixed component attribute.
type Config struct {
	Level      string
	Format     Format
	Component  string
	WithSource bool
}

var global atomic.Pointer[slog.Logger]

// InitFromConfig replaces the process logger with one built from the app's
// log section. A nil config resets it to text output at info level.
func InitFromConfig(c *config.Config) {
	lc := Config{Level: "info", Format: FormatText}
	if c != nil {
		lc = Config{
			Level:      c.Log.Level,
			Format:     Format(c.Log.Format),
			Component:  c.Log.Component,
			WithSource: c.Log.Source,
		}
	}
	global.Store(New(os.Stdout, lc))
}

// L returns the process logger, creating the default one on first use.
func L() *slog.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	global.CompareAndSwap(nil, New(os.Stdout, Config{Level: "info", Format: FormatText}))
	return global.Load()
}

// Info logs through the process logger.
func Info(msg string, args ...any) { L().Info(msg, args...) }

// New builds a logger writing to w without touching the process logger.
// Text output uses a short local timestamp; anything other than "json" is text.
func New(w io.Writer, c Config) *slog.Logger {
	asText := !strings.EqualFold(string(c.Format), string(FormatJSON))
	opts := &slog.HandlerOptions{
		Level:     levelOf(c.Level),
		AddSource: c.WithSource,
	}
	var h slog.Handler
	if asText {
		opts.ReplaceAttr = shortTime
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(h)
	if c.Component != "" {
		l = l.With("component", c.Component)
	}
	return l
}

// Discard drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shortTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02 15:04:05"))
	}
	return a
}

func levelOf(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
