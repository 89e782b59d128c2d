package config

import (
	"fmt"
	"io"
	"log/slog"

	charmlog "github.com/charmbracelet/log"
)

// ParseLevel maps a level name to slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, name)
	}
	return l, nil
}

// NewLogger builds a logger writing to w in the given format.
func NewLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatText, "":
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	case FormatPretty:
		h := charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(lvl),
			ReportTimestamp: true,
			Prefix:          "starmatch",
		})
		return slog.New(h), nil
	default:
		return nil, fmt.Errorf("%w: log format %q", ErrInvalid, format)
	}
}

// Logger builds the logger described by c. verbose forces debug.
func (c Config) Logger(w io.Writer, verbose bool) (*slog.Logger, error) {
	level := c.LogLevel
	if verbose {
		level = "debug"
	}
	return NewLogger(w, c.LogFormat, level)
}
