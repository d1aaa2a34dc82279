package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/dshills/folio/internal/plugin"
)

// Log output formats.
const (
	FormatAuto    = "auto"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Logger is the host logger. It embeds a zerolog.Logger so call sites can
// use zerolog's event API directly.
type Logger struct {
	zerolog.Logger
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error or
	// disabled.
	Level string
	// Format is auto, json or console. Auto picks console on a terminal.
	Format string
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
}

// ParseLevel parses a level name. "log" is accepted as info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info", "log":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger creates a logger.
func NewLogger(cfg LoggerConfig) (*Logger, error) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	// The global level defaults to debug and would drop trace events.
	if level < zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(level)
	}

	out := cfg.Output
	switch cfg.Format {
	case FormatConsole:
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.Kitchen, NoColor: !IsTerminal(cfg.Output)}
	case FormatAuto, "":
		if IsTerminal(cfg.Output) {
			out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.Kitchen}
		}
	case FormatJSON:
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{Logger: zl}, nil
}

// NopLogger returns a logger that discards everything.
func NopLogger() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// WithComponent returns a logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With().Str("component", component).Logger()}
}

// WithPlugin returns a logger with the plugin field set.
func (l *Logger) WithPlugin(name string) *Logger {
	return &Logger{Logger: l.With().Str("plugin", name).Logger()}
}

// Plugin writes a plugin lifecycle message. The log level records
// success and is written without a level, tagged status=ok.
func (l *Logger) Plugin(level plugin.LogLevel, msg string) {
	switch level {
	case plugin.LevelDebug:
		l.Debug().Msg(msg)
	case plugin.LevelWarn:
		l.Warn().Msg(msg)
	case plugin.LevelError:
		l.Error().Msg(msg)
	case plugin.LevelLog:
		l.Logger.Log().Str("status", "ok").Msg(msg)
	default:
		l.Info().Msg(msg)
	}
}
