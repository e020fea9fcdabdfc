// Package logging builds the structured loggers used across flowpilot.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

// Level is a textual log level as it appears in configuration.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// ToCharmlogLevel maps the level onto charmbracelet/log, defaulting to info.
func (l Level) ToCharmlogLevel() charmlog.Level {
	switch Level(strings.ToLower(string(l))) {
	case DebugLevel:
		return charmlog.DebugLevel
	case InfoLevel:
		return charmlog.InfoLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// Config controls logger construction.
type Config struct {
	Level Level
	// JSON selects the JSON formatter instead of the text formatter.
	JSON bool
	// File, when set, receives log output instead of Output.
	File string
	// Output is used when File is empty. Defaults to os.Stderr.
	Output     io.Writer
	TimeFormat string
}

// DefaultConfig returns an info-level text logger on stderr.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		TimeFormat: "15:04:05",
	}
}

// Logger wraps a charm logger together with the file it may own.
type Logger struct {
	*charmlog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a logger from cfg. When cfg.File is set, parent directories
// are created and output is appended to that file.
func New(cfg Config) (*Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		out = f
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = "15:04:05"
	}

	inner := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Level:           cfg.Level.ToCharmlogLevel(),
	})
	if cfg.JSON {
		inner.SetFormatter(charmlog.JSONFormatter)
	} else {
		inner.SetFormatter(charmlog.TextFormatter)
	}

	return &Logger{Logger: inner, file: file}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: charmlog.New(io.Discard)}
}

// Close closes the log file if the logger owns one.
// Safe to call on a nil logger.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
