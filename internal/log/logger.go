// Package log provides the leveled, key/value logger used across casesmith.
package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Level represents log severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string such as "debug" to a Level. Unknown
// values fall back to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l Level) hclog() hclog.Level {
	switch l {
	case DebugLevel:
		return hclog.Debug
	case WarnLevel:
		return hclog.Warn
	case ErrorLevel:
		return hclog.Error
	default:
		return hclog.Info
	}
}

// Logger interface defines structured logging methods
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	With(args ...interface{}) Logger
	SetLevel(level Level)
	SetJSONOutput(enabled bool)
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Name       string
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// DefaultLogger adapts an hclog.Logger to Logger. JSON output cannot be
// toggled on a live hclog logger, so SetJSONOutput rebuilds it.
type DefaultLogger struct {
	mu     sync.Mutex
	cfg    LoggerConfig
	args   []interface{}
	logger hclog.Logger
}

var (
	defaultLogger *DefaultLogger
	once          sync.Once
)

// New creates a new logger with the given configuration
func New(cfg LoggerConfig) *DefaultLogger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.Name == "" {
		cfg.Name = "casesmith"
	}
	l := &DefaultLogger{cfg: cfg}
	l.rebuild()
	return l
}

// Default returns the default logger instance
func Default() *DefaultLogger {
	once.Do(func() {
		defaultLogger = New(LoggerConfig{Level: InfoLevel})
	})
	return defaultLogger
}

func (l *DefaultLogger) rebuild() {
	base := hclog.New(&hclog.LoggerOptions{
		Name:       l.cfg.Name,
		Level:      l.cfg.Level.hclog(),
		Output:     l.cfg.Output,
		JSONFormat: l.cfg.JSONOutput,
		Color:      hclog.AutoColor,
	})
	if len(l.args) > 0 {
		base = base.With(l.args...)
	}
	l.logger = base
}

func (l *DefaultLogger) current() hclog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logger
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	l.current().Debug(msg, args...)
}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...interface{}) {
	l.current().Info(msg, args...)
}

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, args ...interface{}) {
	l.current().Warn(msg, args...)
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	l.current().Error(msg, args...)
}

// With returns a child logger that adds args to every entry.
func (l *DefaultLogger) With(args ...interface{}) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	child := &DefaultLogger{
		cfg:  l.cfg,
		args: append(append([]interface{}(nil), l.args...), args...),
	}
	child.rebuild()
	return child
}

// SetLevel sets the minimum log level
func (l *DefaultLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.Level = level
	l.logger.SetLevel(level.hclog())
}

// SetJSONOutput enables or disables JSON output
func (l *DefaultLogger) SetJSONOutput(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.JSONOutput == enabled {
		return
	}
	l.cfg.JSONOutput = enabled
	l.rebuild()
}

// Nop returns a logger that discards everything, for tests.
func Nop() Logger {
	return New(LoggerConfig{Level: ErrorLevel, Output: io.Discard})
}
