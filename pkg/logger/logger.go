package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/killallgit/huddle/pkg/config"
	"github.com/rs/zerolog"
)

// Logger is a component-scoped view over the process logger.
// A Logger created before Init picks up the default logger once it exists.
type Logger struct {
	component string
	fields    []any
	zl        *zerolog.Logger
}

var (
	mu            sync.RWMutex
	defaultLogger *zerolog.Logger
	logFile       *os.File
)

// Init initializes the default logger from the global config
func Init() error {
	settings := config.Get()
	l, file, err := open(settings.Logging.LogFile, settings.Logging.Level, settings.Logging.Preserve)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	defaultLogger = l
	logFile = file
	return nil
}

// New creates a standalone Logger writing to logPath
func New(level, logPath string, preserve bool) (*Logger, error) {
	l, _, err := open(logPath, level, preserve)
	if err != nil {
		return nil, err
	}
	return &Logger{zl: l}, nil
}

// NewWithWriter creates a standalone Logger writing JSON lines to w
func NewWithWriter(w io.Writer, level string) *Logger {
	l := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	return &Logger{zl: &l}
}

func open(logPath, level string, preserve bool) (*zerolog.Logger, *os.File, error) {
	if logPath == "" {
		logPath = "./.huddle/huddle.log"
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if preserve {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(logPath, flags, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	l := zerolog.New(file).Level(parseLevel(level)).With().Timestamp().Logger()
	return &l, file, nil
}

// WithComponent returns a logger tagged with the component name
func WithComponent(component string) *Logger {
	return &Logger{component: component}
}

// With returns a child logger carrying the given key/value pairs on every entry
func (l *Logger) With(kv ...any) *Logger {
	fields := make([]any, 0, len(l.fields)+len(kv))
	fields = append(fields, l.fields...)
	fields = append(fields, kv...)
	return &Logger{component: l.component, fields: fields, zl: l.zl}
}

func (l *Logger) base() *zerolog.Logger {
	if l != nil && l.zl != nil {
		return l.zl
	}
	mu.RLock()
	defer mu.RUnlock()
	if defaultLogger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return defaultLogger
}

func (l *Logger) log(level zerolog.Level, msg string, kv []any) {
	e := l.base().WithLevel(level)
	if e == nil {
		return
	}
	if l != nil && l.component != "" {
		e = e.Str("component", l.component)
	}
	if l != nil && len(l.fields) > 0 {
		e = e.Fields(l.fields)
	}
	if len(kv) > 0 {
		e = e.Fields(kv)
	}
	e.Msg(msg)
}

// Debug logs a debug message with optional key/value pairs
func (l *Logger) Debug(msg string, kv ...any) { l.log(zerolog.DebugLevel, msg, kv) }

// Info logs an info message with optional key/value pairs
func (l *Logger) Info(msg string, kv ...any) { l.log(zerolog.InfoLevel, msg, kv) }

// Warn logs a warning with optional key/value pairs
func (l *Logger) Warn(msg string, kv ...any) { l.log(zerolog.WarnLevel, msg, kv) }

// Error logs an error with optional key/value pairs
func (l *Logger) Error(msg string, kv ...any) { l.log(zerolog.ErrorLevel, msg, kv) }

// Package-level convenience functions using the default logger

func Debug(msg string, kv ...any) { (*Logger)(nil).log(zerolog.DebugLevel, msg, kv) }

func Info(msg string, kv ...any) { (*Logger)(nil).log(zerolog.InfoLevel, msg, kv) }

func Warn(msg string, kv ...any) { (*Logger)(nil).log(zerolog.WarnLevel, msg, kv) }

func Error(msg string, kv ...any) { (*Logger)(nil).log(zerolog.ErrorLevel, msg, kv) }

// SetOutput redirects the default logger (useful for testing)
func SetOutput(w io.Writer, level string) {
	l := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = &l
}

// Reset drops the default logger; subsequent logging is discarded
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = nil
}

// Close closes the log file opened by Init
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	defaultLogger = nil
	return err
}

func parseLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
