// Package logger provides leveled logging on top of the standard log package.
package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level is a logging severity.
type Level int

// Logging levels, lowest to highest.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name to a Level. Unknown names map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes formatted entries at or above its level.
type Logger struct {
	debugLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	level      Level
	mu         sync.Mutex
}

// New creates a Logger writing info and below to out and warnings/errors to errOut.
func New(out, errOut io.Writer, level Level) *Logger {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds
	return &Logger{
		debugLog:   log.New(out, "DEBUG ", flags),
		infoLog:    log.New(out, "INFO  ", flags),
		warningLog: log.New(errOut, "WARN  ", flags),
		errorLog:   log.New(errOut, "ERROR ", flags),
		level:      level,
	}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(os.Stdout, os.Stderr, LevelInfo)
)

// Default returns the process-wide logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger. Passing nil installs a discarding logger.
func SetDefault(l *Logger) {
	if l == nil {
		l = Discard()
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, io.Discard, LevelError+1)
}

// Or returns l, or the default logger when l is nil.
func Or(l *Logger) *Logger {
	if l == nil {
		return Default()
	}
	return l
}

// SetLevel changes the minimum level written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the minimum level written.
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *Logger) logf(level Level, target *log.Logger, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	target.Printf(format, v...)
}

// Debug writes a debug-level entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.logf(LevelDebug, l.debugLog, format, v...)
}

// Info writes an info-level entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.logf(LevelInfo, l.infoLog, format, v...)
}

// Warning writes a warning-level entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.logf(LevelWarning, l.warningLog, format, v...)
}

// Error writes an error-level entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.logf(LevelError, l.errorLog, format, v...)
}
