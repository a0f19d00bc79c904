package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// LegacyLogger prints plain "[LEVEL] msg args" lines, used as a fallback
type LegacyLogger struct {
	mu    sync.RWMutex
	level Level
	out   io.Writer
	err   io.Writer
}

// NewLegacyLogger creates a legacy logger writing info to stdout and warnings to stderr
func NewLegacyLogger() *LegacyLogger {
	return &LegacyLogger{
		level: LevelInfo,
		out:   os.Stdout,
		err:   os.Stderr,
	}
}

// SetLevel sets the minimum level
func (l *LegacyLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *LegacyLogger) print(level Level, w io.Writer, msg string, args []any) {
	l.mu.RLock()
	enabled := level >= l.level
	l.mu.RUnlock()
	if !enabled {
		return
	}
	if len(args) == 0 {
		fmt.Fprintf(w, "[%s] %s\n", levelTag(level), msg)
		return
	}
	fmt.Fprintf(w, "[%s] %s %v\n", levelTag(level), msg, args)
}

func levelTag(level Level) string {
	switch level {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (l *LegacyLogger) Debug(msg string, args ...any) { l.print(LevelDebug, l.out, msg, args) }
func (l *LegacyLogger) Info(msg string, args ...any)  { l.print(LevelInfo, l.out, msg, args) }
func (l *LegacyLogger) Warn(msg string, args ...any)  { l.print(LevelWarn, l.err, msg, args) }
func (l *LegacyLogger) Error(msg string, args ...any) { l.print(LevelError, l.err, msg, args) }

// With returns the logger itself; legacy output carries no context
func (l *LegacyLogger) With(args ...any) Logger { return l }

func (l *LegacyLogger) Sync() error     { return nil }
func (l *LegacyLogger) Shutdown() error { return nil }
