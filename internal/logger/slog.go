package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SlogLogger writes through log/slog after sanitizing messages and arguments.
// Only the root logger owns its writers; children created by With share them.
type SlogLogger struct {
	logger    *slog.Logger
	sanitizer *Sanitizer
	closers   []io.Closer
	owner     bool
}

// NewSlogLogger builds a logger from config
func NewSlogLogger(config Config) (*SlogLogger, error) {
	var writers []io.Writer
	var closers []io.Closer

	for _, output := range config.Outputs {
		switch output.Type {
		case OutputStdout, OutputStderr:
			w := output.Writer
			if w == nil {
				w = os.Stdout
				if output.Type == OutputStderr {
					w = os.Stderr
				}
			}
			writers = append(writers, w)
			if c, ok := w.(io.Closer); ok && !isStdStream(w) {
				closers = append(closers, c)
			}
		case OutputFile:
			if !config.File.Enabled {
				continue
			}
			fw, err := newFileWriter(config.File)
			if err != nil {
				return nil, fmt.Errorf("failed to create file writer: %w", err)
			}
			writers = append(writers, fw)
			closers = append(closers, fw)
		}
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	opts := &slog.HandlerOptions{Level: toSlogLevel(config.Level)}
	out := io.MultiWriter(writers...)

	var handler slog.Handler
	if config.Format == FormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	sanitizer := NewSanitizer()
	if config.MaskHomePaths {
		sanitizer.MaskHomePaths()
	}

	return &SlogLogger{
		logger:    slog.New(handler),
		sanitizer: sanitizer,
		closers:   closers,
		owner:     true,
	}, nil
}

func isStdStream(w io.Writer) bool {
	return w == os.Stdout || w == os.Stderr || w == os.Stdin
}

// newFileWriter creates a size-rotated log file
func newFileWriter(config FileConfig) (io.WriteCloser, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("log file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSizeMB,
		MaxAge:     config.MaxAgeDays,
		MaxBackups: config.MaxBackups,
		Compress:   config.Compress,
	}, nil
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *SlogLogger) log(level slog.Level, msg string, args []any) {
	l.logger.Log(context.Background(), level, l.sanitizer.Sanitize(msg), l.sanitizer.SanitizeArgs(args)...)
}

func (l *SlogLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *SlogLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

// With returns a child logger that does not own the writers
func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{
		logger:    l.logger.With(l.sanitizer.SanitizeArgs(args)...),
		sanitizer: l.sanitizer,
	}
}

// Sync is a no-op; lumberjack writes through on every call
func (l *SlogLogger) Sync() error {
	return nil
}

// Shutdown closes the writers owned by the root logger
func (l *SlogLogger) Shutdown() error {
	if !l.owner {
		return nil
	}
	var lastErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	l.closers = nil
	return lastErr
}
