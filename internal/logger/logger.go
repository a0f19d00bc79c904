package logger

import (
	"fmt"
	"os"
	"sync"
)

// LegacyEnv switches Init to the plain fmt-based logger when set to "true"
const LegacyEnv = "SNAPDIFF_USE_LEGACY_LOGGER"

var (
	defaultLogger Logger
	mu            sync.RWMutex
	initialized   bool
)

// Init installs the global logger
func Init(config Config) error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return fmt.Errorf("logger already initialized; call Shutdown() before re-initializing")
	}

	if os.Getenv(LegacyEnv) == "true" {
		legacy := NewLegacyLogger()
		legacy.SetLevel(config.Level)
		defaultLogger = legacy
		initialized = true
		return nil
	}

	l, err := NewSlogLogger(config)
	if err != nil {
		return fmt.Errorf("failed to create slog logger: %w", err)
	}

	defaultLogger = l
	initialized = true
	return nil
}

// Get returns the global logger, or a NullLogger before Init
func Get() Logger {
	mu.RLock()
	defer mu.RUnlock()

	if !initialized {
		return &NullLogger{}
	}
	return defaultLogger
}

// With returns a child of the global logger
func With(args ...any) Logger {
	return Get().With(args...)
}

// Shutdown closes the global logger's writers and resets it
func Shutdown() error {
	mu.Lock()
	if !initialized {
		mu.Unlock()
		return nil
	}
	l := defaultLogger
	initialized = false
	defaultLogger = nil
	mu.Unlock()

	return l.Shutdown()
}

// NullLogger discards everything
type NullLogger struct{}

func (n *NullLogger) Debug(msg string, args ...any) {}
func (n *NullLogger) Info(msg string, args ...any)  {}
func (n *NullLogger) Warn(msg string, args ...any)  {}
func (n *NullLogger) Error(msg string, args ...any) {}
func (n *NullLogger) With(args ...any) Logger       { return n }
func (n *NullLogger) Sync() error                   { return nil }
func (n *NullLogger) Shutdown() error               { return nil }
