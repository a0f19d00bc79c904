package logger

import (
	"io"
	"strings"
)

// Logger is the logging interface used across snapdiff
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	Sync() error
	Shutdown() error
}

// Level is a log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a string into a Level (case-insensitive), defaulting to info
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format is the log line encoding
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// String returns the string representation of the format
func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat parses a string into a Format (case-insensitive), defaulting to text
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Output is a log destination
type Output int

const (
	OutputStdout Output = iota
	OutputStderr
	OutputFile
)

// Config configures the global logger
type Config struct {
	Level   Level
	Format  Format
	Outputs []OutputConfig
	File    FileConfig

	// MaskHomePaths replaces user names in home directory paths
	MaskHomePaths bool
}

// OutputConfig selects a destination; Writer overrides the stream (tests)
type OutputConfig struct {
	Type   Output
	Writer io.Writer
}

// FileConfig configures the rotating log file
type FileConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}
