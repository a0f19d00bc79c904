package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Ning0612/snapdiff/internal/checksum"
	"github.com/Ning0612/snapdiff/internal/domain"
	"github.com/Ning0612/snapdiff/internal/logger"
)

// Config represents the complete configuration for snapdiff
type Config struct {
	Store StoreConfig `mapstructure:"store"`
	Scan  ScanConfig  `mapstructure:"scan"`
	Log   LogConfig   `mapstructure:"log"`

	// Transports define storage backend configurations
	Transports []domain.Transport `mapstructure:"transports"`

	// Sources define named trees that can be scanned
	Sources []domain.Source `mapstructure:"sources"`
}

// StoreConfig locates the snapshot database
type StoreConfig struct {
	Dir string `mapstructure:"dir"`
}

// ScanConfig controls the scanner
type ScanConfig struct {
	// Ignore glob patterns (doublestar syntax) matched against relative paths
	Ignore []string `mapstructure:"ignore"`

	// Fingerprint algorithm used to detect duplicate stored snapshots
	Fingerprint string `mapstructure:"fingerprint"`
}

// LogConfig configures logging
type LogConfig struct {
	Level         string        `mapstructure:"level"`
	Format        string        `mapstructure:"format"`
	MaskHomePaths bool          `mapstructure:"mask_home_paths"`
	File          LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures the rotating log file
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Validate checks if the configuration is complete and consistent
func (c *Config) Validate() error {
	if c.Scan.Fingerprint != "" && !checksum.IsSupported(checksum.Algorithm(c.Scan.Fingerprint)) {
		return fmt.Errorf("%w: unsupported fingerprint algorithm: %s", domain.ErrConfigInvalid, c.Scan.Fingerprint)
	}

	transportNames := make(map[string]bool)
	for _, t := range c.Transports {
		if t.Name == "" {
			return fmt.Errorf("%w: transport name cannot be empty", domain.ErrConfigInvalid)
		}
		if transportNames[t.Name] {
			return fmt.Errorf("%w: duplicate transport name: %s", domain.ErrConfigInvalid, t.Name)
		}
		if !t.Type.IsValid() {
			return fmt.Errorf("%w: invalid transport type: %s", domain.ErrConfigInvalid, t.Type)
		}
		if t.Type == domain.TransportGDrive && (t.ClientID == "" || t.ClientSecret == "") {
			return fmt.Errorf("%w: gdrive transport %s requires client_id and client_secret", domain.ErrConfigInvalid, t.Name)
		}
		transportNames[t.Name] = true
	}

	sourceNames := make(map[string]bool)
	for _, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("%w: source name cannot be empty", domain.ErrConfigInvalid)
		}
		if sourceNames[s.Name] {
			return fmt.Errorf("%w: duplicate source name: %s", domain.ErrConfigInvalid, s.Name)
		}
		if s.Transport == "" {
			return fmt.Errorf("%w: source %s has no transport", domain.ErrConfigInvalid, s.Name)
		}
		if !transportNames[s.Transport] {
			return fmt.Errorf("%w: source %s references unknown transport: %s",
				domain.ErrTransportNotFound, s.Name, s.Transport)
		}
		if s.Root == "" {
			return fmt.Errorf("%w: source %s has no root path", domain.ErrConfigInvalid, s.Name)
		}
		sourceNames[s.Name] = true
	}

	return nil
}

// GetTransport returns a transport by name
func (c *Config) GetTransport(name string) (*domain.Transport, error) {
	for i := range c.Transports {
		if c.Transports[i].Name == name {
			return &c.Transports[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrTransportNotFound, name)
}

// GetSource returns a source by name
func (c *Config) GetSource(name string) (*domain.Source, error) {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, name)
}

// StoreDir returns the expanded store directory
func (c *Config) StoreDir() string {
	return ExpandPath(c.Store.Dir)
}

// LoggerConfig converts the log section into a logger.Config writing to stderr
func (c *Config) LoggerConfig() logger.Config {
	lc := logger.Config{
		Level:         logger.ParseLevel(c.Log.Level),
		Format:        logger.ParseFormat(c.Log.Format),
		MaskHomePaths: c.Log.MaskHomePaths,
		Outputs:       []logger.OutputConfig{{Type: logger.OutputStderr}},
	}
	if c.Log.File.Enabled {
		lc.Outputs = append(lc.Outputs, logger.OutputConfig{Type: logger.OutputFile})
		lc.File = logger.FileConfig{
			Enabled:    true,
			Path:       ExpandPath(c.Log.File.Path),
			MaxSizeMB:  c.Log.File.MaxSizeMB,
			MaxAgeDays: c.Log.File.MaxAgeDays,
			MaxBackups: c.Log.File.MaxBackups,
			Compress:   c.Log.File.Compress,
		}
	}
	return lc
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			if len(path) == 1 {
				path = home
			} else if path[1] == '/' || path[1] == filepath.Separator {
				path = filepath.Join(home, path[2:])
			}
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}
