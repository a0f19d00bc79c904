package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Ning0612/snapdiff/internal/domain"
)

// EnvPrefix is the prefix of environment overrides, e.g. SNAPDIFF_LOG_LEVEL
const EnvPrefix = "SNAPDIFF"

// DefaultConfigPaths returns the default paths to search for config files
func DefaultConfigPaths() []string {
	paths := []string{".", "./configs"}

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "snapdiff"))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, ".config", "snapdiff"),
			filepath.Join(homeDir, ".snapdiff"),
		)
	}

	return paths
}

// DefaultStoreDir returns the default directory of the snapshot database
func DefaultStoreDir() string {
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "snapdiff")
	}
	return ".snapdiff"
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("store.dir", DefaultStoreDir())
	v.SetDefault("scan.ignore", []string{})
	v.SetDefault("scan.fingerprint", "sha256")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", filepath.Join(DefaultStoreDir(), "snapdiff.log"))
	v.SetDefault("log.file.max_size_mb", 10)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.max_backups", 3)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads and parses a configuration file.
// If path is empty, default locations are searched for config.yaml and a
// missing file yields the defaults; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		path = ExpandPath(path)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
		}
		// no config file in any default location: run on defaults
	}

	return decode(v)
}

// LoadFromString parses configuration from a YAML string
func LoadFromString(yamlContent string) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	for i := range cfg.Transports {
		cfg.Transports[i].TokenPath = ExpandPath(cfg.Transports[i].TokenPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
