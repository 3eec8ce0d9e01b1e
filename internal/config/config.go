package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/enablement"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PLUGKIT_"

// Config is the bootstrap configuration.
type Config struct {
	// PluginDirs are scanned for archive and directory containers.
	PluginDirs []string `toml:"pluginDirs" env:"PLUGIN_DIRS"`

	// SearchPaths are the host's own code-search-path entries.
	SearchPaths []string `toml:"searchPaths" env:"SEARCH_PATHS"`

	// Profile selects the enablement profile.
	Profile string `toml:"profile" env:"PROFILE"`

	// Filter, when set, enables only the listed identities.
	Filter []string `toml:"filter" env:"FILTER"`

	// ConfigRoot holds versioned plugin configuration directories.
	ConfigRoot string `toml:"configRoot" env:"CONFIG_ROOT"`

	// EnabledList is the enablement document.
	EnabledList string `toml:"enabledList" env:"ENABLED_LIST"`

	// Revisions is the revision marker document.
	Revisions string `toml:"revisions" env:"REVISIONS"`

	// Framework identity
	FrameworkVersion  string `toml:"frameworkVersion" env:"FRAMEWORK_VERSION"`
	FrameworkRevision int    `toml:"frameworkRevision" env:"FRAMEWORK_REVISION"`

	// Capabilities available to containers.
	Capabilities []string `toml:"capabilities" env:"CAPABILITIES"`

	// Scanning
	ScanPrefixes []string `toml:"scanPrefixes" env:"SCAN_PREFIXES"`
	ScanDepth    int      `toml:"scanDepth" env:"SCAN_DEPTH"`

	// Locale selects localized container descriptions.
	Locale string `toml:"locale" env:"LOCALE"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"logLevel" env:"LOG_LEVEL"`

	// MetricsAddr, when set, serves Prometheus metrics after startup.
	MetricsAddr string `toml:"metricsAddr" env:"METRICS_ADDR"`
}

// DefaultDir returns the default plugkit directory.
func DefaultDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "plugkit")
	}
	return ".plugkit"
}

// Default returns the default configuration.
func Default() Config {
	base := DefaultDir()
	dirs := []string{filepath.Join(base, "plugins")}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(cwd, "plugins"))
	}

	return Config{
		PluginDirs:        dirs,
		Profile:           enablement.DefaultProfile,
		ConfigRoot:        filepath.Join(base, "config"),
		EnabledList:       filepath.Join(base, "enabled.toml"),
		Revisions:         filepath.Join(base, "config", "revisions.toml"),
		FrameworkVersion:  "1.0",
		FrameworkRevision: 1,
		ScanPrefixes:      []string{"Plugin"},
		ScanDepth:         container.DefaultMaxDepth,
		LogLevel:          "info",
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Profile) == "" {
		errs = append(errs, errors.New("profile must not be empty"))
	}
	if c.ConfigRoot == "" {
		errs = append(errs, errors.New("configRoot must not be empty"))
	}
	if c.FrameworkRevision < 0 {
		errs = append(errs, fmt.Errorf("frameworkRevision must not be negative, got %d", c.FrameworkRevision))
	}
	if c.ScanDepth < 1 {
		errs = append(errs, fmt.Errorf("scanDepth must be at least 1, got %d", c.ScanDepth))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown logLevel %q", c.LogLevel))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
