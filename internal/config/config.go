package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultExpectedDirName is the directory name every target's asset
	// directory must carry for a pull to be accepted.
	DefaultExpectedDirName = ".claude"

	// TargetsFileName is the default name of the target list, which lives
	// next to the canonical root.
	TargetsFileName = "targets.txt"

	// DefaultWatchDebounce is the quiet period before watch mode pushes.
	DefaultWatchDebounce = 2 * time.Second
)

// Config represents the complete claudesync configuration
type Config struct {
	Paths PathsConfig `yaml:"paths"`
	Sync  SyncConfig  `yaml:"sync"`
}

// PathsConfig locates the canonical asset root and the target list
type PathsConfig struct {
	CanonicalRoot string `yaml:"canonical_root"`
	TargetsFile   string `yaml:"targets_file"`
}

// SyncConfig configures sync behavior
type SyncConfig struct {
	ExpectedDirName string        `yaml:"expected_dir_name"`
	PushSettings    bool          `yaml:"push_settings"`
	Ignore          []string      `yaml:"ignore"`
	WatchDebounce   time.Duration `yaml:"watch_debounce"`
}

// Load reads and parses the configuration file, then applies defaults and
// validates the result
func Load(path string) (*Config, error) {
	cfg, err := Parse(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse reads the configuration file and expands environment variables
// without applying defaults or validating, so callers can layer overrides
// on top before calling ApplyDefaults and Validate.
func Parse(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	return &cfg, nil
}

// Default returns a configuration rooted at canonicalRoot with every other
// field defaulted. The result is not validated.
func Default(canonicalRoot string) *Config {
	cfg := &Config{
		Paths: PathsConfig{CanonicalRoot: canonicalRoot},
	}
	cfg.ApplyDefaults()
	return cfg
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Paths.CanonicalRoot = os.ExpandEnv(c.Paths.CanonicalRoot)
	c.Paths.TargetsFile = os.ExpandEnv(c.Paths.TargetsFile)
	c.Sync.ExpectedDirName = os.ExpandEnv(c.Sync.ExpectedDirName)
}

// ApplyDefaults fills in zero-value fields. The targets file defaults to
// targets.txt one level above the canonical root.
func (c *Config) ApplyDefaults() {
	if c.Paths.CanonicalRoot != "" {
		c.Paths.CanonicalRoot = filepath.Clean(c.Paths.CanonicalRoot)
	}
	if c.Paths.TargetsFile == "" && c.Paths.CanonicalRoot != "" {
		c.Paths.TargetsFile = filepath.Join(filepath.Dir(c.Paths.CanonicalRoot), TargetsFileName)
	}
	if c.Sync.ExpectedDirName == "" {
		c.Sync.ExpectedDirName = DefaultExpectedDirName
	}
	if c.Sync.WatchDebounce == 0 {
		c.Sync.WatchDebounce = DefaultWatchDebounce
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Paths.CanonicalRoot == "" {
		return fmt.Errorf("paths.canonical_root is required")
	}
	if c.Paths.TargetsFile == "" {
		return fmt.Errorf("paths.targets_file is required")
	}

	// Ensure paths are absolute
	if !filepath.IsAbs(c.Paths.CanonicalRoot) {
		return fmt.Errorf("paths.canonical_root must be an absolute path: %s", c.Paths.CanonicalRoot)
	}
	if !filepath.IsAbs(c.Paths.TargetsFile) {
		return fmt.Errorf("paths.targets_file must be an absolute path: %s", c.Paths.TargetsFile)
	}

	name := c.Sync.ExpectedDirName
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("sync.expected_dir_name must be a plain directory name: %q", name)
	}

	for _, pattern := range c.Sync.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("sync.ignore contains an invalid pattern: %q", pattern)
		}
	}

	if c.Sync.WatchDebounce < 0 {
		return fmt.Errorf("sync.watch_debounce must not be negative: %s", c.Sync.WatchDebounce)
	}

	return nil
}
