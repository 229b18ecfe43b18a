// Package config provides configuration management for assetsync.
// It supports YAML and TOML configuration files, environment variables, and sensible defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/klauern/assetsync/internal/logging"
	"github.com/klauern/assetsync/internal/manifest"
	"github.com/klauern/assetsync/internal/model"
	"github.com/klauern/assetsync/internal/sync"
	"github.com/klauern/assetsync/internal/util"
)

// Config represents the complete assetsync configuration.
type Config struct {
	// Sync configures the synchronization engine
	Sync SyncConfig `yaml:"sync" toml:"sync"`

	// Platform overrides the detected host platform
	Platform PlatformConfig `yaml:"platform" toml:"platform"`

	// Manifest configures where descriptor content is fetched from
	Manifest ManifestConfig `yaml:"manifest" toml:"manifest"`

	// Output configures display preferences
	Output OutputConfig `yaml:"output" toml:"output"`

	// Log configures structured logging
	Log LogConfig `yaml:"log" toml:"log"`

	// Metrics configures the Prometheus textfile export
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// SyncConfig holds synchronization settings.
type SyncConfig struct {
	// Root is the directory artifacts are installed into
	Root string `yaml:"root" toml:"root"`
	// Concurrency is the number of parallel fetches
	Concurrency int `yaml:"concurrency" toml:"concurrency"`
	// StallTimeout aborts a download that receives nothing for this long
	StallTimeout time.Duration `yaml:"stall_timeout" toml:"stall_timeout"`
}

// PlatformConfig holds platform overrides. Empty values use the host.
type PlatformConfig struct {
	OS   string `yaml:"os,omitempty" toml:"os,omitempty"`
	Arch string `yaml:"arch,omitempty" toml:"arch,omitempty"`
}

// ManifestConfig holds descriptor settings.
type ManifestConfig struct {
	// AssetBaseURL is the object store asset indexes resolve against
	AssetBaseURL string `yaml:"asset_base_url" toml:"asset_base_url"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Color controls color output (auto, always, never)
	Color string `yaml:"color" toml:"color"`
	// Progress enables the terminal progress bar
	Progress bool `yaml:"progress" toml:"progress"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum level logged (debug, info, warn, error)
	Level string `yaml:"level" toml:"level"`
	// JSON switches log output to JSON
	JSON bool `yaml:"json" toml:"json"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	// Textfile is written with run metrics after each sync when set
	Textfile string `yaml:"textfile,omitempty" toml:"textfile,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			Root:         util.DefaultRoot(),
			Concurrency:  sync.DefaultConcurrency,
			StallTimeout: sync.DefaultStallTimeout,
		},
		Manifest: ManifestConfig{
			AssetBaseURL: manifest.DefaultAssetBaseURL,
		},
		Output: OutputConfig{
			Color:    "auto",
			Progress: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// configFileName is the name of the config file.
const configFileName = "config.yaml"

// FilePath returns the path to the config file.
func FilePath() string {
	return filepath.Join(util.AssetsyncConfigPath(), configFileName)
}

// Load loads the configuration from file, merging with defaults.
// If the config file doesn't exist, returns default configuration.
func Load() (*Config, error) {
	cfg := Default()

	configPath := FilePath()
	// #nosec G304 - configPath is constructed from trusted config directory
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvironment()
			return cfg, nil
		}
		return nil, err
	}

	if err := decode(configPath, data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path. Files ending in
// .toml are parsed as TOML, everything else as YAML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	return c.SaveToPath(FilePath())
}

// SaveToPath writes the configuration to a specific path, in TOML when
// the path ends in .toml and YAML otherwise.
func (c *Config) SaveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	data, err := c.Encode(isTOML(path))
	if err != nil {
		return err
	}

	// #nosec G306 - config file should be readable by user
	return os.WriteFile(path, data, 0o644)
}

// Encode renders the configuration as YAML, or TOML when asTOML is set.
func (c *Config) Encode(asTOML bool) ([]byte, error) {
	if !asTOML {
		return yaml.Marshal(c)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func decode(path string, data []byte, cfg *Config) error {
	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// applyEnvironment applies environment variable overrides.
// Environment variables follow the pattern ASSETSYNC_<SECTION>_<KEY>.
func (c *Config) applyEnvironment() {
	// Sync settings
	if v := os.Getenv("ASSETSYNC_SYNC_ROOT"); v != "" {
		c.Sync.Root = v
	}
	if v := os.Getenv("ASSETSYNC_SYNC_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.Concurrency = n
		}
	}
	if v := os.Getenv("ASSETSYNC_SYNC_STALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Sync.StallTimeout = d
		}
	}

	// Platform overrides
	if v := os.Getenv("ASSETSYNC_PLATFORM_OS"); v != "" {
		c.Platform.OS = v
	}
	if v := os.Getenv("ASSETSYNC_PLATFORM_ARCH"); v != "" {
		c.Platform.Arch = v
	}

	// Manifest settings
	if v := os.Getenv("ASSETSYNC_MANIFEST_ASSET_BASE_URL"); v != "" {
		c.Manifest.AssetBaseURL = v
	}

	// Output settings
	if v := os.Getenv("ASSETSYNC_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
	if v := os.Getenv("ASSETSYNC_OUTPUT_PROGRESS"); v != "" {
		c.Output.Progress = parseBool(v)
	}

	// Log settings
	if v := os.Getenv("ASSETSYNC_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ASSETSYNC_LOG_JSON"); v != "" {
		c.Log.JSON = parseBool(v)
	}

	// Metrics settings
	if v := os.Getenv("ASSETSYNC_METRICS_TEXTFILE"); v != "" {
		c.Metrics.Textfile = v
	}
}

// parseBool parses a boolean from common string representations.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// ResolvePlatform resolves the configured overrides against the host platform.
func (c *Config) ResolvePlatform() (model.Platform, error) {
	p := model.HostPlatform()
	if c.Platform.OS != "" {
		family, err := model.ParseOS(c.Platform.OS)
		if err != nil {
			return model.Platform{}, err
		}
		p.OS = family
	}
	if c.Platform.Arch != "" {
		p.Arch = model.NormalizeArch(c.Platform.Arch)
	}
	return p, nil
}

// RootPath returns the sync root with ~ and relative paths expanded.
func (c *Config) RootPath() string {
	wd, _ := os.Getwd()
	return util.ExpandPath(c.Sync.Root, wd)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Sync.Root == "" {
		errs = append(errs, errors.New("sync.root must not be empty"))
	}
	if c.Sync.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("sync.concurrency must be at least 1, got %d", c.Sync.Concurrency))
	}
	if _, err := c.ResolvePlatform(); err != nil {
		errs = append(errs, fmt.Errorf("platform.os: %w", err))
	}
	switch strings.ToLower(c.Output.Color) {
	case "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("output.color must be auto, always or never, got %q", c.Output.Color))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// Exists returns true if a config file exists.
func Exists() bool {
	_, err := os.Stat(FilePath())
	return err == nil
}
