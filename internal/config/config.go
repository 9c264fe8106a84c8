package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/press/internal/foundation/errors"
)

// Config is the press project configuration.
type Config struct {
	Dest           string          `yaml:"dest"`
	Src            string          `yaml:"src"`
	Data           string          `yaml:"data"`
	MetadataBuffer int             `yaml:"metadata_buffer"`
	Root           string          `yaml:"root"`
	Templates      TemplateOptions `yaml:"templates"`
	Markdown       MarkdownOptions `yaml:"markdown"`
	Watch          WatchConfig     `yaml:"watch"`
	Script         ScriptConfig    `yaml:"script"`
	Metrics        MetricsConfig   `yaml:"metrics"`
	Logging        LoggingConfig   `yaml:"logging"`
}

// TemplateOptions is passed through to the template engine.
type TemplateOptions struct {
	Autoescape bool `yaml:"autoescape"`
	Debug      bool `yaml:"debug"`
}

// MarkdownOptions is passed through to the markdown converter.
type MarkdownOptions struct {
	GFM           bool `yaml:"gfm"`
	Unsafe        bool `yaml:"unsafe"`
	HardWraps     bool `yaml:"hard_wraps"`
	AutoHeadingID bool `yaml:"auto_heading_id"`
}

// WatchConfig tunes the filesystem watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	// RenamePairWindow is how long a rename-from waits for its rename-to.
	RenamePairWindow time.Duration `yaml:"rename_pair_window"`
}

// ScriptConfig controls the script-module data provider.
type ScriptConfig struct {
	Node    string        `yaml:"node"`
	Timeout time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads, expands, defaults and validates the configuration at path.
// A relative or empty root is resolved against the directory of path.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.ConfigError("configuration file not found").WithContext("path", path).Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read config").WithContext("path", path).Build()
	}

	cfg, err := Parse([]byte(os.ExpandEnv(string(raw))))
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
	}
	return Finalize(cfg)
}

// Parse decodes YAML without applying defaults.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "unmarshal config").Build()
	}
	return &cfg, nil
}

// Finalize applies defaults, resolves Root to an absolute path and validates.
func Finalize(cfg *Config) (*Config, error) {
	ApplyDefaults(cfg)
	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve root").WithContext("root", cfg.Root).Build()
	}
	cfg.Root = abs
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).Build()
	}

	example := Default()
	example.Root = "."
	example.Markdown.GFM = true
	example.Markdown.AutoHeadingID = true
	out, err := yaml.Marshal(&example)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "marshal example config").Build()
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write config").WithContext("path", path).Build()
	}
	return nil
}

// SrcDir returns the absolute page root.
func (c *Config) SrcDir() string { return filepath.Join(c.Root, c.Src) }

// DataDir returns the absolute data root.
func (c *Config) DataDir() string { return filepath.Join(c.Root, c.Data) }

// DestDir returns the absolute output root.
func (c *Config) DestDir() string { return filepath.Join(c.Root, c.Dest) }
