package config

import (
	"os"
	"time"
)

const (
	DefaultDest           = "build"
	DefaultSrc            = "src"
	DefaultData           = "data"
	DefaultMetadataBuffer = 1024
	DefaultDebounce       = 300 * time.Millisecond
	DefaultRenameWindow   = 100 * time.Millisecond
	DefaultScriptTimeout  = 30 * time.Second
	DefaultMetricsListen  = ":9464"
)

// Default returns a configuration with every default applied, rooted at the
// current working directory.
func Default() Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields. Explicit values are left untouched.
func ApplyDefaults(cfg *Config) {
	if cfg.Dest == "" {
		cfg.Dest = DefaultDest
	}
	if cfg.Src == "" {
		cfg.Src = DefaultSrc
	}
	if cfg.Data == "" {
		cfg.Data = DefaultData
	}
	if cfg.MetadataBuffer == 0 {
		cfg.MetadataBuffer = DefaultMetadataBuffer
	}
	if cfg.Root == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Root = wd
		} else {
			cfg.Root = "."
		}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
	if cfg.Watch.RenamePairWindow == 0 {
		cfg.Watch.RenamePairWindow = DefaultRenameWindow
	}
	if cfg.Script.Node == "" {
		cfg.Script.Node = "node"
	}
	if cfg.Script.Timeout == 0 {
		cfg.Script.Timeout = DefaultScriptTimeout
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
