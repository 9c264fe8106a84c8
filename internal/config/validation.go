package config

import (
	"log/slog"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/press/internal/foundation/errors"
)

// Validate checks structural constraints that defaults cannot repair.
func (c *Config) Validate() error {
	if c.MetadataBuffer < 0 {
		return ferrors.ValidationError("metadata_buffer must not be negative").WithContext("metadata_buffer", c.MetadataBuffer).Build()
	}
	dirs := []struct{ name, dir string }{{"src", c.Src}, {"data", c.Data}, {"dest", c.Dest}}
	for _, d := range dirs {
		if filepath.IsAbs(d.dir) {
			return ferrors.ValidationError(d.name+" must be relative to root").WithContext(d.name, d.dir).Build()
		}
		if strings.HasPrefix(filepath.Clean(d.dir), "..") {
			return ferrors.ValidationError(d.name+" must stay inside root").WithContext(d.name, d.dir).Build()
		}
	}
	// Output under the page root would be read back as pages.
	if within(c.Dest, c.Src) {
		return ferrors.ValidationError("dest must not be inside src").WithContext("dest", c.Dest).WithContext("src", c.Src).Build()
	}
	if c.Watch.Debounce < 0 || c.Watch.RenamePairWindow < 0 {
		return ferrors.ValidationError("watch durations must not be negative").Build()
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return ferrors.ValidationError("logging.format must be text or json").WithContext("format", c.Logging.Format).Build()
	}
	return nil
}

// within reports whether dir is parent or lies below it.
func within(dir, parent string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(dir))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ParseLevel maps a configured level name onto slog.
func ParseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid logging.level").WithContext("level", raw).Build()
	}
	return level, nil
}
