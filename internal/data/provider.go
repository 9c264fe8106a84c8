// Package data loads named data sources and tracks which pages consume them.
package data

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Provider resolves the value of one data source file.
type Provider interface {
	Resolve(ctx context.Context, path string) (any, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, path string) (any, error)

func (f ProviderFunc) Resolve(ctx context.Context, path string) (any, error) { return f(ctx, path) }

// Registry selects a provider by file extension.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// DefaultRegistry knows JSON, YAML, TOML and script modules.
func DefaultRegistry(script ScriptOptions) *Registry {
	r := NewRegistry()
	r.Register(".json", ProviderFunc(resolveJSON))
	r.Register(".yaml", ProviderFunc(resolveYAML))
	r.Register(".yml", ProviderFunc(resolveYAML))
	r.Register(".toml", ProviderFunc(resolveTOML))
	r.Register(".js", NewScriptProvider(script))
	return r
}

// Register binds ext (with or without leading dot) to p, replacing any
// previous binding.
func (r *Registry) Register(ext string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[normalizeExt(ext)] = p
}

// For returns the provider for path's extension.
func (r *Registry) For(path string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[normalizeExt(filepath.Ext(path))]
	return p, ok
}

// Extensions lists the registered extensions without the leading dot.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for ext := range r.providers {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func resolveJSON(_ context.Context, path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode json: trailing content after top-level value")
	}
	return normalizeNumbers(v), nil
}

func resolveYAML(_ context.Context, path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return v, nil
}

func resolveTOML(_ context.Context, path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v := map[string]any{}
	if err := toml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode toml: %w", err)
	}
	return v, nil
}

// normalizeNumbers turns json.Number into int64 where exact, float64 otherwise,
// so templates compare integers the same way across providers.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	}
	return v
}
