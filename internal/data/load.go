package data

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/press/internal/logfields"
)

// Entry is one resolved data source.
type Entry struct {
	Name   string
	Value  any
	Source string
}

var errNoProvider = errors.New("no provider for extension")

// NameFor derives the data name from a source path: the base name without
// its extension.
func NameFor(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// Load resolves the data source at rel (relative to root). It never fails:
// a provider error is logged and the entry carries an empty map.
func Load(ctx context.Context, reg *Registry, root, rel string) Entry {
	rel = filepath.ToSlash(rel)
	e := Entry{Name: NameFor(rel), Source: rel}

	value, err := resolve(ctx, reg, filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		slog.Warn("Data source could not be resolved, using empty value",
			logfields.Data(e.Name),
			logfields.Path(rel),
			logfields.Error(err))
		e.Value = map[string]any{}
		return e
	}
	if value == nil {
		value = map[string]any{}
	}
	e.Value = value
	return e
}

func resolve(ctx context.Context, reg *Registry, abs string) (any, error) {
	p, ok := reg.For(abs)
	if !ok {
		return nil, errNoProvider
	}
	return p.Resolve(ctx, abs)
}

// Discover lists data sources under dir (relative to root) whose extension
// has a provider. A missing directory yields nothing.
func Discover(reg *Registry, root, dir string) ([]string, error) {
	base := filepath.Join(root, filepath.FromSlash(dir))
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, nil
	}
	var out []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := reg.For(p); !ok {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// LoadAll resolves every discovered source concurrently and returns once all
// of them finished, in source path order.
func LoadAll(ctx context.Context, reg *Registry, root, dir string) ([]Entry, error) {
	rels, err := Discover(reg, root, dir)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(rels))
	var wg sync.WaitGroup
	for i, rel := range rels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entries[i] = Load(ctx, reg, root, rel)
		}()
	}
	wg.Wait()
	return entries, ctx.Err()
}
