package data

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/press/internal/util/sets"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestNameFor(t *testing.T) {
	assert.Equal(t, "site", NameFor("data/site.yaml"))
	assert.Equal(t, "nav", NameFor("data/menus/nav.json"))
	assert.Equal(t, "win", NameFor("data\\win.toml"))
}

func TestLoad_Providers(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "data/site.yaml", "title: Press\nauthors:\n  - ann\n")
	writeFile(t, root, "data/nav.json", `{"items": [1, 2.5], "label": "Main"}`)
	writeFile(t, root, "data/build.toml", "version = 3\n[owner]\nname = \"x\"\n")
	reg := DefaultRegistry(ScriptOptions{})

	site := Load(t.Context(), reg, root, "data/site.yaml")
	assert.Equal(t, "site", site.Name)
	assert.Equal(t, "data/site.yaml", site.Source)
	assert.Equal(t, map[string]any{"title": "Press", "authors": []any{"ann"}}, site.Value)

	nav := Load(t.Context(), reg, root, "data/nav.json")
	assert.Equal(t, map[string]any{"items": []any{int64(1), 2.5}, "label": "Main"}, nav.Value)

	build := Load(t.Context(), reg, root, "data/build.toml")
	m, ok := build.Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(3), m["version"])
	assert.Equal(t, map[string]any{"name": "x"}, m["owner"])
}

func TestLoad_MalformedJSONResolvesToEmptyMap(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "data/broken.json", `{"a": `)
	writeFile(t, root, "data/trailing.json", `{"a": 1} junk`)
	writeFile(t, root, "data/spaced.json", "{\"a\": 1}\n\n")
	reg := DefaultRegistry(ScriptOptions{})

	e := Load(t.Context(), reg, root, "data/broken.json")
	assert.Equal(t, "broken", e.Name)
	assert.Equal(t, map[string]any{}, e.Value)

	e = Load(t.Context(), reg, root, "data/trailing.json")
	assert.Equal(t, map[string]any{}, e.Value, "content after the document fails the whole file")

	e = Load(t.Context(), reg, root, "data/spaced.json")
	assert.Equal(t, map[string]any{"a": int64(1)}, e.Value)
}

func TestLoad_SoftFailures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "data/empty.yaml", "")
	writeFile(t, root, "data/odd.csv", "a,b")
	writeFile(t, root, "data/mod.js", "module.exports = function (cb) { cb(null, {a: 1}) }")
	reg := DefaultRegistry(ScriptOptions{Node: "definitely-not-a-node-binary"})

	assert.Equal(t, map[string]any{}, Load(t.Context(), reg, root, "data/empty.yaml").Value)
	assert.Equal(t, map[string]any{}, Load(t.Context(), reg, root, "data/odd.csv").Value)
	assert.Equal(t, map[string]any{}, Load(t.Context(), reg, root, "data/missing.json").Value)
	assert.Equal(t, map[string]any{}, Load(t.Context(), reg, root, "data/mod.js").Value)
}

func TestScriptProvider(t *testing.T) {
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node not available")
	}
	root := t.TempDir()
	writeFile(t, root, "data/menu.js", "module.exports = function (cb) { cb(null, {items: ['a', 'b']}) }")
	writeFile(t, root, "data/fail.js", "module.exports = function (cb) { cb(new Error('nope')) }")
	p := NewScriptProvider(ScriptOptions{})

	v, err := p.Resolve(t.Context(), filepath.Join(root, "data", "menu.js"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": []any{"a", "b"}}, v)

	_, err = p.Resolve(t.Context(), filepath.Join(root, "data", "fail.js"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestScriptProvider_MissingInterpreter(t *testing.T) {
	p := NewScriptProvider(ScriptOptions{Node: "definitely-not-a-node-binary"})
	_, err := p.Resolve(t.Context(), "x.js")
	assert.ErrorIs(t, err, ErrNoInterpreter)
}

func TestRegistry_CustomProvider(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "data/list.txt", "ignored")
	reg := NewRegistry()
	reg.Register("txt", ProviderFunc(func(context.Context, string) (any, error) {
		return []any{"fixed"}, nil
	}))
	reg.Register(".bad", ProviderFunc(func(context.Context, string) (any, error) {
		return nil, errors.New("boom")
	}))

	assert.Equal(t, []any{"fixed"}, Load(t.Context(), reg, root, "data/list.txt").Value)
	assert.Equal(t, map[string]any{}, Load(t.Context(), reg, root, "data/x.bad").Value)
	assert.ElementsMatch(t, []string{"txt", "bad"}, reg.Extensions())
}

func TestLoadAll(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "data/a.json", `{"n": 1}`)
	writeFile(t, root, "data/nested/b.yml", "k: v")
	writeFile(t, root, "data/readme.txt", "skip")

	entries, err := LoadAll(t.Context(), DefaultRegistry(ScriptOptions{}), root, "data")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "b", entries[1].Name)
	assert.Equal(t, "data/nested/b.yml", entries[1].Source)

	entries, err = LoadAll(t.Context(), DefaultRegistry(ScriptOptions{}), root, "absent")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	tr.Record("a.md", sets.New("site", "nav"))
	tr.Record("b.md", sets.New("site"))

	assert.Equal(t, []string{"a.md", "b.md"}, tr.Dependents("site"))
	assert.Equal(t, []string{"a.md"}, tr.Dependents("nav"))

	tr.Record("a.md", sets.New("footer"))
	assert.Equal(t, []string{"b.md"}, tr.Dependents("site"))
	assert.Empty(t, tr.Dependents("nav"))

	tr.Forget("b.md")
	assert.Empty(t, tr.Dependents("site"))
	assert.Equal(t, []string{"a.md"}, tr.Dependents("footer"))

	tr.Reset()
	assert.Empty(t, tr.Dependents("footer"))
}

func TestStore_ReportsDependents(t *testing.T) {
	s := NewStore(nil)
	s.Tracker().Record("index.md", sets.New("site"))

	deps := s.Set(Entry{Name: "site", Value: map[string]any{"title": "x"}, Source: "data/site.yaml"})
	assert.Equal(t, []string{"index.md"}, deps)

	v, ok := s.Lookup("site")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"title": "x"}, v)
	assert.Equal(t, []string{"site"}, s.Names())

	deps = s.Remove("site")
	assert.Equal(t, []string{"index.md"}, deps)
	_, ok = s.Get("site")
	assert.False(t, ok)
	assert.Empty(t, s.Values())
}

func TestStore_Replace(t *testing.T) {
	s := NewStore(NewTracker())
	s.Set(Entry{Name: "old"})
	s.Replace([]Entry{{Name: "a", Value: 1}, {Name: "b", Value: 2}})
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, s.Values())
}
