// Package extensions holds the built-in pipeline steps.
package extensions

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"github.com/gobwas/glob"

	"git.home.luguber.info/inful/press/internal/page"
	"git.home.luguber.info/inful/press/internal/pipeline"
)

// Compile builds a source path matcher. "**" spans directories, "*" does not.
func Compile(pattern string) (glob.Glob, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return g, nil
}

// Metadata merges values into every page whose source path matches pattern.
// Later steps see the merged values; on a key clash the step wins over front
// matter.
func Metadata(pattern string, values map[string]any) (pipeline.Runner, error) {
	g, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	values = maps.Clone(values)
	return pipeline.Func("metadata:"+pattern, func(_ context.Context, st *pipeline.State) error {
		for _, p := range st.Pages.All() {
			if g.Match(p.SourcePath) {
				p.Merge(values)
			}
		}
		return nil
	}), nil
}

// Ignore keeps matching pages in the store but out of the output.
func Ignore(pattern string) (pipeline.Runner, error) {
	return Metadata(pattern, map[string]any{page.KeyIgnore: true})
}

// Layout wraps matching pages in the named layout template.
func Layout(pattern, layout string) (pipeline.Runner, error) {
	return Metadata(pattern, map[string]any{page.KeyLayout: layout})
}

// Collection groups matching non-ignored pages under name, ordered by
// source path.
func Collection(name, pattern string) (pipeline.Runner, error) {
	g, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	return pipeline.Func("collection:"+name, func(_ context.Context, st *pipeline.State) error {
		var members []*page.Page
		for _, p := range st.Pages.All() {
			if !p.Ignored() && g.Match(p.SourcePath) {
				members = append(members, p)
			}
		}
		sort.SliceStable(members, func(i, j int) bool { return members[i].SourcePath < members[j].SourcePath })
		st.Collections[name] = members
		return nil
	}), nil
}
