// Package render expands page templates, converts markdown and writes the
// output tree.
package render

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/flosch/pongo2/v6"

	ferrors "git.home.luguber.info/inful/press/internal/foundation/errors"
	"git.home.luguber.info/inful/press/internal/logfields"
	"git.home.luguber.info/inful/press/internal/markdown"
	"git.home.luguber.info/inful/press/internal/page"
	"git.home.luguber.info/inful/press/internal/pipeline"
	"git.home.luguber.info/inful/press/internal/util/sets"
)

// Options configures a Renderer.
type Options struct {
	SrcDir     string
	DestDir    string
	Autoescape bool
	Debug      bool
	Markdown   markdown.Options
	// MetadataBuffer bounds front matter detection in template sources.
	MetadataBuffer int
}

// Renderer owns the template cache and the markdown converter.
type Renderer struct {
	set  *pongo2.TemplateSet
	md   *markdown.Converter
	dest string
}

func New(opts Options) *Renderer {
	// The engine keeps autoescaping as a process-wide switch.
	pongo2.SetAutoescape(opts.Autoescape)
	set := pongo2.NewSet("press", &sourceLoader{dir: opts.SrcDir, limit: opts.MetadataBuffer})
	set.Debug = opts.Debug
	return &Renderer{
		set:  set,
		md:   markdown.NewConverter(opts.Markdown),
		dest: opts.DestDir,
	}
}

// Converter exposes the markdown converter to helpers.
func (r *Renderer) Converter() *markdown.Converter { return r.md }

// Invalidate makes the cache forget names. A bare name also drops every
// extension variant, a source path also drops its bare name. Names with the
// exclusion marker are partials or layouts that other templates may have
// inlined at parse time, so they flush the whole cache.
func (r *Renderer) Invalidate(names ...string) {
	var keys []string
	for _, n := range names {
		if n == "" {
			continue
		}
		if page.Excluded(n) {
			slog.Debug("Flushing template cache", logfields.Template(n))
			r.set.CleanCache()
			return
		}
		keys = append(keys, n)
		if page.IsPageSource(n) {
			n = page.TemplateName(n)
			keys = append(keys, n)
		}
		for _, ext := range lookupOrder {
			keys = append(keys, n+ext)
		}
	}
	if len(keys) > 0 {
		r.set.CleanCache(keys...)
	}
}

// Result is one rendered page.
type Result struct {
	Output []byte
	// Deps holds the data names read through data() plus the declared ones.
	Deps sets.Set[string]
}

var identifier = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

func (r *Renderer) context(st *pipeline.State, p *page.Page, deps sets.Set[string]) pongo2.Context {
	c := pongo2.Context{}
	put := func(values map[string]any) {
		for k, v := range values {
			if identifier.MatchString(k) {
				c[k] = v
			}
		}
	}
	put(st.Globals)
	put(p.Metadata)
	put(st.PageData[p.SourcePath])
	put(st.Helpers)

	c["page"] = p.Metadata
	c["globals"] = st.Globals
	c["collections"] = collectionsView(st)
	c["build"] = buildView(st)
	c["data"] = func(name string) any {
		deps.Add(name)
		if st.Data == nil {
			return nil
		}
		v, _ := st.Data.Lookup(name)
		return v
	}
	return c
}

// Render expands one page without writing it.
func (r *Renderer) Render(st *pipeline.State, p *page.Page) (Result, error) {
	deps := sets.New(p.DeclaredData()...)
	c := r.context(st, p, deps)

	tpl, err := r.set.FromCache(p.SourcePath)
	if err != nil {
		return Result{}, renderError(err, p, p.SourcePath, "parse page template")
	}
	out, err := tpl.ExecuteBytes(c)
	if err != nil {
		return Result{}, renderError(err, p, p.SourcePath, "execute page template")
	}

	if p.Markdown {
		if out, err = r.md.Convert(out); err != nil {
			return Result{}, renderError(err, p, p.SourcePath, "convert markdown")
		}
	}

	if layout := p.Layout(); layout != "" {
		lt, err := r.set.FromCache(layout)
		if err != nil {
			return Result{}, renderError(err, p, layout, "parse layout")
		}
		c["content"] = pongo2.AsSafeValue(string(out))
		if out, err = lt.ExecuteBytes(c); err != nil {
			return Result{}, renderError(err, p, layout, "execute layout")
		}
	}

	for _, f := range st.Filters {
		if out, err = f.Fn(st, p, out); err != nil {
			return Result{}, renderError(err, p, f.Name, "post-render filter")
		}
	}
	return Result{Output: out, Deps: deps}, nil
}

func renderError(err error, p *page.Page, template, msg string) error {
	return ferrors.WrapError(err, ferrors.CategoryRender, msg).
		WithRetry(ferrors.RetryOnChange).
		WithContext("page", p.SourcePath).
		WithContext("template", template).
		Build()
}

// Summary reports a render phase.
type Summary struct {
	Rendered int
	Ignored  int
}

// RenderAll renders every non-ignored page in store order and writes it. The
// first failure stops the phase; pages already written stay written.
func (r *Renderer) RenderAll(ctx context.Context, st *pipeline.State) (Summary, error) {
	pages := st.Pages.All()
	if err := checkCollisions(st, pages); err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if p.Ignored() {
			sum.Ignored++
			r.dropOutput(p)
			continue
		}

		prev := p.OutputPath
		p.OutputPath = st.OutputFor(p.DestPath)

		res, err := r.Render(st, p)
		if err != nil {
			return sum, err
		}
		if err := r.write(p.OutputPath, res.Output); err != nil {
			return sum, err
		}
		if prev != "" && prev != p.OutputPath {
			r.remove(prev)
		}

		p.MarkClean(res.Deps)
		if st.Data != nil {
			st.Data.Tracker().Record(p.SourcePath, res.Deps)
		}
		sum.Rendered++
		slog.Debug("Rendered page", logfields.BuildID(st.BuildID), logfields.Page(p.SourcePath), logfields.Path(p.OutputPath))
	}
	return sum, nil
}

func checkCollisions(st *pipeline.State, pages []*page.Page) error {
	seen := make(map[string]string, len(pages))
	for _, p := range pages {
		if p.Ignored() {
			continue
		}
		out := st.OutputFor(p.DestPath)
		if other, ok := seen[out]; ok {
			return ferrors.ValidationError("two pages render to the same output path").
				WithContext("path", out).
				WithContext("page", p.SourcePath).
				WithContext("other", other).
				Build()
		}
		seen[out] = p.SourcePath
	}
	return nil
}

func (r *Renderer) write(rel string, content []byte) error {
	abs := filepath.Join(r.dest, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output directory").WithContext("path", rel).Build()
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write output").WithContext("path", rel).Build()
	}
	return nil
}

// RemoveOutput deletes what the page last rendered to, and its plain
// destination when that differs.
func (r *Renderer) RemoveOutput(p *page.Page) {
	r.dropOutput(p)
	r.remove(p.DestPath)
}

func (r *Renderer) dropOutput(p *page.Page) {
	if p.OutputPath != "" {
		r.remove(p.OutputPath)
		p.OutputPath = ""
	}
}

func (r *Renderer) remove(rel string) {
	if rel == "" {
		return
	}
	abs := filepath.Join(r.dest, filepath.FromSlash(rel))
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove output", logfields.Path(rel), logfields.Error(err))
		return
	}
	pruneEmptyDirs(filepath.Dir(abs), r.dest)
}

// pruneEmptyDirs removes now-empty directories up to, not including, stop.
func pruneEmptyDirs(dir, stop string) {
	stop = filepath.Clean(stop)
	for dir = filepath.Clean(dir); dir != stop && len(dir) > len(stop); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

func collectionsView(st *pipeline.State) map[string]any {
	out := make(map[string]any, len(st.Collections))
	for name, pages := range st.Collections {
		items := make([]map[string]any, 0, len(pages))
		for _, p := range pages {
			items = append(items, p.Metadata)
		}
		out[name] = items
	}
	return out
}

func buildView(st *pipeline.State) map[string]any {
	var names []string
	if st.Data != nil {
		names = st.Data.Names()
	}
	return map[string]any{
		"build_id":    st.BuildID,
		"built_at":    st.Started,
		"pages":       st.Stats.Pages,
		"ignored":     st.Stats.Ignored,
		"dirty":       st.Stats.Dirty,
		"fingerprint": st.Stats.Fingerprint,
		"collections": st.Stats.Collections,
		"data":        names,
	}
}
