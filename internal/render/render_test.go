package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/press/internal/foundation/errors"
	"git.home.luguber.info/inful/press/internal/data"
	"git.home.luguber.info/inful/press/internal/page"
	"git.home.luguber.info/inful/press/internal/pipeline"
)

type fixture struct {
	root  string
	opts  page.LoadOptions
	dest  string
	pages *page.Store
	data  *data.Store
	r     *Renderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:  root,
		opts:  page.LoadOptions{Root: root, Src: "src", MetadataBuffer: 1024},
		dest:  filepath.Join(root, "build"),
		pages: page.NewStore(),
		data:  data.NewStore(nil),
	}
	f.r = New(Options{SrcDir: filepath.Join(root, "src"), DestDir: f.dest, MetadataBuffer: 1024})
	return f
}

func (f *fixture) file(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func (f *fixture) load(t *testing.T, rel string) *page.Page {
	t.Helper()
	p, err := page.Load(f.opts, rel)
	require.NoError(t, err)
	require.NoError(t, f.pages.Add(p))
	return p
}

func (f *fixture) state() *pipeline.State {
	return pipeline.NewState("b1", nil, f.pages, f.data, map[string]any{"site_name": "Press"}, nil)
}

func (f *fixture) output(t *testing.T, rel string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(f.dest, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(raw)
}

func TestRenderAll_MarkdownWithLayoutAndData(t *testing.T) {
	f := newFixture(t)
	f.file(t, "src/_layout.html", "<title>{{ title }} | {{ site_name }}</title><main>{{ content }}</main>")
	f.file(t, "src/index.md", "---\ntitle: Home\nlayout: _layout\n---\n# {{ title }}\n\nBy {{ data(\"site\").author }}\n")
	f.data.Set(data.Entry{Name: "site", Value: map[string]any{"author": "Ann"}})
	p := f.load(t, "index.md")

	sum, err := f.r.RenderAll(t.Context(), f.state())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Rendered)

	out := f.output(t, "index.html")
	assert.Equal(t, "<title>Home | Press</title><main><h1>Home</h1>\n<p>By Ann</p>\n</main>", out)
	assert.False(t, p.Dirty)
	assert.Equal(t, "index.html", p.OutputPath)
	assert.True(t, p.DataDependencies.Has("site"))
	assert.Equal(t, []string{"index.md"}, f.data.Tracker().Dependents("site"))
}

func TestRenderAll_DeclaredDataCountsAsDependency(t *testing.T) {
	f := newFixture(t)
	f.file(t, "src/about.html", "---\ndata: nav\n---\n<p>static</p>")
	f.load(t, "about.html")

	_, err := f.r.RenderAll(t.Context(), f.state())
	require.NoError(t, err)
	assert.Equal(t, "<p>static</p>", f.output(t, "about.html"))
	assert.Equal(t, []string{"about.html"}, f.data.Tracker().Dependents("nav"))
}

func TestRenderAll_SkipsIgnoredAndDropsTheirOutput(t *testing.T) {
	f := newFixture(t)
	f.file(t, "src/draft.md", "draft")
	p := f.load(t, "draft.md")

	_, err := f.r.RenderAll(t.Context(), f.state())
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(f.dest, "draft.html"))

	p.Merge(map[string]any{page.KeyIgnore: true})
	sum, err := f.r.RenderAll(t.Context(), f.state())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Rendered)
	assert.Equal(t, 1, sum.Ignored)
	assert.NoFileExists(t, filepath.Join(f.dest, "draft.html"))
}

func TestRenderAll_OutputCollisionFails(t *testing.T) {
	f := newFixture(t)
	f.file(t, "src/a.md", "a")
	f.file(t, "src/a.html", "a")
	f.load(t, "a.md")
	f.load(t, "a.html")

	_, err := f.r.RenderAll(t.Context(), f.state())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestRenderAll_RoutesMoveOutput(t *testing.T) {
	f := newFixture(t)
	f.file(t, "src/blog/post.md", "post")
	p := f.load(t, "blog/post.md")

	_, err := f.r.RenderAll(t.Context(), f.state())
	require.NoError(t, err)

	st := f.state()
	st.Route(func(dest string) string { return strings.TrimSuffix(dest, ".html") + "/index.html" })
	_, err = f.r.RenderAll(t.Context(), st)
	require.NoError(t, err)

	assert.Equal(t, "blog/post/index.html", p.OutputPath)
	assert.FileExists(t, filepath.Join(f.dest, "blog", "post", "index.html"))
	assert.NoFileExists(t, filepath.Join(f.dest, "blog", "post.html"))
}

func TestRenderAll_TemplateErrorIsRenderError(t *testing.T) {
	f := newFixture(t)
	f.file(t, "src/bad.html", "{% if %}")
	f.load(t, "bad.html")

	_, err := f.r.RenderAll(t.Context(), f.state())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRender))
}

func TestRender_PostRenderFilters(t *testing.T) {
	f := newFixture(t)
	f.file(t, "src/x.html", "x")
	p := f.load(t, "x.html")

	st := f.state()
	st.PostRender("upper", func(_ *pipeline.State, _ *page.Page, out []byte) ([]byte, error) {
		return []byte(strings.ToUpper(string(out))), nil
	})
	res, err := f.r.Render(st, p)
	require.NoError(t, err)
	assert.Equal(t, "X", string(res.Output))
}

func TestInvalidate(t *testing.T) {
	f := newFixture(t)
	f.file(t, "src/page.html", "v1")
	p := f.load(t, "page.html")

	res, err := f.r.Render(f.state(), p)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(res.Output))

	f.file(t, "src/page.html", "v2")
	res, err = f.r.Render(f.state(), p)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(res.Output), "cached until invalidated")

	f.r.Invalidate("page")
	res, err = f.r.Render(f.state(), p)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(res.Output))
}

func TestInvalidate_PartialFlushesEverything(t *testing.T) {
	f := newFixture(t)
	f.file(t, "src/_nav.html", "nav1")
	f.file(t, "src/page.html", "{% include \"_nav\" %}")
	p := f.load(t, "page.html")

	res, err := f.r.Render(f.state(), p)
	require.NoError(t, err)
	assert.Equal(t, "nav1", string(res.Output))

	f.file(t, "src/_nav.html", "nav2")
	f.r.Invalidate("_nav")
	res, err = f.r.Render(f.state(), p)
	require.NoError(t, err)
	assert.Equal(t, "nav2", string(res.Output))
}

func TestRemoveOutput(t *testing.T) {
	f := newFixture(t)
	f.file(t, "src/deep/one.md", "one")
	p := f.load(t, "deep/one.md")
	_, err := f.r.RenderAll(t.Context(), f.state())
	require.NoError(t, err)

	f.r.RemoveOutput(p)
	assert.NoFileExists(t, filepath.Join(f.dest, "deep", "one.html"))
	assert.NoDirExists(t, filepath.Join(f.dest, "deep"))
	assert.DirExists(t, f.dest)
}

func TestSourceLoader(t *testing.T) {
	l := &sourceLoader{}
	assert.Equal(t, "blog/_side", l.Abs("blog/post.md", "./_side"))
	assert.Equal(t, "_layout", l.Abs("blog/post.md", "_layout"))
	assert.Equal(t, "a/b", l.Abs("", "/a//b"))
	assert.Equal(t, []string{"x.md"}, candidates("x.md"))
	assert.Equal(t, []string{"x.html", "x.md", "x.markdown", "x"}, candidates("x"))
}
