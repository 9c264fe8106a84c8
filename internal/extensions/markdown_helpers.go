package extensions

import (
	"context"
	"path"
	"strings"

	"github.com/flosch/pongo2/v6"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/press/internal/markdown"
	"git.home.luguber.info/inful/press/internal/page"
	"git.home.luguber.info/inful/press/internal/pipeline"
)

// MarkdownHelpers registers a markdown() template helper and gives every page
// without a title one derived from its first heading or its file name.
type MarkdownHelpers struct {
	conv  *markdown.Converter
	title cases.Caser
}

func NewMarkdownHelpers(conv *markdown.Converter) *MarkdownHelpers {
	return &MarkdownHelpers{conv: conv, title: cases.Title(language.English)}
}

func (m *MarkdownHelpers) Name() string { return "markdown-helpers" }

func (m *MarkdownHelpers) Register(r pipeline.Registry) {
	r.Helper("markdown", m.render)
}

func (m *MarkdownHelpers) render(src string) *pongo2.Value {
	out, err := m.conv.Convert([]byte(src))
	if err != nil {
		return pongo2.AsValue("")
	}
	return pongo2.AsSafeValue(string(out))
}

func (m *MarkdownHelpers) Run(_ context.Context, st *pipeline.State) error {
	for _, p := range st.Pages.All() {
		if p.Title() != "" {
			continue
		}
		p.Merge(map[string]any{page.KeyTitle: m.DefaultTitle(p)})
	}
	return nil
}

// DefaultTitle picks the first level-one heading of a markdown page, or a
// title-cased file name.
func (m *MarkdownHelpers) DefaultTitle(p *page.Page) string {
	if p.Markdown {
		if h := markdown.FirstHeading(p.Body); h != "" {
			return h
		}
	}
	name := page.TemplateName(path.Base(p.SourcePath))
	if name == "index" {
		if dir := path.Dir(p.SourcePath); dir != "." {
			name = path.Base(dir)
		}
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return m.title.String(name)
}
