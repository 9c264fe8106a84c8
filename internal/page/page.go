// Package page holds renderable page sources and the store that indexes them.
package page

import (
	"maps"
	"path"
	"strings"

	"git.home.luguber.info/inful/press/internal/util/sets"
)

// ExclusionMarker prefixes file names that never become pages.
const ExclusionMarker = "_"

// OutputExt is the extension markdown sources are rendered to.
const OutputExt = ".html"

// Extensions lists the source extensions of the page namespace.
var Extensions = []string{".md", ".markdown", ".html"}

// Metadata keys with meaning to the loader and renderer.
const (
	KeySrc      = "src"
	KeyTemplate = "template"
	KeyDest     = "dest"
	KeyMarkdown = "markdown"
	KeyDirty    = "dirty"
	KeyIgnore   = "ignore"
	KeyLayout   = "layout"
	KeyData     = "data"
	KeyTitle    = "title"
)

// Page is one renderable source document.
type Page struct {
	// SourcePath is relative to the page root, slash separated. It is the store key.
	SourcePath string
	// TemplatePath is relative to the project root.
	TemplatePath string
	// DestPath is relative to the output root.
	DestPath string
	// OutputPath is where the last render was written, relative to the output
	// root. It differs from DestPath when URL rewriting moved the file.
	OutputPath string

	Markdown    bool
	Metadata    map[string]any
	Body        []byte
	Fingerprint string

	// DataDependencies holds the data names read during the last render.
	DataDependencies sets.Set[string]
	Dirty            bool

	seq uint64
}

// TemplateName is the name the template cache knows this page by.
func (p *Page) TemplateName() string { return TemplateName(p.SourcePath) }

// Ignored reports whether an ignore rule or the page itself opted out of rendering.
func (p *Page) Ignored() bool {
	v, _ := p.Metadata[KeyIgnore].(bool)
	return v
}

// Layout returns the layout template name, if any.
func (p *Page) Layout() string {
	v, _ := p.Metadata[KeyLayout].(string)
	return v
}

// Title returns the metadata title, if any.
func (p *Page) Title() string {
	v, _ := p.Metadata[KeyTitle].(string)
	return v
}

// Merge overlays values onto the metadata. dest is kept in sync with DestPath.
func (p *Page) Merge(values map[string]any) {
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	maps.Copy(p.Metadata, values)
	if d, ok := values[KeyDest].(string); ok && d != "" {
		p.DestPath = d
	}
}

// MarkDirty flags the page for re-render.
func (p *Page) MarkDirty() {
	p.Dirty = true
	if p.Metadata != nil {
		p.Metadata[KeyDirty] = true
	}
}

// MarkClean records a successful render.
func (p *Page) MarkClean(deps sets.Set[string]) {
	p.Dirty = false
	p.DataDependencies = deps
	if p.Metadata != nil {
		p.Metadata[KeyDirty] = false
	}
}

// DeclaredData returns the data names listed in the page's data metadata key.
func (p *Page) DeclaredData() []string {
	switch v := p.Metadata[KeyData].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Excluded reports whether the file name carries the exclusion marker.
func Excluded(rel string) bool {
	return strings.HasPrefix(path.Base(toSlash(rel)), ExclusionMarker)
}

// IsPageSource reports whether rel has a page namespace extension.
func IsPageSource(rel string) bool {
	ext := strings.ToLower(path.Ext(rel))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// IsMarkdown reports whether rel is a markdown source.
func IsMarkdown(rel string) bool {
	switch strings.ToLower(path.Ext(rel)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// DestFor derives the output path of a page source.
func DestFor(rel string) string {
	rel = toSlash(rel)
	if IsMarkdown(rel) {
		return strings.TrimSuffix(rel, path.Ext(rel)) + OutputExt
	}
	return rel
}

// TemplateName strips the extension from a source path.
func TemplateName(rel string) string {
	rel = toSlash(rel)
	return strings.TrimSuffix(rel, path.Ext(rel))
}

func toSlash(p string) string { return strings.ReplaceAll(p, "\\", "/") }
