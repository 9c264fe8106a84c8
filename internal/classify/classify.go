// Package classify turns raw filesystem changes into page and data events.
package classify

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"git.home.luguber.info/inful/press/internal/data"
	"git.home.luguber.info/inful/press/internal/page"
)

// Op is the kind of a raw filesystem change.
type Op int

const (
	OpAdded Op = iota + 1
	OpChanged
	OpDeleted
	OpRenamed
)

func (o Op) String() string {
	switch o {
	case OpAdded:
		return "added"
	case OpChanged:
		return "changed"
	case OpDeleted:
		return "deleted"
	case OpRenamed:
		return "renamed"
	}
	return "unknown"
}

// RawEvent is a change as reported by the watcher. OldPath is only set for
// renames. Paths may be absolute or relative to the project root.
type RawEvent struct {
	Op      Op
	Path    string
	OldPath string
}

// Namespace tells which store an event belongs to.
type Namespace int

const (
	NamespacePage Namespace = iota + 1
	NamespaceData
)

func (n Namespace) String() string {
	switch n {
	case NamespacePage:
		return "page"
	case NamespaceData:
		return "data"
	}
	return "none"
}

// Event is a classified change. Path and OldPath are relative to the
// namespace root: the page root for pages, the project root for data.
type Event struct {
	Namespace Namespace
	Op        Op
	Path      string
	OldPath   string
}

// String renders the event kind, e.g. "page.renamed".
func (e Event) String() string { return e.Namespace.String() + "." + e.Op.String() }

// DataName returns the data name of the new path.
func (e Event) DataName() string { return data.NameFor(e.Path) }

// OldDataName returns the data name of the old path of a rename.
func (e Event) OldDataName() string { return data.NameFor(e.OldPath) }

// TemplateNames lists the template cache entries a page event makes stale:
// the current name and, for renames, the old one.
func (e Event) TemplateNames() []string {
	if e.Namespace != NamespacePage {
		return nil
	}
	names := []string{page.TemplateName(e.Path)}
	if e.Op == OpRenamed && e.OldPath != "" {
		names = append(names, page.TemplateName(e.OldPath))
	}
	return names
}

// Options locates the namespaces. Dirs are relative to Root.
type Options struct {
	Root    string
	Src     string
	Data    string
	DataExt []string
}

// Classifier matches paths against the page and data globs.
type Classifier struct {
	root    string
	src     string
	dataDir string
	page    glob.Glob
	data    glob.Glob
}

// DefaultDataExt is the data namespace when no registry supplies one.
var DefaultDataExt = []string{"js", "json", "yaml", "yml", "toml"}

func New(opts Options) (*Classifier, error) {
	exts := make([]string, 0, len(page.Extensions))
	for _, e := range page.Extensions {
		exts = append(exts, strings.TrimPrefix(e, "."))
	}
	pageGlob, err := compile(opts.Src, exts)
	if err != nil {
		return nil, fmt.Errorf("compile page glob: %w", err)
	}
	dataExt := opts.DataExt
	if len(dataExt) == 0 {
		dataExt = DefaultDataExt
	}
	dataGlob, err := compile(opts.Data, dataExt)
	if err != nil {
		return nil, fmt.Errorf("compile data glob: %w", err)
	}
	return &Classifier{
		root:    opts.Root,
		src:     cleanDir(opts.Src),
		dataDir: cleanDir(opts.Data),
		page:    pageGlob,
		data:    dataGlob,
	}, nil
}

// compile builds "<dir>/**.{ext,...}". "**" also spans zero directories here,
// so files directly under dir match.
func compile(dir string, exts []string) (glob.Glob, error) {
	prefix := ""
	if d := cleanDir(dir); d != "" {
		prefix = glob.QuoteMeta(d) + "/"
	}
	return glob.Compile(prefix+"**.{"+strings.Join(exts, ",")+"}", '/')
}

func cleanDir(dir string) string {
	d := path.Clean(filepath.ToSlash(dir))
	if d == "." || d == "/" {
		return ""
	}
	return strings.TrimPrefix(d, "./")
}

// Normalize makes p relative to the project root with forward slashes.
// Paths outside the root are returned as "".
func (c *Classifier) Normalize(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		if c.root == "" {
			return ""
		}
		rel, err := filepath.Rel(c.root, p)
		if err != nil {
			return ""
		}
		p = rel
	}
	p = path.Clean(filepath.ToSlash(p))
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return ""
	}
	return p
}

// IsPage reports whether the project-relative path is in the page namespace.
func (c *Classifier) IsPage(rel string) bool { return rel != "" && c.page.Match(rel) }

// IsData reports whether the project-relative path is in the data namespace.
func (c *Classifier) IsData(rel string) bool { return rel != "" && c.data.Match(rel) }

func (c *Classifier) pageRel(rel string) string {
	if c.src == "" {
		return rel
	}
	return strings.TrimPrefix(rel, c.src+"/")
}

// Classify maps one raw change onto zero or more events. A path in neither
// namespace yields nothing. A rename that leaves a namespace becomes a delete
// in it, a rename that enters one becomes an add, so a rename across
// namespaces yields both.
func (c *Classifier) Classify(raw RawEvent) []Event {
	rel := c.Normalize(raw.Path)

	if raw.Op != OpRenamed {
		switch {
		case c.IsPage(rel):
			return []Event{{Namespace: NamespacePage, Op: raw.Op, Path: c.pageRel(rel)}}
		case c.IsData(rel):
			return []Event{{Namespace: NamespaceData, Op: raw.Op, Path: rel}}
		}
		return nil
	}

	old := c.Normalize(raw.OldPath)
	var out []Event

	oldPage, newPage := c.IsPage(old), c.IsPage(rel)
	switch {
	case oldPage && newPage:
		out = append(out, Event{Namespace: NamespacePage, Op: OpRenamed, Path: c.pageRel(rel), OldPath: c.pageRel(old)})
	case oldPage:
		out = append(out, Event{Namespace: NamespacePage, Op: OpDeleted, Path: c.pageRel(old)})
	case newPage:
		out = append(out, Event{Namespace: NamespacePage, Op: OpAdded, Path: c.pageRel(rel)})
	}

	oldData, newData := c.IsData(old), c.IsData(rel)
	switch {
	case oldData && newData:
		out = append(out, Event{Namespace: NamespaceData, Op: OpRenamed, Path: rel, OldPath: old})
	case oldData:
		out = append(out, Event{Namespace: NamespaceData, Op: OpDeleted, Path: old})
	case newData:
		out = append(out, Event{Namespace: NamespaceData, Op: OpAdded, Path: rel})
	}
	return out
}
