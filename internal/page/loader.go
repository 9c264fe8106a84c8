package page

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/inful/mdfp"

	ferrors "git.home.luguber.info/inful/press/internal/foundation/errors"
	"git.home.luguber.info/inful/press/internal/frontmatter"
	"git.home.luguber.info/inful/press/internal/logfields"
	"git.home.luguber.info/inful/press/internal/util/sets"
)

// LoadOptions locates the page root.
type LoadOptions struct {
	// Root is the absolute project root.
	Root string
	// Src is the page root relative to Root.
	Src string
	// MetadataBuffer bounds the front matter scan.
	MetadataBuffer int
}

func (o LoadOptions) dir() string { return filepath.Join(o.Root, o.Src) }

// Load reads the page at rel (relative to the page root). Read failures and
// malformed front matter are returned to the caller.
func Load(opts LoadOptions, rel string) (*Page, error) {
	rel = toSlash(rel)
	abs := filepath.Join(opts.dir(), filepath.FromSlash(rel))

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read page").
			WithContext("path", rel).
			Build()
	}

	parsed, err := frontmatter.Parse(content, opts.MetadataBuffer)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryParse, "parse page metadata").
			WithContext("path", rel).
			Build()
	}

	templatePath := path.Join(toSlash(opts.Src), rel)
	markdown := IsMarkdown(rel)
	p := &Page{
		SourcePath:   rel,
		TemplatePath: templatePath,
		DestPath:     DestFor(rel),
		Markdown:     markdown,
		Metadata: map[string]any{
			KeySrc:      rel,
			KeyTemplate: templatePath,
			KeyDest:     DestFor(rel),
			KeyMarkdown: markdown,
			KeyDirty:    true,
		},
		Body:             parsed.Body,
		Fingerprint:      mdfp.CalculateFingerprintFromParts(string(parsed.Raw), string(parsed.Body)),
		DataDependencies: sets.New[string](),
	}
	p.Merge(parsed.Metadata)
	p.MarkDirty()
	return p, nil
}

// Discover lists page sources under the page root, skipping excluded names.
// A missing page root yields no pages.
func Discover(opts LoadOptions) ([]string, error) {
	dir := opts.dir()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		slog.Debug("Page root does not exist", logfields.Path(dir))
		return nil, nil
	}

	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsPageSource(p) || Excluded(p) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "walk page root").
			WithContext("path", dir).
			Build()
	}
	sort.Strings(out)
	return out, nil
}

// LoadAll discovers and loads every page. Individual files load concurrently;
// the call returns once all of them finished. The first failure is returned.
func LoadAll(ctx context.Context, opts LoadOptions) ([]*Page, error) {
	rels, err := Discover(opts)
	if err != nil {
		return nil, err
	}

	pages := make([]*Page, len(rels))
	errs := make([]error, len(rels))
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup

	for i, rel := range rels {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			pages[i], errs[i] = Load(opts, rel)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return pages, nil
}
