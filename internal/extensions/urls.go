package extensions

import (
	"bytes"
	"context"
	"path"
	"strings"

	"git.home.luguber.info/inful/press/internal/page"
	"git.home.luguber.info/inful/press/internal/pipeline"
)

// PrettyPath maps "a/b.html" to "a/b/index.html". Index pages and non-html
// outputs are unchanged.
func PrettyPath(dest string) string {
	if path.Ext(dest) != page.OutputExt || path.Base(dest) == "index"+page.OutputExt {
		return dest
	}
	return strings.TrimSuffix(dest, page.OutputExt) + "/index" + page.OutputExt
}

// URLFor is the site-absolute URL of an output path.
func URLFor(output string) string {
	if path.Base(output) == "index"+page.OutputExt {
		dir := path.Dir(output)
		if dir == "." {
			return "/"
		}
		return "/" + dir + "/"
	}
	return "/" + output
}

// PrettyURLs writes pages to directory indexes, exposes each page's url in
// its metadata and rewrites site-absolute links to *.html pages accordingly.
func PrettyURLs() pipeline.Runner {
	return pipeline.Func("pretty-urls", func(_ context.Context, st *pipeline.State) error {
		st.Route(PrettyPath)
		for _, p := range st.Pages.All() {
			p.Merge(map[string]any{"url": URLFor(st.OutputFor(p.DestPath))})
		}
		st.PostRender("pretty-urls", func(_ *pipeline.State, _ *page.Page, out []byte) ([]byte, error) {
			if !bytes.Contains(out, []byte(page.OutputExt)) {
				return out, nil
			}
			return rewriteLinks(out, prettyLink)
		})
		return nil
	})
}

func prettyLink(u string) string {
	if !isSiteAbsolute(u) {
		return u
	}
	p, suffix := splitURL(u)
	if path.Ext(p) != page.OutputExt {
		return u
	}
	return URLFor(PrettyPath(strings.TrimPrefix(p, "/"))) + suffix
}

// RelativeURLs rewrites site-absolute links into paths relative to the page's
// output location, so the tree works from any base path.
func RelativeURLs() pipeline.Runner {
	return pipeline.Func("relative-urls", func(_ context.Context, st *pipeline.State) error {
		st.PostRender("relative-urls", func(_ *pipeline.State, p *page.Page, out []byte) ([]byte, error) {
			if !bytes.Contains(out, []byte(`="/`)) {
				return out, nil
			}
			from := path.Dir(p.OutputPath)
			return rewriteLinks(out, func(u string) string { return relativeLink(from, u) })
		})
		return nil
	})
}

func relativeLink(fromDir, u string) string {
	if !isSiteAbsolute(u) {
		return u
	}
	target, suffix := splitURL(u)
	trailing := strings.HasSuffix(target, "/")
	target = strings.TrimPrefix(path.Clean(target), "/")
	if target == "" {
		target = "."
	}

	rel := relPath(fromDir, target)
	if trailing && rel != "." {
		rel += "/"
	}
	if rel == "." {
		rel = "./"
	}
	return rel + suffix
}

// relPath is filepath.Rel for clean slash paths inside one tree.
func relPath(from, to string) string {
	split := func(p string) []string {
		if p == "." || p == "" {
			return nil
		}
		return strings.Split(p, "/")
	}
	f, t := split(from), split(to)
	i := 0
	for i < len(f) && i < len(t) && f[i] == t[i] {
		i++
	}
	parts := make([]string, 0, len(f)-i+len(t)-i)
	for range f[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, t[i:]...)
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}
