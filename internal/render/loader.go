package render

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/press/internal/frontmatter"
	"git.home.luguber.info/inful/press/internal/page"
)

// sourceLoader resolves template names against the page root. A name with a
// page extension names that file; a bare name tries each page extension in
// order. Front matter is stripped from what the engine sees.
type sourceLoader struct {
	dir   string
	limit int
}

// Abs keeps names logical. "./" and "../" resolve against the including
// template; anything else is rooted at the page root.
func (l *sourceLoader) Abs(base, name string) string {
	name = filepath.ToSlash(name)
	if base != "" && (strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../")) {
		name = path.Join(path.Dir(base), name)
	}
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

func (l *sourceLoader) Get(name string) (io.Reader, error) {
	for _, candidate := range candidates(name) {
		raw, err := os.ReadFile(filepath.Join(l.dir, filepath.FromSlash(candidate)))
		if err == nil {
			return bytes.NewReader(frontmatter.Body(raw, l.limit)), nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("template %q not found under %s", name, l.dir)
}

// lookupOrder prefers html so layouts win over same-named markdown pages.
var lookupOrder = []string{".html", ".md", ".markdown"}

func candidates(name string) []string {
	if page.IsPageSource(name) {
		return []string{name}
	}
	out := make([]string, 0, len(lookupOrder)+1)
	for _, ext := range lookupOrder {
		out = append(out, name+ext)
	}
	return append(out, name)
}
