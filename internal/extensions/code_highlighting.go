package extensions

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/press/internal/page"
	"git.home.luguber.info/inful/press/internal/pipeline"
)

// CodeHighlighting tags fenced code blocks for a client-side highlighter:
// the pre element gets the highlight class and a data-lang attribute taken
// from the code element's language-* class.
type CodeHighlighting struct{}

func (CodeHighlighting) Name() string { return "code-highlighting" }

func (c CodeHighlighting) Register(r pipeline.Registry) {
	r.PostRender(c.Name(), c.filter)
}

func (CodeHighlighting) filter(_ *pipeline.State, _ *page.Page, out []byte) ([]byte, error) {
	if !bytes.Contains(out, []byte("<pre")) {
		return out, nil
	}
	return rewriteHTML(out, func(n *html.Node) {
		if n.Data != "pre" {
			return
		}
		code := n.FirstChild
		for code != nil && code.Type != html.ElementNode {
			code = code.NextSibling
		}
		if code == nil || code.Data != "code" {
			return
		}
		addClass(n, "highlight")
		for _, class := range strings.Fields(getAttr(code, "class")) {
			if lang, ok := strings.CutPrefix(class, "language-"); ok && lang != "" {
				setAttr(n, "data-lang", lang)
				return
			}
		}
	})
}
