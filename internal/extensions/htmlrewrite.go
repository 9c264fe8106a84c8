package extensions

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// linkAttrs lists the attributes that carry URLs, by element.
var linkAttrs = map[string]string{
	"a":      "href",
	"link":   "href",
	"img":    "src",
	"script": "src",
	"source": "src",
	"video":  "src",
	"audio":  "src",
	"iframe": "src",
}

// rewriteHTML parses out, lets visit modify element nodes and renders the
// result. Whole documents round-trip as documents; anything else is treated
// as a body fragment so no wrapper elements appear.
func rewriteHTML(out []byte, visit func(n *html.Node)) ([]byte, error) {
	if isDocument(out) {
		doc, err := html.Parse(bytes.NewReader(out))
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		walk(doc, visit)
		var buf bytes.Buffer
		if err := html.Render(&buf, doc); err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		return buf.Bytes(), nil
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(out), body)
	if err != nil {
		return nil, fmt.Errorf("parse html fragment: %w", err)
	}
	var buf bytes.Buffer
	for _, n := range nodes {
		walk(n, visit)
		if err := html.Render(&buf, n); err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func isDocument(out []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(out))
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.HasPrefix(head, []byte("<!doctype")) || bytes.Contains(head, []byte("<html"))
}

func walk(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func addClass(n *html.Node, class string) {
	existing := strings.Fields(getAttr(n, "class"))
	for _, c := range existing {
		if c == class {
			return
		}
	}
	setAttr(n, "class", strings.TrimSpace(strings.Join(append(existing, class), " ")))
}

// rewriteLinks applies fn to every URL-carrying attribute.
func rewriteLinks(out []byte, fn func(u string) string) ([]byte, error) {
	return rewriteHTML(out, func(n *html.Node) {
		attr, ok := linkAttrs[n.Data]
		if !ok {
			return
		}
		if v := getAttr(n, attr); v != "" {
			if nv := fn(v); nv != v {
				setAttr(n, attr, nv)
			}
		}
	})
}

// isSiteAbsolute reports whether u is a root-relative URL on this site.
func isSiteAbsolute(u string) bool {
	return strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//")
}

// splitURL separates the path from any query or fragment suffix.
func splitURL(u string) (string, string) {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i], u[i:]
	}
	return u, ""
}
