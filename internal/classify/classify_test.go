package classify

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClassifier(t *testing.T, root string) *Classifier {
	t.Helper()
	c, err := New(Options{Root: root, Src: "src", Data: "data"})
	require.NoError(t, err)
	return c
}

func TestClassify_SinglePath(t *testing.T) {
	c := newClassifier(t, "/site")

	tests := []struct {
		name string
		raw  RawEvent
		want []Event
	}{
		{"page added", RawEvent{Op: OpAdded, Path: "src/index.md"},
			[]Event{{Namespace: NamespacePage, Op: OpAdded, Path: "index.md"}}},
		{"nested page changed", RawEvent{Op: OpChanged, Path: "src/blog/2024/post.markdown"},
			[]Event{{Namespace: NamespacePage, Op: OpChanged, Path: "blog/2024/post.markdown"}}},
		{"html page deleted", RawEvent{Op: OpDeleted, Path: "./src/about.html"},
			[]Event{{Namespace: NamespacePage, Op: OpDeleted, Path: "about.html"}}},
		{"absolute path", RawEvent{Op: OpChanged, Path: "/site/src/index.md"},
			[]Event{{Namespace: NamespacePage, Op: OpChanged, Path: "index.md"}}},
		{"data added", RawEvent{Op: OpAdded, Path: "data/site.yaml"},
			[]Event{{Namespace: NamespaceData, Op: OpAdded, Path: "data/site.yaml"}}},
		{"nested data deleted", RawEvent{Op: OpDeleted, Path: "data/menus/nav.json"},
			[]Event{{Namespace: NamespaceData, Op: OpDeleted, Path: "data/menus/nav.json"}}},
		{"toml and js data", RawEvent{Op: OpChanged, Path: "data/feed.js"},
			[]Event{{Namespace: NamespaceData, Op: OpChanged, Path: "data/feed.js"}}},
		{"css under src", RawEvent{Op: OpChanged, Path: "src/style.css"}, nil},
		{"markdown under data", RawEvent{Op: OpChanged, Path: "data/notes.md"}, nil},
		{"outside root", RawEvent{Op: OpChanged, Path: "/elsewhere/src/index.md"}, nil},
		{"output tree", RawEvent{Op: OpChanged, Path: "build/index.html"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.raw))
		})
	}
}

func TestClassify_Renames(t *testing.T) {
	c := newClassifier(t, "/site")

	tests := []struct {
		name     string
		old, new string
		want     []Event
	}{
		{"page to page", "src/a.md", "src/b.md",
			[]Event{{Namespace: NamespacePage, Op: OpRenamed, Path: "b.md", OldPath: "a.md"}}},
		{"page out of namespace", "src/a.md", "src/a.txt",
			[]Event{{Namespace: NamespacePage, Op: OpDeleted, Path: "a.md"}}},
		{"into page namespace", "src/a.txt", "src/a.md",
			[]Event{{Namespace: NamespacePage, Op: OpAdded, Path: "a.md"}}},
		{"data to data", "data/a.json", "data/b.yaml",
			[]Event{{Namespace: NamespaceData, Op: OpRenamed, Path: "data/b.yaml", OldPath: "data/a.json"}}},
		{"data out of namespace", "data/a.json", "data/a.bak",
			[]Event{{Namespace: NamespaceData, Op: OpDeleted, Path: "data/a.json"}}},
		{"into data namespace", "tmp/a.json", "data/a.json",
			[]Event{{Namespace: NamespaceData, Op: OpAdded, Path: "data/a.json"}}},
		{"page to data", "src/site.md", "data/site.json", []Event{
			{Namespace: NamespacePage, Op: OpDeleted, Path: "site.md"},
			{Namespace: NamespaceData, Op: OpAdded, Path: "data/site.json"},
		}},
		{"data to page", "data/site.json", "src/site.md", []Event{
			{Namespace: NamespacePage, Op: OpAdded, Path: "site.md"},
			{Namespace: NamespaceData, Op: OpDeleted, Path: "data/site.json"},
		}},
		{"neither", "tmp/a", "tmp/b", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(RawEvent{Op: OpRenamed, Path: tt.new, OldPath: tt.old})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvent_TemplateNames(t *testing.T) {
	rename := Event{Namespace: NamespacePage, Op: OpRenamed, Path: "blog/new.md", OldPath: "blog/old.html"}
	assert.Equal(t, []string{"blog/new", "blog/old"}, rename.TemplateNames())

	changed := Event{Namespace: NamespacePage, Op: OpChanged, Path: "index.md"}
	assert.Equal(t, []string{"index"}, changed.TemplateNames())

	dataEv := Event{Namespace: NamespaceData, Op: OpChanged, Path: "data/site.yaml"}
	assert.Nil(t, dataEv.TemplateNames())
	assert.Equal(t, "site", dataEv.DataName())
	assert.Equal(t, "data.changed", dataEv.String())
}

func TestNormalize(t *testing.T) {
	root := t.TempDir()
	c := newClassifier(t, root)

	assert.Equal(t, "src/a.md", c.Normalize(filepath.Join(root, "src", "a.md")))
	assert.Equal(t, "src/a.md", c.Normalize("./src//a.md"))
	assert.Equal(t, "", c.Normalize("../outside.md"))
	assert.Equal(t, "", c.Normalize(root))
	assert.Equal(t, "", c.Normalize(""))
}

func TestClassify_RootAsPageDir(t *testing.T) {
	c, err := New(Options{Root: "/site", Src: ".", Data: "_data"})
	require.NoError(t, err)

	assert.Equal(t, []Event{{Namespace: NamespacePage, Op: OpAdded, Path: "index.md"}},
		c.Classify(RawEvent{Op: OpAdded, Path: "index.md"}))
	assert.Equal(t, []Event{{Namespace: NamespaceData, Op: OpAdded, Path: "_data/site.yml"}},
		c.Classify(RawEvent{Op: OpAdded, Path: "_data/site.yml"}))
}
