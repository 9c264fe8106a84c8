package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/press/internal/classify"
)

func TestPairer_RenameThenCreate(t *testing.T) {
	p := NewPairer(100 * time.Millisecond)
	now := time.Now()

	assert.Empty(t, p.Push(fsnotify.Event{Name: "/s/src/a.md", Op: fsnotify.Rename}, now))
	_, pending := p.Deadline()
	assert.True(t, pending)

	got := p.Push(fsnotify.Event{Name: "/s/src/b.md", Op: fsnotify.Create}, now.Add(10*time.Millisecond))
	assert.Equal(t, []classify.RawEvent{{Op: classify.OpRenamed, Path: "/s/src/b.md", OldPath: "/s/src/a.md"}}, got)
	_, pending = p.Deadline()
	assert.False(t, pending)
}

func TestPairer_UnpairedRenameExpiresAsDelete(t *testing.T) {
	p := NewPairer(100 * time.Millisecond)
	now := time.Now()

	p.Push(fsnotify.Event{Name: "/s/src/a.md", Op: fsnotify.Rename}, now)
	assert.Empty(t, p.Expire(now.Add(50*time.Millisecond)))
	assert.Equal(t, []classify.RawEvent{{Op: classify.OpDeleted, Path: "/s/src/a.md"}},
		p.Expire(now.Add(150*time.Millisecond)))

	p.Push(fsnotify.Event{Name: "/s/src/c.md", Op: fsnotify.Rename}, now)
	got := p.Push(fsnotify.Event{Name: "/s/src/d.md", Op: fsnotify.Create}, now.Add(time.Second))
	assert.Equal(t, []classify.RawEvent{
		{Op: classify.OpDeleted, Path: "/s/src/c.md"},
		{Op: classify.OpAdded, Path: "/s/src/d.md"},
	}, got)
}

func TestPairer_PrefersSameDirectory(t *testing.T) {
	p := NewPairer(time.Second)
	now := time.Now()
	p.Push(fsnotify.Event{Name: "/s/data/x.json", Op: fsnotify.Rename}, now)
	p.Push(fsnotify.Event{Name: "/s/src/a.md", Op: fsnotify.Rename}, now)

	got := p.Push(fsnotify.Event{Name: "/s/src/b.md", Op: fsnotify.Create}, now)
	assert.Equal(t, []classify.RawEvent{{Op: classify.OpRenamed, Path: "/s/src/b.md", OldPath: "/s/src/a.md"}}, got)

	got = p.Push(fsnotify.Event{Name: "/s/other/x.json", Op: fsnotify.Create}, now)
	assert.Equal(t, []classify.RawEvent{{Op: classify.OpRenamed, Path: "/s/other/x.json", OldPath: "/s/data/x.json"}}, got)
}

func TestPairer_PlainOps(t *testing.T) {
	p := NewPairer(0)
	now := time.Now()

	assert.Equal(t, []classify.RawEvent{{Op: classify.OpChanged, Path: "a"}},
		p.Push(fsnotify.Event{Name: "a", Op: fsnotify.Write}, now))
	assert.Equal(t, []classify.RawEvent{{Op: classify.OpDeleted, Path: "a"}},
		p.Push(fsnotify.Event{Name: "a", Op: fsnotify.Remove}, now))
	assert.Equal(t, []classify.RawEvent{{Op: classify.OpDeleted, Path: "a"}},
		p.Push(fsnotify.Event{Name: "a", Op: fsnotify.Rename}, now), "no window means no pairing")
	assert.Empty(t, p.Push(fsnotify.Event{Name: "a", Op: fsnotify.Chmod}, now))
}

func TestPairer_DirectoryRename(t *testing.T) {
	p := NewPairer(100 * time.Millisecond)
	now := time.Now()
	docs, manual := filepath.Join("/s", "src", "docs"), filepath.Join("/s", "src", "manual")
	deep := filepath.Join("deep", "b.md")

	assert.Empty(t, p.PushDirRename(docs, []string{"a.md", deep, "gone.md"}, now))
	assert.Equal(t, []classify.RawEvent{{Op: classify.OpAdded, Path: filepath.Join("/s", "src", "x.md")}},
		p.Push(fsnotify.Event{Name: filepath.Join("/s", "src", "x.md"), Op: fsnotify.Create}, now),
		"files never pair with a directory")

	got := p.PushDirCreate(manual, []string{"a.md", deep, "new.md"}, now.Add(10*time.Millisecond))
	assert.Equal(t, []classify.RawEvent{
		{Op: classify.OpRenamed, Path: filepath.Join(manual, "a.md"), OldPath: filepath.Join(docs, "a.md")},
		{Op: classify.OpRenamed, Path: filepath.Join(manual, deep), OldPath: filepath.Join(docs, deep)},
		{Op: classify.OpAdded, Path: filepath.Join(manual, "new.md")},
		{Op: classify.OpDeleted, Path: filepath.Join(docs, "gone.md")},
	}, got)
	_, pending := p.Deadline()
	assert.False(t, pending)
}

func TestPairer_DirectoryMovedAwayExpiresAsDeletes(t *testing.T) {
	p := NewPairer(100 * time.Millisecond)
	now := time.Now()
	guide := filepath.Join("/s", "src", "guide")

	assert.Empty(t, p.PushDirRename(guide, []string{"intro.md", "setup.md"}, now))
	assert.Equal(t, []classify.RawEvent{
		{Op: classify.OpDeleted, Path: filepath.Join(guide, "intro.md")},
		{Op: classify.OpDeleted, Path: filepath.Join(guide, "setup.md")},
	}, p.Expire(now.Add(150*time.Millisecond)))

	assert.Equal(t, []classify.RawEvent{{Op: classify.OpAdded, Path: filepath.Join(guide, "intro.md")}},
		p.PushDirCreate(guide, []string{"intro.md"}, now), "an unpaired directory reports its files as added")

	assert.Equal(t, []classify.RawEvent{{Op: classify.OpDeleted, Path: filepath.Join(guide, "intro.md")}},
		NewPairer(0).PushDirRename(guide, []string{"intro.md"}, now), "no window means no pairing")
}

func TestPairer_PrefersMostRecentRename(t *testing.T) {
	p := NewPairer(time.Second)
	now := time.Now()
	p.PushDirRename("/s/src/guide", []string{"intro.md"}, now)
	p.PushDirRename("/s/src/docs", []string{"a.md"}, now.Add(time.Millisecond))

	got := p.PushDirCreate("/s/src/manual", []string{"a.md"}, now.Add(2*time.Millisecond))
	assert.Equal(t, []classify.RawEvent{
		{Op: classify.OpRenamed, Path: filepath.Join("/s/src/manual", "a.md"), OldPath: filepath.Join("/s/src/docs", "a.md")},
	}, got)
}

func TestShouldIgnoreEvent(t *testing.T) {
	for _, p := range []string{"/x/.hidden.md", "/x/a.md~", "/x/.a.md.swp", "/x/#a.md#", "/x/4913"} {
		assert.True(t, shouldIgnoreEvent(p), p)
	}
	assert.False(t, shouldIgnoreEvent("/x/_layout.html"))
	assert.False(t, shouldIgnoreEvent("/x/index.md"))
}

func TestTrigger_CoalescesWhileRunning(t *testing.T) {
	var runs atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	tr := NewTrigger(0, func(context.Context) {
		if runs.Add(1) == 1 {
			close(started)
			<-release
		}
	})
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go tr.Run(ctx)

	tr.Request()
	<-started
	for range 5 {
		tr.Request()
	}
	close(release)

	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), runs.Load())
}

func TestTrigger_Debounces(t *testing.T) {
	var runs atomic.Int32
	tr := NewTrigger(30*time.Millisecond, func(context.Context) { runs.Add(1) })
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go tr.Run(ctx)

	for range 10 {
		tr.Request()
	}
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestWatcher_ReportsNewFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))

	w, err := New(Options{Dirs: []string{src, filepath.Join(root, "missing")}, RenameWindow: 20 * time.Millisecond})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	target := filepath.Join(src, "index.md")
	require.NoError(t, os.WriteFile(target, []byte("# hi"), 0o644))

	deadline := time.After(2 * time.Second)
	for seen := false; !seen; {
		select {
		case ev := <-w.Events():
			seen = ev.Path == target
		case <-deadline:
			t.Fatal("no event for new file")
		}
	}

	cancel()
	require.NoError(t, <-done)
	_, open := <-w.Events()
	for open {
		_, open = <-w.Events()
	}
}

// collect reads events until every wanted one arrived.
func collect(t *testing.T, w *Watcher, want ...classify.RawEvent) {
	t.Helper()
	missing := append([]classify.RawEvent(nil), want...)
	deadline := time.After(3 * time.Second)
	for len(missing) > 0 {
		select {
		case ev := <-w.Events():
			for i, m := range missing {
				if m == ev {
					missing = append(missing[:i], missing[i+1:]...)
					break
				}
			}
		case <-deadline:
			t.Fatalf("events never reported: %v", missing)
		}
	}
}

func TestWatcher_DirectoryMoves(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	for _, rel := range []string{"guide/intro.md", "docs/a.md", "docs/deep/b.md"} {
		p := filepath.Join(src, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("# x"), 0o644))
	}
	outside := filepath.Join(root, "outside")
	require.NoError(t, os.MkdirAll(outside, 0o755))

	w, err := New(Options{Dirs: []string{src}, RenameWindow: 50 * time.Millisecond})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.Rename(filepath.Join(src, "guide"), filepath.Join(outside, "guide")))
	collect(t, w, classify.RawEvent{Op: classify.OpDeleted, Path: filepath.Join(src, "guide", "intro.md")})

	require.NoError(t, os.Rename(filepath.Join(src, "docs"), filepath.Join(src, "manual")))
	collect(t, w,
		classify.RawEvent{Op: classify.OpRenamed, Path: filepath.Join(src, "manual", "a.md"), OldPath: filepath.Join(src, "docs", "a.md")},
		classify.RawEvent{Op: classify.OpRenamed, Path: filepath.Join(src, "manual", "deep", "b.md"), OldPath: filepath.Join(src, "docs", "deep", "b.md")},
	)

	// The moved tree is watched under its new name.
	require.NoError(t, os.WriteFile(filepath.Join(src, "manual", "deep", "c.md"), []byte("# c"), 0o644))
	collect(t, w, classify.RawEvent{Op: classify.OpAdded, Path: filepath.Join(src, "manual", "deep", "c.md")})

	cancel()
	require.NoError(t, <-done)
}
